package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector exported by the service.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	gatherer prometheus.Gatherer

	// Cache
	CacheLookupsTotal *prometheus.CounterVec

	// Upstream provider
	UpstreamFetchTotal    *prometheus.CounterVec
	UpstreamFetchDuration *prometheus.HistogramVec

	// Rate limiting
	RateLimitDecisionsTotal *prometheus.CounterVec

	// Conversions
	ConversionsTotal *prometheus.CounterVec

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics registers the collectors on reg. A nil reg gets a fresh private registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: reg,

		CacheLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forex_rate_cache_lookups_total",
				Help: "Rate snapshot cache lookups by result",
			},
			[]string{"result"},
		),

		UpstreamFetchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forex_upstream_fetch_total",
				Help: "Upstream rate fetches by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),

		UpstreamFetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "forex_upstream_fetch_duration_seconds",
				Help:    "Upstream rate fetch latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 11), // 10ms .. ~10s
			},
			[]string{"provider"},
		),

		RateLimitDecisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forex_rate_limit_decisions_total",
				Help: "Inbound rate limiter decisions",
			},
			[]string{"decision"},
		),

		ConversionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forex_conversions_total",
				Help: "Completed currency conversions by pair",
			},
			[]string{"from", "to"},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forex_http_requests_total",
				Help: "HTTP requests by method and status code",
			},
			[]string{"method", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "forex_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
}

// ObserveCacheLookup counts a cache hit or miss
func (m *Metrics) ObserveCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveFetch records an upstream call
func (m *Metrics) ObserveFetch(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamFetchTotal.WithLabelValues(provider, outcome).Inc()
	m.UpstreamFetchDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// ObserveRateLimit counts an admission decision
func (m *Metrics) ObserveRateLimit(allowed bool) {
	if m == nil {
		return
	}
	decision := "rejected"
	if allowed {
		decision = "allowed"
	}
	m.RateLimitDecisionsTotal.WithLabelValues(decision).Inc()
}

// ObserveConversion counts a successful conversion
func (m *Metrics) ObserveConversion(from, to string) {
	if m == nil {
		return
	}
	m.ConversionsTotal.WithLabelValues(from, to).Inc()
}

// ObserveRequest records a served HTTP request
func (m *Metrics) ObserveRequest(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method).Observe(d.Seconds())
}

// Handler exposes the collectors in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
