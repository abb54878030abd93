package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/damon-houk/forex-exchange-service/internal/domain/entity"
	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/logger"
	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/metrics"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the exchangerate-api.com v4 endpoint
	DefaultBaseURL = "https://api.exchangerate-api.com/v4"
	// DefaultTimeout bounds a single upstream call
	DefaultTimeout = 10 * time.Second

	maxBodyBytes   = 1 << 20
	maxDetailBytes = 512
)

// ClientConfig configures the exchange rate client
type ClientConfig struct {
	BaseURL           string
	FallbackURL       string
	Timeout           time.Duration
	RequestsPerMinute int
	BurstSize         int
}

type provider struct {
	name    string
	baseURL string
}

// ExchangeRateClient fetches rate snapshots from the configured provider,
// failing over to the fallback provider when one is configured
type ExchangeRateClient struct {
	providers  []provider
	httpClient *http.Client
	timeout    time.Duration
	limiter    *rate.Limiter
	logger     logger.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewExchangeRateClient creates a new exchange rate client
func NewExchangeRateClient(cfg ClientConfig, httpClient *http.Client, log logger.Logger, m *metrics.Metrics) *ExchangeRateClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	providers := []provider{{name: "primary", baseURL: strings.TrimRight(cfg.BaseURL, "/")}}
	if cfg.FallbackURL != "" {
		providers = append(providers, provider{name: "fallback", baseURL: strings.TrimRight(cfg.FallbackURL, "/")})
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		burst := cfg.BurstSize
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), burst)
	}

	return &ExchangeRateClient{
		providers:  providers,
		httpClient: httpClient,
		timeout:    cfg.Timeout,
		limiter:    limiter,
		logger:     log,
		metrics:    m,
		now:        time.Now,
	}
}

// providerResponse represents the response structure of the /latest/{base} endpoint
type providerResponse struct {
	Base  string             `json:"base"`
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

// FetchRates retrieves the latest rates for base. Providers are tried in order
// and the error of the last one is returned when all of them fail.
func (c *ExchangeRateClient) FetchRates(ctx context.Context, base entity.CurrencyCode) (*entity.RateSnapshot, error) {
	var lastErr error

	for i, p := range c.providers {
		snapshot, err := c.fetchFrom(ctx, p, base)
		if err == nil {
			if i > 0 {
				c.logger.Warn("Served rates from fallback provider", map[string]interface{}{
					"base":     base,
					"provider": p.name,
				})
			}
			return snapshot, nil
		}

		lastErr = err
		c.logger.Warn("Upstream rate fetch failed", map[string]interface{}{
			"base":     base,
			"provider": p.name,
			"error":    err.Error(),
		})

		// The caller went away, no point trying the next provider
		if ctx.Err() != nil {
			break
		}
	}

	return nil, lastErr
}

func (c *ExchangeRateClient) fetchFrom(ctx context.Context, p provider, base entity.CurrencyCode) (*entity.RateSnapshot, error) {
	start := time.Now()

	snapshot, err := c.doFetch(ctx, p, base)

	outcome := "success"
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		outcome = string(fetchErr.Kind)
	}
	c.metrics.ObserveFetch(p.name, outcome, time.Since(start))

	return snapshot, err
}

func (c *ExchangeRateClient) doFetch(ctx context.Context, p provider, base entity.CurrencyCode) (*entity.RateSnapshot, error) {
	// The timeout applies to this call only, the caller's context is left alone
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(callCtx); err != nil {
			return nil, &FetchError{Kind: KindTimeout, Provider: p.name, Detail: "outbound rate budget exhausted: " + err.Error(), Err: err}
		}
	}

	reqURL := fmt.Sprintf("%s/latest/%s", p.baseURL, url.PathEscape(string(base)))

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindTransportFailure, Provider: p.name, Detail: "failed to create request", Err: err}
	}
	req.Header.Add("Accept", "application/json")

	c.logger.Debug("Requesting upstream rates", map[string]interface{}{
		"provider": p.name,
		"url":      reqURL,
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(callCtx, p.name, err)
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("Error closing response body", map[string]interface{}{
				"provider": p.name,
				"error":    closeErr.Error(),
			})
		}
	}()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxDetailBytes))
		return nil, &FetchError{
			Kind:     KindUpstreamRejected,
			Provider: p.name,
			Status:   resp.StatusCode,
			Detail:   strings.TrimSpace(string(detail)),
		}
	}

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classifyTransportError(callCtx, p.name, err)
	}

	var parsed providerResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return nil, &FetchError{Kind: KindTransportFailure, Provider: p.name, Detail: "failed to decode response", Err: err}
	}

	return c.toSnapshot(p.name, base, parsed)
}

func (c *ExchangeRateClient) toSnapshot(providerName string, base entity.CurrencyCode, parsed providerResponse) (*entity.RateSnapshot, error) {
	if len(parsed.Rates) == 0 {
		return nil, &FetchError{Kind: KindTransportFailure, Provider: providerName, Detail: "response contains no rates"}
	}

	if parsed.Base != "" && entity.ParseCurrencyCode(parsed.Base) != base {
		return nil, &FetchError{
			Kind:     KindTransportFailure,
			Provider: providerName,
			Detail:   fmt.Sprintf("response base %q does not match requested %q", parsed.Base, base),
		}
	}

	rates := make(map[entity.CurrencyCode]float64, len(parsed.Rates))
	for code, value := range parsed.Rates {
		if value <= 0 || math.IsNaN(value) || math.IsInf(value, 0) {
			return nil, &FetchError{
				Kind:     KindTransportFailure,
				Provider: providerName,
				Detail:   fmt.Sprintf("invalid rate %v for %s", value, code),
			}
		}
		rates[entity.ParseCurrencyCode(code)] = value
	}

	observedAt := c.now().UTC()
	date := parsed.Date
	if date == "" {
		date = observedAt.Format("2006-01-02")
	}

	return &entity.RateSnapshot{
		Base:       base,
		Date:       date,
		Rates:      rates,
		ObservedAt: observedAt,
	}, nil
}

// classifyTransportError separates timeouts from other network failures
func classifyTransportError(callCtx context.Context, providerName string, err error) *FetchError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(callCtx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return &FetchError{Kind: KindTimeout, Provider: providerName, Detail: "request timed out", Err: err}
	}

	return &FetchError{Kind: KindTransportFailure, Provider: providerName, Detail: err.Error(), Err: err}
}
