package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/logger"
	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/metrics"
	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/ratelimit"
)

// statsTimeout bounds a single stats write on the request path
const statsTimeout = 250 * time.Millisecond

// KeyFunc extracts the client identity used for rate limiting
type KeyFunc func(r *http.Request) string

// RouteFunc returns a bounded label for the route serving r, or
// ratelimit.UnmatchedRoute when none does
type RouteFunc func(r *http.Request) string

// Limiter decides whether a request from an identity is admitted
type Limiter interface {
	Consume(identity string) ratelimit.Decision
}

// RateLimitOptions configures RateLimitMiddleware
type RateLimitOptions struct {
	Limiter Limiter
	// Stats is optional. Recording failures are logged and never fail the request.
	Stats   ratelimit.StatsStore
	KeyFn   KeyFunc
	// RouteFn labels stats events. Without it every event is UnmatchedRoute.
	RouteFn RouteFunc
	Logger  logger.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// DefaultKeyFunc uses keyHeader when set and present, then the first
// X-Forwarded-For hop when trusted, then the RemoteAddr host
func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
					return ip
				}
			}
		}

		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

// statsMethod keeps the method label set closed
func statsMethod(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch,
		http.MethodDelete, http.MethodOptions, http.MethodConnect, http.MethodTrace:
		return method
	}
	return "OTHER"
}

// RateLimitMiddleware rejects requests over the limit with a 429 JSON body
func RateLimitMiddleware(opts RateLimitOptions) func(http.Handler) http.Handler {
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc("", false)
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetDefaultLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RouteFn == nil {
		opts.RouteFn = func(*http.Request) string { return ratelimit.UnmatchedRoute }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)
			dec := opts.Limiter.Consume(key)
			opts.Metrics.ObserveRateLimit(dec.Allowed)

			if opts.Stats != nil {
				ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), statsTimeout)
				err := opts.Stats.Record(ctx, ratelimit.StatsEvent{
					Key:     key,
					Allowed: dec.Allowed,
					Method:  statsMethod(r.Method),
					Path:    opts.RouteFn(r),
					At:      opts.Now(),
				})
				cancel()
				if err != nil {
					opts.Logger.Warn("Failed to record rate limit decision", map[string]interface{}{
						"request_id": GetRequestID(r.Context()),
						"error":      err.Error(),
					})
				}
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(dec.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(dec.Remaining))

			if !dec.Allowed {
				retryAfter := dec.RetryAfterSeconds()
				requestID := GetRequestID(r.Context())

				opts.Logger.Warn("Rate limit exceeded", map[string]interface{}{
					"request_id":  requestID,
					"client":      key,
					"path":        r.URL.Path,
					"retry_after": retryAfter,
				})

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
					"error":      "Too many requests",
					"message":    "Rate limit exceeded. Please try again later.",
					"retryAfter": retryAfter,
					"status":     http.StatusTooManyRequests,
					"request_id": requestID,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
