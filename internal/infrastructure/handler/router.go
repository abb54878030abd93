package handler

import (
	"net/http"
	"time"

	"github.com/damon-houk/forex-exchange-service/internal/application/service"
	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/logger"
	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/metrics"
	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/middleware"
	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/ratelimit"
	"github.com/gorilla/mux"
)

// RouterConfig holds everything the HTTP surface depends on
type RouterConfig struct {
	Service *service.ConversionService
	Limiter middleware.Limiter
	Stats   ratelimit.StatsStore
	KeyFn   middleware.KeyFunc
	Metrics *metrics.Metrics
	Logger  logger.Logger

	ServerName     string
	AllowedOrigins []string
	StartedAt      time.Time
}

// NewRouter builds the routes and wraps them in the middleware chain.
// The chain sits outside the router so unknown routes are rate limited too.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = time.Now()
	}

	router := mux.NewRouter()
	NewExchangeHandler(cfg.Service, cfg.ServerName, log).RegisterRoutes(router)
	NewHealthHandler(cfg.ServerName, cfg.StartedAt, log).RegisterRoutes(router)
	router.Handle("/metrics", cfg.Metrics.Handler()).Methods("GET")

	var h http.Handler = router
	if cfg.Limiter != nil {
		h = middleware.RateLimitMiddleware(middleware.RateLimitOptions{
			Limiter: cfg.Limiter,
			Stats:   cfg.Stats,
			KeyFn:   cfg.KeyFn,
			RouteFn: routeLabel(router),
			Logger:  log,
			Metrics: cfg.Metrics,
		})(h)
	}
	if len(cfg.AllowedOrigins) > 0 {
		h = middleware.CORSMiddleware(cfg.AllowedOrigins)(h)
	}
	h = middleware.SecurityHeadersMiddleware(h)
	h = middleware.RecoverMiddleware(log)(h)
	h = middleware.LoggingMiddleware(log, cfg.Metrics)(h)
	h = middleware.RequestIDMiddleware(h)

	return h
}

// routeLabel resolves the path template of the matched route so stats
// keys stay bounded no matter which paths clients send
func routeLabel(router *mux.Router) middleware.RouteFunc {
	return func(r *http.Request) string {
		var match mux.RouteMatch
		if !router.Match(r, &match) || match.MatchErr != nil || match.Route == nil {
			return ratelimit.UnmatchedRoute
		}
		tpl, err := match.Route.GetPathTemplate()
		if err != nil {
			return ratelimit.UnmatchedRoute
		}
		return tpl
	}
}
