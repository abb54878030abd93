package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/damon-houk/forex-exchange-service/internal/application/background"
	"github.com/damon-houk/forex-exchange-service/internal/application/service"
	"github.com/damon-houk/forex-exchange-service/internal/config"
	"github.com/damon-houk/forex-exchange-service/internal/domain/currency"
	"github.com/damon-houk/forex-exchange-service/internal/domain/entity"
	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/api"
	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/cache"
	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/db"
	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/handler"
	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/logger"
	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/metrics"
	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/middleware"
	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

func main() {
	startedAt := time.Now()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log := logger.NewJSONLogger(os.Stdout, logger.ParseLevel(cfg.LogLevel))
	logger.SetDefaultLogger(log)
	defer log.Sync()

	log.Info("Starting forex exchange service", map[string]interface{}{
		"server":        cfg.ServerName,
		"env":           cfg.Env,
		"port":          cfg.Port,
		"provider":      cfg.Exchange.ApiUrl,
		"fallback":      cfg.Exchange.FallbackUrl,
		"cache_ttl":     cfg.Cache.TTL.String(),
		"rate_limit":    cfg.RateLimit.Points,
		"rate_window":   cfg.RateLimit.Duration.String(),
		"stats_backend": cfg.RateLimit.Stats.Backend,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry)

	// Rate source: provider client, snapshot cache and single-flight repository
	client := api.NewExchangeRateClient(api.ClientConfig{
		BaseURL:           cfg.Exchange.ApiUrl,
		FallbackURL:       cfg.Exchange.FallbackUrl,
		Timeout:           cfg.Exchange.HTTPTimeout,
		RequestsPerMinute: cfg.Exchange.RequestsPerMinute,
		BurstSize:         cfg.Exchange.BurstSize,
	}, nil, log.WithField("component", "exchange_rate_client"), m)

	snapshots := cache.NewTTLCache[entity.CurrencyCode, *entity.RateSnapshot](cache.WithDefaultTTL(cfg.Cache.TTL))
	rateRepo := db.NewCachedExchangeRateRepository(client, snapshots, cfg.Cache.TTL, log, m)

	conversionService := service.NewConversionService(rateRepo, currency.Default(), log, service.WithMetrics(m))

	// Inbound rate limiting
	limiter := ratelimit.NewFixedWindowLimiter(cfg.RateLimit.Points, cfg.RateLimit.Duration)
	stats, closeStats, err := openStatsStore(ctx, cfg.RateLimit.Stats, log)
	if err != nil {
		log.Fatal("Failed to open rate limit stats store", map[string]interface{}{
			"backend": cfg.RateLimit.Stats.Backend,
			"error":   err.Error(),
		})
	}
	defer closeStats()

	tasks := background.NewBackgroundTasks(snapshots, cfg.Cache.SweepInterval, limiter, cfg.RateLimit.CleanupEvery, log)
	tasks.StartAll(ctx)

	router := handler.NewRouter(handler.RouterConfig{
		Service:        conversionService,
		Limiter:        limiter,
		Stats:          stats,
		KeyFn:          middleware.DefaultKeyFunc(cfg.RateLimit.KeyHeader, cfg.RateLimit.TrustForwardedFor),
		Metrics:        m,
		Logger:         log,
		ServerName:     cfg.ServerName,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		StartedAt:      startedAt,
	})

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Server listening", map[string]interface{}{
			"addr": server.Addr,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", map[string]interface{}{
				"error": err.Error(),
			})
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	tasks.Wait()
	log.Info("Server stopped", nil)
}

// openStatsStore builds the configured decision stats backend. The returned
// close function is always safe to call.
func openStatsStore(ctx context.Context, cfg config.StatsConfig, log logger.Logger) (ratelimit.StatsStore, func(), error) {
	noop := func() {}

	switch cfg.Backend {
	case config.StatsBackendMemory:
		return ratelimit.NewMemoryStatsStore(ratelimit.WithTrackKeys(cfg.TrackKeys)), noop, nil

	case config.StatsBackendBadger:
		badgerDB, err := db.OpenBadger(cfg.BadgerPath)
		if err != nil {
			return nil, noop, err
		}
		closeDB := func() {
			if err := badgerDB.Close(); err != nil {
				log.Error("Error closing BadgerDB", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
		return db.NewBadgerStatsStore(badgerDB, cfg.TrackKeys), closeDB, nil

	case config.StatsBackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			rdb.Close()
			return nil, noop, err
		}

		closeRedis := func() {
			if err := rdb.Close(); err != nil {
				log.Error("Error closing Redis client", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
		store := ratelimit.NewRedisStatsStore(rdb,
			ratelimit.WithStatsPrefix(cfg.Redis.Prefix),
			ratelimit.WithStatsTTL(cfg.Redis.TTL),
			ratelimit.WithStatsBucket(cfg.Redis.Bucket),
			ratelimit.WithStatsTrackKeys(cfg.TrackKeys),
		)
		return store, closeRedis, nil
	}

	return nil, noop, nil
}
