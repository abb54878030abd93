// Package db internal/infrastructure/db/cached_exchange_rate_repository.go
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/damon-houk/forex-exchange-service/internal/domain/entity"
	"github.com/damon-houk/forex-exchange-service/internal/domain/repository"
	"github.com/damon-houk/forex-exchange-service/internal/domain/service"
	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/logger"
	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/metrics"
	"golang.org/x/sync/singleflight"
)

// SnapshotCache is the subset of the TTL cache used by the repository
type SnapshotCache interface {
	Get(key entity.CurrencyCode) (*entity.RateSnapshot, bool)
	Set(key entity.CurrencyCode, value *entity.RateSnapshot, ttl time.Duration)
	Delete(key entity.CurrencyCode)
}

// CachedExchangeRateRepository resolves rate snapshots from the cache and falls
// back to the provider on a miss. Concurrent misses for the same base share one fetch.
type CachedExchangeRateRepository struct {
	provider service.RateFetcher
	cache    SnapshotCache
	ttl      time.Duration
	flights  singleflight.Group
	logger   logger.Logger
	metrics  *metrics.Metrics
}

// NewCachedExchangeRateRepository creates a new repository for exchange rates
func NewCachedExchangeRateRepository(provider service.RateFetcher, cache SnapshotCache, ttl time.Duration, log logger.Logger, m *metrics.Metrics) repository.ExchangeRateRepository {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &CachedExchangeRateRepository{
		provider: provider,
		cache:    cache,
		ttl:      ttl,
		logger:   log,
		metrics:  m,
	}
}

// Snapshot returns the rates for base and whether they came from the cache
func (r *CachedExchangeRateRepository) Snapshot(ctx context.Context, base entity.CurrencyCode) (*entity.RateSnapshot, bool, error) {
	if snapshot, ok := r.cache.Get(base); ok {
		r.metrics.ObserveCacheLookup(true)
		r.logger.Debug("Rate cache hit", map[string]interface{}{
			"base": base,
		})
		return snapshot.Clone(), true, nil
	}
	r.metrics.ObserveCacheLookup(false)

	// The shared fetch must outlive any single waiter, the client timeout bounds it
	ch := r.flights.DoChan(string(base), func() (interface{}, error) {
		return r.fetchAndStore(context.WithoutCancel(ctx), base)
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, fmt.Errorf("failed to retrieve exchange rates: %w", res.Err)
		}
		return res.Val.(*entity.RateSnapshot).Clone(), false, nil
	}
}

func (r *CachedExchangeRateRepository) fetchAndStore(ctx context.Context, base entity.CurrencyCode) (*entity.RateSnapshot, error) {
	// A flight that finished just before this one started may have filled the cache
	if snapshot, ok := r.cache.Get(base); ok {
		return snapshot, nil
	}

	r.logger.Info("Fetching exchange rates from provider", map[string]interface{}{
		"base": base,
	})

	snapshot, err := r.provider.FetchRates(ctx, base)
	if err != nil {
		r.logger.Error("Failed to retrieve exchange rates", map[string]interface{}{
			"base":  base,
			"error": err.Error(),
		})
		return nil, err
	}

	r.cache.Set(base, snapshot, r.ttl)

	r.logger.Info("Exchange rates cached", map[string]interface{}{
		"base":  base,
		"date":  snapshot.Date,
		"count": len(snapshot.Rates),
		"ttl":   r.ttl.String(),
	})

	return snapshot, nil
}

// Peek returns a cached snapshot without contacting the provider
func (r *CachedExchangeRateRepository) Peek(base entity.CurrencyCode) (*entity.RateSnapshot, bool) {
	snapshot, ok := r.cache.Get(base)
	if !ok {
		return nil, false
	}
	return snapshot.Clone(), true
}

// Invalidate drops the cached snapshot for base
func (r *CachedExchangeRateRepository) Invalidate(base entity.CurrencyCode) {
	r.cache.Delete(base)
}
