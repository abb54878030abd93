// Package background runs periodic maintenance for the in-memory state
package background

import (
	"context"
	"sync"
	"time"

	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/logger"
)

// Sweeper removes expired cache entries
type Sweeper interface {
	Sweep() int
}

// Cleaner evicts stale rate limiter windows
type Cleaner interface {
	Cleanup() int
}

// BackgroundTasks periodically sweeps the rate cache and evicts elapsed limiter windows
type BackgroundTasks struct {
	Cache         Sweeper
	SweepInterval time.Duration

	Limiter      Cleaner
	CleanupEvery time.Duration

	logger logger.Logger
	wg     sync.WaitGroup
}

// NewBackgroundTasks creates the tasks. A nil target or non-positive interval disables that task.
func NewBackgroundTasks(cache Sweeper, sweepInterval time.Duration, limiter Cleaner, cleanupEvery time.Duration, log logger.Logger) *BackgroundTasks {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &BackgroundTasks{
		Cache:         cache,
		SweepInterval: sweepInterval,
		Limiter:       limiter,
		CleanupEvery:  cleanupEvery,
		logger:        log,
	}
}

// StartAll launches every task. They stop when ctx is cancelled.
func (bt *BackgroundTasks) StartAll(ctx context.Context) {
	if bt.Cache != nil && bt.SweepInterval > 0 {
		bt.start(ctx, "cache_sweep", bt.SweepInterval, bt.Cache.Sweep)
	}
	if bt.Limiter != nil && bt.CleanupEvery > 0 {
		bt.start(ctx, "rate_limit_cleanup", bt.CleanupEvery, bt.Limiter.Cleanup)
	}
}

// Wait blocks until every started task has returned
func (bt *BackgroundTasks) Wait() {
	bt.wg.Wait()
}

func (bt *BackgroundTasks) start(ctx context.Context, name string, every time.Duration, run func() int) {
	bt.wg.Add(1)
	go func() {
		defer bt.wg.Done()

		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				bt.logger.Debug("Background task stopped", map[string]interface{}{
					"task": name,
				})
				return
			case <-ticker.C:
				if removed := run(); removed > 0 {
					bt.logger.Debug("Background task removed entries", map[string]interface{}{
						"task":    name,
						"removed": removed,
					})
				}
			}
		}
	}()
}
