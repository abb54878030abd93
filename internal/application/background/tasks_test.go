package background

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/damon-houk/forex-exchange-service/internal/domain/entity"
	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/cache"
	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/logger"
	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/ratelimit"
	"github.com/stretchr/testify/assert"
)

type countingTask struct{ runs int64 }

func (c *countingTask) Sweep() int   { atomic.AddInt64(&c.runs, 1); return 1 }
func (c *countingTask) Cleanup() int { atomic.AddInt64(&c.runs, 1); return 0 }

func quietLogger() logger.Logger {
	return logger.NewJSONLogger(io.Discard, logger.ErrorLevel)
}

func TestBackgroundTasksRunAndStop(t *testing.T) {
	sweeper := &countingTask{}
	cleaner := &countingTask{}
	tasks := NewBackgroundTasks(sweeper, 5*time.Millisecond, cleaner, 5*time.Millisecond, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	tasks.StartAll(ctx)

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&sweeper.runs) >= 2 && atomic.LoadInt64(&cleaner.runs) >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	tasks.Wait()

	stopped := atomic.LoadInt64(&sweeper.runs)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, atomic.LoadInt64(&sweeper.runs))
}

func TestBackgroundTasksEvictExpiredState(t *testing.T) {
	snapshots := cache.NewTTLCache[entity.CurrencyCode, *entity.RateSnapshot]()
	snapshots.Set("USD", &entity.RateSnapshot{Base: "USD"}, time.Millisecond)

	limiter := ratelimit.NewFixedWindowLimiter(10, time.Millisecond)
	limiter.Consume("client")

	tasks := NewBackgroundTasks(snapshots, 5*time.Millisecond, limiter, 5*time.Millisecond, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		tasks.Wait()
	}()
	tasks.StartAll(ctx)

	assert.Eventually(t, func() bool {
		return snapshots.Len() == 0 && limiter.Len() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestBackgroundTasksDisabled(t *testing.T) {
	tasks := NewBackgroundTasks(nil, 0, nil, 0, quietLogger())
	tasks.StartAll(context.Background())
	// Nothing was started so Wait returns immediately
	tasks.Wait()
}
