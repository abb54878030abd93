// internal/infrastructure/db/badger_stats_store_test.go
package db

import (
	"context"
	"sync"
	"testing"

	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerStatsStore(t *testing.T) {
	badgerDB, err := OpenBadger("")
	require.NoError(t, err)
	defer badgerDB.Close()

	store := NewBadgerStatsStore(badgerDB, true)
	ctx := context.Background()

	t.Run("Record and read", func(t *testing.T) {
		require.NoError(t, store.Record(ctx, ratelimit.StatsEvent{Key: "1.2.3.4", Allowed: true, Method: "GET", Path: "/api/rates"}))
		require.NoError(t, store.Record(ctx, ratelimit.StatsEvent{Key: "1.2.3.4", Allowed: true, Method: "GET", Path: "/api/rates"}))
		require.NoError(t, store.Record(ctx, ratelimit.StatsEvent{Key: "1.2.3.4", Allowed: false, Method: "POST", Path: "/api/convert"}))

		total, err := store.Total(ctx)
		require.NoError(t, err)
		assert.Equal(t, ratelimit.Counters{Allowed: 2, Denied: 1}, total)

		routes, err := store.ByRoute(ctx)
		require.NoError(t, err)
		assert.Equal(t, ratelimit.Counters{Allowed: 2}, routes["GET /api/rates"])
		assert.Equal(t, ratelimit.Counters{Denied: 1}, routes["POST /api/convert"])
	})

	t.Run("Concurrent increments are not lost", func(t *testing.T) {
		before, err := store.Total(ctx)
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					_ = store.Record(ctx, ratelimit.StatsEvent{Allowed: true, Method: "GET", Path: "/health"})
				}
			}()
		}
		wg.Wait()

		after, err := store.Total(ctx)
		require.NoError(t, err)
		// Conflicts past the retry budget may drop an event, never double count
		assert.LessOrEqual(t, after.Allowed-before.Allowed, int64(40))
		assert.Greater(t, after.Allowed-before.Allowed, int64(0))
	})

	t.Run("Cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		err := store.Record(cancelled, ratelimit.StatsEvent{Allowed: true, Method: "GET", Path: "/"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
