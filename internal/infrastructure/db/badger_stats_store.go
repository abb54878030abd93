package db

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/damon-houk/forex-exchange-service/internal/infrastructure/ratelimit"
	"github.com/dgraph-io/badger/v3"
)

const (
	statsKeyPrefix = "stats:"
	// maxConflictRetries bounds retries when concurrent increments collide
	maxConflictRetries = 5
)

// BadgerStatsStore implements ratelimit.StatsStore using BadgerDB.
// Counters are stored as big-endian uint64 values.
type BadgerStatsStore struct {
	db        *badger.DB
	trackKeys bool
}

// NewBadgerStatsStore creates a new BadgerDB stats store
func NewBadgerStatsStore(db *badger.DB, trackKeys bool) *BadgerStatsStore {
	return &BadgerStatsStore{db: db, trackKeys: trackKeys}
}

// OpenBadger opens a database at path, or an in-memory one when path is empty
func OpenBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return db, nil
}

// Record increments the counters touched by ev
func (s *BadgerStatsStore) Record(ctx context.Context, ev ratelimit.StatsEvent) error {
	field := outcomeField(ev.Allowed)
	keys := []string{
		statsKeyPrefix + "total:" + field,
		statsKeyPrefix + "route:" + ratelimit.RouteField(ev.Method, ev.Path) + ":" + field,
	}
	if s.trackKeys && strings.TrimSpace(ev.Key) != "" {
		keys = append(keys, statsKeyPrefix+"key:"+ev.Key+":"+field)
	}

	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = s.db.Update(func(txn *badger.Txn) error {
			for _, key := range keys {
				if err := increment(txn, []byte(key)); err != nil {
					return err
				}
			}
			return nil
		})
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}

	if err != nil {
		return fmt.Errorf("failed to record rate limit decision: %w", err)
	}
	return nil
}

// Total returns the overall allowed and denied counters
func (s *BadgerStatsStore) Total(ctx context.Context) (ratelimit.Counters, error) {
	var c ratelimit.Counters

	err := s.db.View(func(txn *badger.Txn) error {
		allowed, err := read(txn, []byte(statsKeyPrefix+"total:allowed"))
		if err != nil {
			return err
		}
		denied, err := read(txn, []byte(statsKeyPrefix+"total:denied"))
		if err != nil {
			return err
		}
		c.Allowed, c.Denied = int64(allowed), int64(denied)
		return nil
	})

	if err != nil {
		return ratelimit.Counters{}, fmt.Errorf("failed to read rate limit totals: %w", err)
	}
	return c, nil
}

// ByRoute returns the counters of every route seen so far
func (s *BadgerStatsStore) ByRoute(ctx context.Context) (map[string]ratelimit.Counters, error) {
	out := make(map[string]ratelimit.Counters)
	prefix := []byte(statsKeyPrefix + "route:")

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			rest := strings.TrimPrefix(string(item.Key()), string(prefix))
			idx := strings.LastIndex(rest, ":")
			if idx < 0 {
				continue
			}
			route, field := rest[:idx], rest[idx+1:]

			var n uint64
			if err := item.Value(func(val []byte) error {
				n = decodeCounter(val)
				return nil
			}); err != nil {
				return err
			}

			c := out[route]
			if field == "allowed" {
				c.Allowed = int64(n)
			} else {
				c.Denied = int64(n)
			}
			out[route] = c
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to read route counters: %w", err)
	}
	return out, nil
}

func outcomeField(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}

func increment(txn *badger.Txn, key []byte) error {
	n, err := read(txn, key)
	if err != nil {
		return err
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, n+1)
	return txn.Set(key, buf)
}

func read(txn *badger.Txn, key []byte) (uint64, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var n uint64
	err = item.Value(func(val []byte) error {
		n = decodeCounter(val)
		return nil
	})
	return n, err
}

func decodeCounter(val []byte) uint64 {
	if len(val) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(val)
}
