package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore records limiter decisions as Redis hash counters
type RedisStatsStore struct {
	rdb *redis.Client

	prefix string
	// ttl applies to the per minute and per key hashes, the total never expires
	ttl time.Duration

	bucket string // "minute" (default) or "none"

	trackKeys bool
}

// RedisStatsOption configures a RedisStatsStore
type RedisStatsOption func(*RedisStatsStore)

// WithStatsPrefix sets the key prefix, surrounding colons are trimmed
func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		if p := strings.Trim(prefix, ":"); p != "" {
			s.prefix = p
		}
	}
}

// WithStatsTTL sets the expiry of bucketed and per key hashes
func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

// WithStatsBucket selects "minute" buckets or "none"
func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

// WithStatsTrackKeys also counts per client identity
func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

// NewRedisStatsStore creates a store on top of an existing client
func NewRedisStatsStore(rdb *redis.Client, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "ratelimit:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// redisIncr is one HINCRBY of the pipeline
type redisIncr struct {
	key    string
	field  string
	expire bool
}

// increments lists the hash fields touched by ev
func (s *RedisStatsStore) increments(ev StatsEvent) []redisIncr {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	field := "denied"
	if ev.Allowed {
		field = "allowed"
	}

	out := []redisIncr{{key: s.prefix + ":total", field: field}}

	if s.bucket == "minute" {
		out = append(out, redisIncr{
			key:    fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504")),
			field:  field,
			expire: true,
		})
	}

	if route := strings.TrimSpace(RouteField(strings.TrimSpace(ev.Method), strings.TrimSpace(ev.Path))); route != "" {
		out = append(out, redisIncr{key: s.prefix + ":route", field: route + ":" + field})
	}

	if s.trackKeys {
		if k := strings.TrimSpace(ev.Key); k != "" {
			out = append(out, redisIncr{key: s.prefix + ":key:" + k, field: field, expire: true})
		}
	}

	return out
}

// Record writes every counter of ev in one pipeline. A nil client is a no-op.
func (s *RedisStatsStore) Record(ctx context.Context, ev StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	pipe := s.rdb.Pipeline()
	for _, inc := range s.increments(ev) {
		pipe.HIncrBy(ctx, inc.key, inc.field, 1)
		if inc.expire && s.ttl > 0 {
			pipe.Expire(ctx, inc.key, s.ttl)
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}

// Total reads the overall counters
func (s *RedisStatsStore) Total(ctx context.Context) (Counters, error) {
	vals, err := s.rdb.HGetAll(ctx, s.prefix+":total").Result()
	if err != nil {
		return Counters{}, err
	}

	var c Counters
	if _, err := fmt.Sscan(defaultZero(vals["allowed"]), &c.Allowed); err != nil {
		return Counters{}, fmt.Errorf("failed to parse allowed counter: %w", err)
	}
	if _, err := fmt.Sscan(defaultZero(vals["denied"]), &c.Denied); err != nil {
		return Counters{}, fmt.Errorf("failed to parse denied counter: %w", err)
	}
	return c, nil
}

func defaultZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
