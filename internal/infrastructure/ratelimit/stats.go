package ratelimit

import (
	"context"
	"sync"
	"time"
)

// StatsEvent describes one limiter decision
type StatsEvent struct {
	Key     string
	Allowed bool

	Method string
	Path   string

	At time.Time
}

// StatsStore persists limiter decisions. Recording is best effort and must
// never fail the request being served.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}

// Counters holds allowed and denied totals
type Counters struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

// UnmatchedRoute is the route label for requests no route serves
const UnmatchedRoute = "unmatched"

// RouteField is the key used for per route counters
func RouteField(method, path string) string {
	return method + " " + path
}

// MemoryStatsStore keeps counters in memory. It never expires anything.
type MemoryStatsStore struct {
	mu      sync.Mutex
	total   Counters
	byRoute map[string]Counters
	byKey   map[string]Counters

	trackKeys bool
}

// MemoryStatsOption configures a MemoryStatsStore
type MemoryStatsOption func(*MemoryStatsStore)

// WithTrackKeys enables per identity counters
func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

// NewMemoryStatsStore creates an empty in-memory store
func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byRoute: make(map[string]Counters),
		byKey:   make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record counts ev
func (s *MemoryStatsStore) Record(_ context.Context, ev StatsEvent) error {
	route := RouteField(ev.Method, ev.Path)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total = bump(s.total, ev.Allowed)
	s.byRoute[route] = bump(s.byRoute[route], ev.Allowed)
	if s.trackKeys {
		s.byKey[ev.Key] = bump(s.byKey[ev.Key], ev.Allowed)
	}
	return nil
}

func bump(c Counters, allowed bool) Counters {
	if allowed {
		c.Allowed++
	} else {
		c.Denied++
	}
	return c
}

// Total returns the overall counters
func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// ByRoute returns a copy of the per route counters
func (s *MemoryStatsStore) ByRoute() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byRoute))
	for k, v := range s.byRoute {
		out[k] = v
	}
	return out
}

// ByKey returns a copy of the per identity counters
func (s *MemoryStatsStore) ByKey() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byKey))
	for k, v := range s.byKey {
		out[k] = v
	}
	return out
}
