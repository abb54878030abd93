package cache

import (
	"sync"
	"time"
)

// DefaultTTL is used when Set is called without a positive ttl
const DefaultTTL = 5 * time.Minute

// entry is a cached value with its expiration time
type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache provides a thread-safe in-memory cache where every entry expires after a ttl.
// Expiration is lazy on read; Sweep removes expired entries in bulk.
type TTLCache[K comparable, V any] struct {
	entries    map[K]entry[V]
	defaultTTL time.Duration
	now        func() time.Time
	mutex      sync.RWMutex
}

// Option configures a TTLCache
type Option func(*options)

type options struct {
	defaultTTL time.Duration
	now        func() time.Time
}

// WithDefaultTTL overrides the ttl used when Set receives a non-positive ttl
func WithDefaultTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.defaultTTL = d
		}
	}
}

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// NewTTLCache creates a new TTL cache
func NewTTLCache[K comparable, V any](opts ...Option) *TTLCache[K, V] {
	o := options{
		defaultTTL: DefaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &TTLCache[K, V]{
		entries:    make(map[K]entry[V]),
		defaultTTL: o.defaultTTL,
		now:        o.now,
	}
}

// Get retrieves a value if present and not expired
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	e, exists := c.entries[key]
	if !exists || !c.now().Before(e.expiresAt) {
		var zero V
		return zero, false
	}

	return e.value, true
}

// Set stores a value, replacing any previous entry for the key
func (c *TTLCache[K, V]) Set(key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[key] = entry[V]{
		value:     value,
		expiresAt: c.now().Add(ttl),
	}
}

// Delete removes the entry for key. Deleting a missing key is a no-op.
func (c *TTLCache[K, V]) Delete(key K) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.entries, key)
}

// Clear clears all entries from the cache
func (c *TTLCache[K, V]) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[K]entry[V])
}

// DefaultTTL returns the ttl applied when Set gets a non-positive ttl
func (c *TTLCache[K, V]) DefaultTTL() time.Duration {
	return c.defaultTTL
}

// Len returns the number of stored entries, including expired ones not yet swept
func (c *TTLCache[K, V]) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.entries)
}

// Sweep removes expired entries from the cache and returns how many were removed
func (c *TTLCache[K, V]) Sweep() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	count := 0
	now := c.now()

	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
			count++
		}
	}

	return count
}
