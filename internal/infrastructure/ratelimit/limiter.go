// Package ratelimit implements the inbound request limiter and its decision statistics
package ratelimit

import (
	"math"
	"sync"
	"time"
)

const (
	// DefaultPoints is the number of requests admitted per window
	DefaultPoints = 100
	// DefaultDuration is the window length
	DefaultDuration = 60 * time.Second
)

// Decision is the outcome of a Consume call
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	// RetryAfter is the time left until the window resets. Zero when allowed.
	RetryAfter time.Duration
	// Window is the limiter's window length
	Window     time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, at least 1 when
// rejected and never more than the whole seconds of Window
func (d Decision) RetryAfterSeconds() int {
	if d.Allowed {
		return 0
	}
	secs := int(math.Ceil(d.RetryAfter.Seconds()))
	if d.Window > 0 {
		if limit := int(d.Window / time.Second); secs > limit {
			secs = limit
		}
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}

// window is the per identity counter
type window struct {
	count int
	start time.Time
}

// FixedWindowLimiter admits at most points requests per identity in each window.
// A window opens on the first request of an identity and resets duration later.
type FixedWindowLimiter struct {
	mu       sync.Mutex
	windows  map[string]*window
	points   int
	duration time.Duration
	now      func() time.Time
}

// LimiterOption configures a FixedWindowLimiter
type LimiterOption func(*FixedWindowLimiter)

// WithLimiterClock replaces time.Now, mostly for tests
func WithLimiterClock(now func() time.Time) LimiterOption {
	return func(l *FixedWindowLimiter) {
		if now != nil {
			l.now = now
		}
	}
}

// NewFixedWindowLimiter creates a limiter. Non-positive arguments fall back to 100 per 60s.
func NewFixedWindowLimiter(points int, duration time.Duration, opts ...LimiterOption) *FixedWindowLimiter {
	if points <= 0 {
		points = DefaultPoints
	}
	if duration <= 0 {
		duration = DefaultDuration
	}

	l := &FixedWindowLimiter{
		windows:  make(map[string]*window),
		points:   points,
		duration: duration,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Points returns the configured requests per window
func (l *FixedWindowLimiter) Points() int { return l.points }

// Duration returns the configured window length
func (l *FixedWindowLimiter) Duration() time.Duration { return l.duration }

// Consume counts one request for identity and decides whether it is admitted
func (l *FixedWindowLimiter) Consume(identity string) Decision {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[identity]
	if !ok || !now.Before(w.start.Add(l.duration)) {
		w = &window{start: now}
		l.windows[identity] = w
	}

	if w.count >= l.points {
		return Decision{
			Allowed:    false,
			Limit:      l.points,
			Remaining:  0,
			RetryAfter: w.start.Add(l.duration).Sub(now),
			Window:     l.duration,
		}
	}

	w.count++
	return Decision{
		Allowed:   true,
		Limit:     l.points,
		Remaining: l.points - w.count,
		Window:    l.duration,
	}
}

// Cleanup drops identities whose window has elapsed and returns how many were removed.
// Such entries would be reset on the next request anyway.
func (l *FixedWindowLimiter) Cleanup() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for id, w := range l.windows {
		if !now.Before(w.start.Add(l.duration)) {
			delete(l.windows, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked identities
func (l *FixedWindowLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
