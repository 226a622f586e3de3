// Package ratelimit provides a process-local fixed-window rate limiter and HTTP middleware.
package ratelimit

import (
	"sync"
	"time"
)

// sweepEvery is the number of Check calls between sweeps of expired buckets.
const sweepEvery = 1024

// Decision is the outcome of a Check. RetryAfterMs is set only when the call is denied.
type Decision struct {
	Allowed      bool
	RetryAfterMs int64
}

type bucket struct {
	count   int
	resetAt time.Time
}

// Limiter counts calls per key in fixed windows. It is safe for concurrent use.
// Counts live in memory and are not shared across processes.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	calls   int
	now     func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock sets the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates an empty limiter.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check records one call for key and reports whether it fits within limit calls per window.
// A new window starts with count=1 the first time a key is seen or after its window elapsed.
func (l *Limiter) Check(key string, limit int, window time.Duration) Decision {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls++
	if l.calls%sweepEvery == 0 {
		l.sweepLocked(now)
	}

	b, ok := l.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		l.buckets[key] = &bucket{count: 1, resetAt: now.Add(window)}
		if limit < 1 {
			return Decision{Allowed: false, RetryAfterMs: window.Milliseconds()}
		}
		return Decision{Allowed: true}
	}
	b.count++
	if b.count <= limit {
		return Decision{Allowed: true}
	}
	retry := b.resetAt.Sub(now).Milliseconds()
	if retry < 0 {
		retry = 0
	}
	return Decision{Allowed: false, RetryAfterMs: retry}
}

// Len returns the number of tracked buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Sweep drops buckets whose window has elapsed.
func (l *Limiter) Sweep() {
	now := l.now()
	l.mu.Lock()
	l.sweepLocked(now)
	l.mu.Unlock()
}

func (l *Limiter) sweepLocked(now time.Time) {
	for k, b := range l.buckets {
		if !now.Before(b.resetAt) {
			delete(l.buckets, k)
		}
	}
}
