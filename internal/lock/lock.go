// Package lock implements the per-user admission lock that lets at most one
// assistant request per user run at a time.
package lock

import (
	"context"
	"math"
	"time"

	"github.com/hyperjump/biznesinfo/pkg/metrics"
	"go.uber.org/zap"
)

// Default TTL bounds in seconds.
const (
	DefaultMinTTL = 30
	DefaultMaxTTL = 1800
)

// Lock decision outcomes.
const (
	OutcomeAcquired = "acquired"
	OutcomeBusy     = "busy"
	OutcomeDegraded = "degraded"
)

// Result is the outcome of an acquire attempt. When Acquired is false the
// owner fields describe the request currently holding the lock.
type Result struct {
	Acquired          bool
	OwnerRequestID    string
	ExpiresAt         time.Time
	RetryAfterSeconds int
	Degraded          bool
}

// Locker grants per-user admission. Extend and Release only affect a lock held
// by the same (userID, requestID) pair.
type Locker interface {
	Acquire(ctx context.Context, userID, requestID string, ttlSeconds int) (Result, error)
	Extend(ctx context.Context, userID, requestID string, ttlSeconds int) error
	Release(ctx context.Context, userID, requestID string) error
}

// Option configures a locker.
type Option func(*settings)

type settings struct {
	minTTL int
	maxTTL int
	now    func() time.Time
	logger *zap.Logger
}

func newSettings(opts []Option) settings {
	s := settings{
		minTTL: DefaultMinTTL,
		maxTTL: DefaultMaxTTL,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.maxTTL < s.minTTL {
		s.maxTTL = s.minTTL
	}
	return s
}

// WithTTLBounds overrides the TTL clamp. Non-positive values keep the defaults.
func WithTTLBounds(minSeconds, maxSeconds int) Option {
	return func(s *settings) {
		if minSeconds > 0 {
			s.minTTL = minSeconds
		}
		if maxSeconds > 0 {
			s.maxTTL = maxSeconds
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

func (s settings) ttl(seconds int) time.Duration {
	if seconds < s.minTTL {
		seconds = s.minTTL
	}
	if seconds > s.maxTTL {
		seconds = s.maxTTL
	}
	return time.Duration(seconds) * time.Second
}

// RetryAfter returns the whole seconds until expiresAt, rounded up, never negative.
func RetryAfter(expiresAt, now time.Time) int {
	d := expiresAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

func acquired(expiresAt time.Time) Result {
	metrics.LockDecisions.WithLabelValues(OutcomeAcquired).Inc()
	return Result{Acquired: true, ExpiresAt: expiresAt}
}

func busy(owner string, expiresAt, now time.Time) Result {
	metrics.LockDecisions.WithLabelValues(OutcomeBusy).Inc()
	return Result{
		OwnerRequestID:    owner,
		ExpiresAt:         expiresAt,
		RetryAfterSeconds: RetryAfter(expiresAt, now),
	}
}

func degraded(expiresAt time.Time) Result {
	metrics.LockDecisions.WithLabelValues(OutcomeDegraded).Inc()
	return Result{Acquired: true, ExpiresAt: expiresAt, Degraded: true}
}
