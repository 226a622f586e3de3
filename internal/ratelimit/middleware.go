package ratelimit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
	"github.com/hyperjump/biznesinfo/pkg/metrics"
	"go.uber.org/zap"
)

// Rule is a limit per window for one key class (e.g. "search", "assistant").
type Rule struct {
	Class  string
	Limit  int
	Window time.Duration
}

// KeyFunc derives the limiter key from a request.
type KeyFunc func(r *http.Request) (string, error)

// Middleware rejects requests over the rule's limit with 429 and a Retry-After header.
// When keyFn is nil the client IP is used. Keys are prefixed with the rule class.
func Middleware(l *Limiter, rule Rule, keyFn KeyFunc, logger *zap.Logger) func(http.Handler) http.Handler {
	if keyFn == nil {
		keyFn = httprate.KeyByIP
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rule.Limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			key, err := keyFn(r)
			if err != nil || key == "" {
				key, _ = httprate.KeyByIP(r)
			}
			d := l.Check(rule.Class+":"+key, rule.Limit, rule.Window)
			if d.Allowed {
				next.ServeHTTP(w, r)
				return
			}
			metrics.RateLimited.WithLabelValues(rule.Class).Inc()
			logger.Debug("rate limited", zap.String("class", rule.Class), zap.String("key", key), zap.Int64("retry_after_ms", d.RetryAfterMs))
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSeconds(d.RetryAfterMs), 10))
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"error":          "rate limit exceeded",
				"retry_after_ms": d.RetryAfterMs,
			})
		})
	}
}

func retryAfterSeconds(ms int64) int64 {
	s := (ms + 999) / 1000
	if s < 1 {
		return 1
	}
	return s
}
