// Package metrics defines the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SearchRequests counts resolved searches by the backend that produced the result.
	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biznesinfo_search_requests_total",
			Help: "Resolved search requests by producing backend",
		},
		[]string{"backend"},
	)

	// SearchFallbacks counts fallbacks from the primary backend by reason.
	SearchFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biznesinfo_search_fallbacks_total",
			Help: "Searches served by the fallback catalog, by reason",
		},
		[]string{"reason"},
	)

	// LockDecisions counts admission lock outcomes (acquired, busy, degraded).
	LockDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biznesinfo_lock_decisions_total",
			Help: "Admission lock decisions by outcome",
		},
		[]string{"outcome"},
	)

	// RateLimited counts rejected requests by key class.
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biznesinfo_rate_limited_total",
			Help: "Requests rejected by the rate limiter, by class",
		},
		[]string{"class"},
	)

	// AssistantDuration observes end-to-end assistant request latency.
	AssistantDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "biznesinfo_assistant_duration_seconds",
			Help:    "Assistant request duration by outcome",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"outcome"},
	)

	// TurnsAppended counts persisted conversation turns.
	TurnsAppended = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "biznesinfo_turns_appended_total",
			Help: "Conversation turns persisted",
		},
	)
)
