package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/biznesinfo/internal/models"
	"github.com/hyperjump/biznesinfo/pkg/metrics"
	"go.uber.org/zap"
)

const defaultHealthTimeout = 1500 * time.Millisecond

// Fallback reasons reported to metrics and logs.
const (
	reasonNoPrimary = "no_primary"
	reasonUnhealthy = "unhealthy"
	reasonError     = "error"
	reasonEmpty     = "empty"
)

// Resolver runs a query against the primary backend and falls back to an
// in-process backend when the primary is unhealthy, fails, or finds nothing.
type Resolver struct {
	primary       Backend
	fallback      Backend
	logger        *zap.Logger
	defaultLimit  int
	maxLimit      int
	healthTimeout time.Duration
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithPrimary sets the primary backend. Without one every query goes to the fallback.
func WithPrimary(b Backend) Option {
	return func(r *Resolver) { r.primary = b }
}

// WithLogger sets the resolver logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithLimits sets the default and maximum page size.
func WithLimits(defaultLimit, maxLimit int) Option {
	return func(r *Resolver) {
		r.defaultLimit = defaultLimit
		r.maxLimit = maxLimit
	}
}

// WithHealthTimeout bounds the primary health check.
func WithHealthTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.healthTimeout = d
		}
	}
}

// NewResolver creates a resolver over fallback, which must always answer.
func NewResolver(fallback Backend, opts ...Option) *Resolver {
	r := &Resolver{
		fallback:      fallback,
		logger:        zap.NewNop(),
		defaultLimit:  models.DefaultSearchLimit,
		maxLimit:      models.MaxSearchLimit,
		healthTimeout: defaultHealthTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Search resolves q to a page of deduplicated companies. It never fails: primary
// errors are logged and recovered through the fallback, and a failing fallback
// yields an empty result.
func (r *Resolver) Search(ctx context.Context, in models.SearchQuery) *models.SearchResult {
	q := in
	q.Normalize(r.defaultLimit, r.maxLimit)
	browse := !q.HasTextSignal()
	if q.City == "" {
		if city, ok := InferCity(q.Text()); ok {
			q.City = city
		}
	}

	res, err := r.searchPrimary(ctx, &q, browse)
	if err == nil {
		backend := models.BackendPrimary
		if browse {
			backend = models.BackendBrowse
		}
		return r.finish(res, backend, q.City)
	}

	reason := fallbackReason(err)
	metrics.SearchFallbacks.WithLabelValues(reason).Inc()
	if reason != reasonNoPrimary {
		r.logger.Warn("primary search unavailable, using fallback",
			zap.String("reason", reason),
			zap.String("query", q.Query),
			zap.String("city", q.City),
			zap.Error(err),
		)
	}

	res, err = r.fallback.Search(ctx, &q)
	if err != nil {
		r.logger.Error("fallback search failed", zap.String("backend", r.fallback.Name()), zap.Error(err))
		res = models.EmptyResult()
	}
	return r.finish(res, models.BackendFallback, q.City)
}

type fallbackError struct {
	reason string
	err    error
}

func (e *fallbackError) Error() string {
	if e.err == nil {
		return e.reason
	}
	return fmt.Sprintf("%s: %v", e.reason, e.err)
}

func (e *fallbackError) Unwrap() error {
	return models.ErrBackendUnavailable
}

func fallbackReason(err error) string {
	var fe *fallbackError
	if errors.As(err, &fe) {
		return fe.reason
	}
	return reasonError
}

// searchPrimary returns the primary result when it is usable for q.
func (r *Resolver) searchPrimary(ctx context.Context, q *models.SearchQuery, browse bool) (*models.SearchResult, error) {
	if r.primary == nil {
		return nil, &fallbackError{reason: reasonNoPrimary}
	}
	hctx, cancel := context.WithTimeout(ctx, r.healthTimeout)
	err := r.primary.Health(hctx)
	cancel()
	if err != nil {
		return nil, &fallbackError{reason: reasonUnhealthy, err: err}
	}
	res, err := r.primary.Search(ctx, q)
	if err != nil {
		return nil, &fallbackError{reason: reasonError, err: err}
	}
	if res == nil {
		res = models.EmptyResult()
	}
	if browse {
		return res, nil
	}
	if len(res.Companies) == 0 {
		return nil, &fallbackError{reason: reasonEmpty}
	}
	return res, nil
}

func (r *Resolver) finish(res *models.SearchResult, backend, city string) *models.SearchResult {
	companies, removed := Dedupe(res.Companies)
	total := res.Total - removed
	if total < len(companies) {
		total = len(companies)
	}
	metrics.SearchRequests.WithLabelValues(backend).Inc()
	return &models.SearchResult{
		Companies: companies,
		Total:     total,
		Backend:   backend,
		City:      city,
	}
}
