// Package search resolves company queries against a primary search engine with an in-process fallback.
package search

import (
	"context"

	"github.com/hyperjump/biznesinfo/internal/models"
)

// Backend is a company search engine. Implementations must honor the query's
// text, service, keyword, region and city filters and its offset/limit page.
type Backend interface {
	Name() string
	Health(ctx context.Context) error
	Search(ctx context.Context, q *models.SearchQuery) (*models.SearchResult, error)
}
