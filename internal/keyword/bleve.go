package keyword

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/biznesinfo/internal/models"
	"github.com/hyperjump/biznesinfo/pkg/utils"
	"go.uber.org/zap"
)

const (
	batchSize = 500
	nameBoost = 3.0
)

// ErrClosed is returned by operations on a closed index.
var ErrClosed = errors.New("keyword index closed")

// CompanyIndex is a Bleve index over catalog companies.
type CompanyIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	closed bool
	lookup Lookup
	logger *zap.Logger
}

// NewCompanyIndex creates or opens the index at path. An empty path creates an
// in-memory index. If the path already exists the index is reopened; a mapping
// change requires removing the directory.
func NewCompanyIndex(path string, lookup Lookup, logger *zap.Logger) (*CompanyIndex, error) {
	ci := &CompanyIndex{lookup: lookup, logger: utils.OrNop(logger)}

	if path == "" {
		idx, err := bleve.NewMemOnly(newMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		ci.index = idx
		return ci, nil
	}

	if _, err := os.Stat(path); err == nil {
		idx, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		ci.index = idx
		return ci, nil
	}

	idx, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	ci.index = idx
	return ci, nil
}

// Name identifies the backend in logs.
func (ci *CompanyIndex) Name() string {
	return "bleve"
}

// Health fails when the index is closed or holds no documents.
func (ci *CompanyIndex) Health(ctx context.Context) error {
	n, err := ci.DocCount()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.New("keyword index is empty")
	}
	return nil
}

// DocCount returns the number of indexed companies.
func (ci *CompanyIndex) DocCount() (uint64, error) {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	if ci.closed {
		return 0, ErrClosed
	}
	return ci.index.DocCount()
}

// Rebuild indexes companies in batches and removes documents that are no longer
// present. Catalog order is recorded for browse sorting.
func (ci *CompanyIndex) Rebuild(ctx context.Context, companies []*models.Company) error {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	if ci.closed {
		return ErrClosed
	}

	keep := make(map[string]struct{}, len(companies))
	batch := ci.index.NewBatch()
	for i, c := range companies {
		if c == nil || c.ID == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		keep[c.ID] = struct{}{}
		if err := batch.Index(c.ID, document(c, i)); err != nil {
			return fmt.Errorf("index company %s: %w", c.ID, err)
		}
		if batch.Size() >= batchSize {
			if err := ci.index.Batch(batch); err != nil {
				return fmt.Errorf("Bleve batch failed: %w", err)
			}
			batch.Reset()
		}
	}

	stale, err := ci.staleIDs(keep)
	if err != nil {
		return err
	}
	for _, id := range stale {
		batch.Delete(id)
	}
	if batch.Size() > 0 {
		if err := ci.index.Batch(batch); err != nil {
			return fmt.Errorf("Bleve batch failed: %w", err)
		}
	}
	ci.logger.Info("keyword index rebuilt",
		zap.Int("companies", len(keep)),
		zap.Int("removed", len(stale)),
	)
	return nil
}

// staleIDs lists indexed ids missing from keep. Caller holds the lock.
func (ci *CompanyIndex) staleIDs(keep map[string]struct{}) ([]string, error) {
	count, err := ci.index.DocCount()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(count)
	res, err := ci.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve scan failed: %w", err)
	}
	var stale []string
	for _, hit := range res.Hits {
		if _, ok := keep[hit.ID]; !ok {
			stale = append(stale, hit.ID)
		}
	}
	return stale, nil
}

// Search runs q against the index. Text terms match any text field with the
// name boosted; city and region are exact filters. A query without
// text signal lists companies in catalog order.
func (ci *CompanyIndex) Search(ctx context.Context, q *models.SearchQuery) (*models.SearchResult, error) {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	if ci.closed {
		return nil, ErrClosed
	}

	req := bleve.NewSearchRequestOptions(buildQuery(q), q.Limit, q.Offset, false)
	if q.Query == "" && q.Service == "" && q.Keywords == "" {
		req.SortBy([]string{fieldOrder})
	} else {
		req.SortBy([]string{"-_score", fieldOrder})
	}
	res, err := ci.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	out := &models.SearchResult{Companies: make([]*models.Company, 0, len(res.Hits)), Total: int(res.Total)}
	for _, hit := range res.Hits {
		c, ok := ci.lookup(hit.ID)
		if !ok {
			out.Total--
			continue
		}
		out.Companies = append(out.Companies, c)
	}
	return out, nil
}

// Close closes the index. Further calls return ErrClosed.
func (ci *CompanyIndex) Close() error {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	if ci.closed {
		return nil
	}
	ci.closed = true
	return ci.index.Close()
}

func buildQuery(q *models.SearchQuery) blevequery.Query {
	var must []blevequery.Query

	if text := strings.TrimSpace(strings.Join([]string{q.Query, q.Keywords}, " ")); text != "" {
		must = append(must, textQuery(text))
	}
	if q.Service != "" {
		must = append(must, bleve.NewDisjunctionQuery(
			fieldMatch(q.Service, fieldCategories, 1),
			fieldMatch(q.Service, fieldRubrics, 1),
		))
	}
	if city := utils.Fold(q.City); city != "" {
		must = append(must, termQuery(city, fieldCity))
	}
	if region := utils.Fold(q.Region); region != "" {
		must = append(must, termQuery(region, fieldRegion))
	}

	if len(must) == 0 {
		return bleve.NewMatchAllQuery()
	}
	if len(must) == 1 {
		return must[0]
	}
	return bleve.NewConjunctionQuery(must...)
}

func textQuery(text string) blevequery.Query {
	return bleve.NewDisjunctionQuery(
		fieldMatch(text, fieldName, nameBoost),
		fieldMatch(text, fieldCategories, 1),
		fieldMatch(text, fieldRubrics, 1),
		fieldMatch(text, fieldDescription, 1),
	)
}

func fieldMatch(text, field string, boost float64) blevequery.Query {
	mq := bleve.NewMatchQuery(text)
	mq.SetField(field)
	if boost != 1 {
		mq.SetBoost(boost)
	}
	return mq
}

func termQuery(term, field string) blevequery.Query {
	tq := bleve.NewTermQuery(term)
	tq.SetField(field)
	return tq
}
