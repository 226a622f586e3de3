// Package catalog holds the in-process company catalog used as the fallback search backend.
package catalog

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hyperjump/biznesinfo/internal/models"
	"github.com/hyperjump/biznesinfo/internal/slug"
	"github.com/hyperjump/biznesinfo/pkg/utils"
	"go.uber.org/zap"
)

// maxLineBytes bounds a single JSONL record.
const maxLineBytes = 4 << 20

// LoadStats reports how many records a load kept and skipped.
type LoadStats struct {
	Loaded     int
	Skipped    int
	Duplicates int
}

// Catalog is an immutable-per-generation list of companies with precomputed search text.
// Replace and Reload swap the whole generation under a write lock.
type Catalog struct {
	mu      sync.RWMutex
	path    string
	entries []*entry
	byID    map[string]*entry
	logger  *zap.Logger
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the catalog logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Catalog) { c.logger = l }
}

// WithPath sets the file Reload reads. Open sets it implicitly.
func WithPath(path string) Option {
	return func(c *Catalog) { c.path = path }
}

// New builds a catalog from companies. Records are normalized and deduplicated by canonical slug.
func New(companies []*models.Company, opts ...Option) *Catalog {
	c := &Catalog{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	c.Replace(companies)
	return c
}

// Open loads the catalog file at path (.jsonl, .json or .xlsx).
func Open(path string, opts ...Option) (*Catalog, error) {
	c := &Catalog{path: path, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Path returns the file the catalog was loaded from, if any.
func (c *Catalog) Path() string {
	return c.path
}

// Reload re-reads the catalog file and swaps it in. The previous generation
// stays in place when reading fails.
func (c *Catalog) Reload() error {
	if c.path == "" {
		return fmt.Errorf("catalog has no source path")
	}
	companies, stats, err := ReadFile(c.path)
	if err != nil {
		return err
	}
	dups := c.Replace(companies)
	c.logger.Info("catalog loaded",
		zap.String("path", c.path),
		zap.Int("companies", stats.Loaded-dups),
		zap.Int("skipped", stats.Skipped),
		zap.Int("duplicates", dups),
	)
	return nil
}

// Replace normalizes companies and installs them as the current generation.
// Returns the number of records dropped as slug duplicates.
func (c *Catalog) Replace(companies []*models.Company) int {
	valid := make([]*models.Company, 0, len(companies))
	for _, co := range companies {
		if co == nil {
			continue
		}
		Normalize(co)
		if co.ID == "" {
			continue
		}
		valid = append(valid, co)
	}
	ids := make([]string, len(valid))
	for i, co := range valid {
		ids[i] = co.ID
	}
	keep := slug.Dedupe(ids)

	entries := make([]*entry, 0, len(keep))
	byID := make(map[string]*entry, len(keep)*2)
	for _, i := range keep {
		e := newEntry(valid[i], len(entries))
		entries = append(entries, e)
		byID[e.company.ID] = e
		byID[e.slug] = e
	}
	for _, co := range valid {
		// legacy aliases resolve to the kept record
		if _, ok := byID[co.ID]; !ok {
			byID[co.ID] = byID[slug.Canonicalize(co.ID)]
		}
	}

	c.mu.Lock()
	c.entries = entries
	c.byID = byID
	c.mu.Unlock()
	return len(valid) - len(keep)
}

// Get returns a company by raw id or canonical slug.
func (c *Catalog) Get(id string) (*models.Company, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byID[id]
	if !ok {
		e, ok = c.byID[slug.Canonicalize(id)]
	}
	if !ok || e == nil {
		return nil, false
	}
	return e.view(), true
}

// All returns every company in catalog order.
func (c *Catalog) All() []*models.Company {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*models.Company, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.company
	}
	return out
}

// Len returns the number of companies.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// ReadFile reads companies from a .jsonl/.json/.xlsx file.
func ReadFile(path string) ([]*models.Company, LoadStats, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSX(path)
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, LoadStats{}, fmt.Errorf("failed to open catalog: %w", err)
		}
		defer f.Close()
		return ReadJSONL(f)
	}
}

// ReadJSONL reads one JSON company per line. Blank lines are ignored;
// malformed lines are skipped and counted.
func ReadJSONL(r io.Reader) ([]*models.Company, LoadStats, error) {
	var stats LoadStats
	var out []*models.Company
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var co models.Company
		if err := json.Unmarshal([]byte(line), &co); err != nil {
			stats.Skipped++
			continue
		}
		out = append(out, &co)
		stats.Loaded++
	}
	if err := sc.Err(); err != nil {
		return nil, stats, fmt.Errorf("failed to read catalog: %w", err)
	}
	return out, stats, nil
}

// WriteJSONL writes companies one per line.
func WriteJSONL(w io.Writer, companies []*models.Company) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, co := range companies {
		if err := enc.Encode(co); err != nil {
			return fmt.Errorf("failed to write company %s: %w", co.ID, err)
		}
	}
	return nil
}

// Name identifies the catalog as a search backend.
func (c *Catalog) Name() string {
	return "catalog"
}

// Health always succeeds; the catalog is in memory.
func (c *Catalog) Health(ctx context.Context) error {
	return nil
}

// Search scans the catalog with the query's filters and text. With no text
// signal it returns the filtered catalog page in catalog order.
func (c *Catalog) Search(ctx context.Context, q *models.SearchQuery) (*models.SearchResult, error) {
	terms := newTerms(q)
	city := utils.Fold(q.City)
	region := utils.Fold(q.Region)

	c.mu.RLock()
	matches := make([]scored, 0, 64)
	for _, e := range c.entries {
		if city != "" && e.city != city {
			continue
		}
		if region != "" && e.region != region {
			continue
		}
		score := 0
		if !terms.empty() {
			score = e.score(terms)
			if score == 0 {
				continue
			}
		}
		matches = append(matches, scored{e: e, score: score})
	}
	c.mu.RUnlock()

	sortScored(matches)

	res := &models.SearchResult{Total: len(matches), Companies: []*models.Company{}}
	if q.Offset >= len(matches) {
		return res, nil
	}
	end := q.Offset + q.Limit
	if q.Limit <= 0 || end > len(matches) {
		end = len(matches)
	}
	for _, m := range matches[q.Offset:end] {
		res.Companies = append(res.Companies, m.e.view())
	}
	return res, nil
}
