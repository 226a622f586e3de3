package search

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hyperjump/biznesinfo/internal/models"
)

// Meili is a primary backend for a Meilisearch-compatible HTTP engine.
type Meili struct {
	client *resty.Client
	index  string
}

type meiliSearchRequest struct {
	Q      string   `json:"q"`
	Offset int      `json:"offset"`
	Limit  int      `json:"limit"`
	Filter []string `json:"filter,omitempty"`
}

type meiliSearchResponse struct {
	Hits               []*models.Company `json:"hits"`
	EstimatedTotalHits int               `json:"estimatedTotalHits"`
	TotalHits          int               `json:"totalHits"`
}

type meiliHealth struct {
	Status string `json:"status"`
}

// NewMeili creates a client for the engine at baseURL searching index.
func NewMeili(baseURL, apiKey, index string, timeout time.Duration) *Meili {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	if apiKey != "" {
		c.SetAuthToken(apiKey)
	}
	return &Meili{client: c, index: index}
}

// Name identifies the backend.
func (m *Meili) Name() string {
	return "meilisearch"
}

// Health reports an error unless the engine answers {"status":"available"}.
func (m *Meili) Health(ctx context.Context) error {
	var out meiliHealth
	resp, err := m.client.R().SetContext(ctx).SetResult(&out).Get("/health")
	if err != nil {
		return fmt.Errorf("meilisearch health: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("meilisearch health: status %d", resp.StatusCode())
	}
	if out.Status != "available" {
		return fmt.Errorf("meilisearch health: status %q", out.Status)
	}
	return nil
}

// Search queries the index with query, service and keywords as text and city/region as filters.
func (m *Meili) Search(ctx context.Context, q *models.SearchQuery) (*models.SearchResult, error) {
	body := meiliSearchRequest{
		Q:      q.Text(),
		Offset: q.Offset,
		Limit:  q.Limit,
		Filter: meiliFilters(q),
	}
	var out meiliSearchResponse
	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(&body).
		SetResult(&out).
		Post("/indexes/" + m.index + "/search")
	if err != nil {
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("meilisearch search: status %d: %s", resp.StatusCode(), resp.String())
	}
	total := out.TotalHits
	if total == 0 {
		total = out.EstimatedTotalHits
	}
	if out.Hits == nil {
		out.Hits = []*models.Company{}
	}
	return &models.SearchResult{Companies: out.Hits, Total: total}, nil
}

func meiliFilters(q *models.SearchQuery) []string {
	var f []string
	if q.City != "" {
		f = append(f, "city = "+meiliQuote(q.City))
	}
	if q.Region != "" {
		f = append(f, "region = "+meiliQuote(q.Region))
	}
	return f
}

var meiliEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// meiliQuote renders v as a double-quoted filter string. Only backslash and
// double quote are escaped; everything else is passed through as is.
func meiliQuote(v string) string {
	return `"` + meiliEscaper.Replace(v) + `"`
}
