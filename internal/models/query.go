package models

import (
	"strconv"
	"strings"
)

const (
	// DefaultSearchLimit is used when the limit is absent or unparsable.
	DefaultSearchLimit = 24
	// MaxSearchLimit caps the page size when no other bound is configured.
	MaxSearchLimit = 100
)

// SearchQuery represents a company search request with optional filters.
type SearchQuery struct {
	Query    string `json:"q"`
	Service  string `json:"service,omitempty"`
	Keywords string `json:"keywords,omitempty"`
	Region   string `json:"region,omitempty"`
	City     string `json:"city,omitempty"`
	Offset   int    `json:"offset"`
	Limit    int    `json:"limit"`
}

// Normalize trims text fields and clamps pagination. Offsets below zero become 0,
// limits outside [1, maxLimit] become defaultLimit or maxLimit.
func (q *SearchQuery) Normalize(defaultLimit, maxLimit int) {
	if defaultLimit <= 0 {
		defaultLimit = DefaultSearchLimit
	}
	if maxLimit <= 0 {
		maxLimit = MaxSearchLimit
	}
	q.Query = strings.TrimSpace(q.Query)
	q.Service = strings.TrimSpace(q.Service)
	q.Keywords = strings.TrimSpace(q.Keywords)
	q.Region = strings.TrimSpace(q.Region)
	q.City = strings.TrimSpace(q.City)
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
}

// HasTextSignal reports whether the query carries any text to match on.
// Region alone is a filter, not a signal; a query without signal is a browse request.
func (q *SearchQuery) HasTextSignal() bool {
	return strings.TrimSpace(q.Query) != "" ||
		strings.TrimSpace(q.Service) != "" ||
		strings.TrimSpace(q.Keywords) != "" ||
		strings.TrimSpace(q.City) != ""
}

// Text returns query, service and keywords joined by spaces, skipping empty parts.
func (q *SearchQuery) Text() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{q.Query, q.Service, q.Keywords} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// ParseIntDefault parses s as a base-10 int, returning def when s is empty or invalid.
func ParseIntDefault(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
