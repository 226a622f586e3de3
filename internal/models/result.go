package models

// Result backends reported in SearchResult.Backend.
const (
	BackendPrimary  = "primary"
	BackendFallback = "fallback"
	BackendBrowse   = "browse"
)

// SearchResult is an ordered page of companies plus the total match count.
// Order is the producing backend's order.
type SearchResult struct {
	Companies []*Company `json:"companies"`
	Total     int        `json:"total"`
	Backend   string     `json:"backend,omitempty"`
	City      string     `json:"city,omitempty"`
}

// EmptyResult returns a result with a non-nil, empty company list.
func EmptyResult() *SearchResult {
	return &SearchResult{Companies: []*Company{}}
}
