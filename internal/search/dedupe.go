package search

import (
	"github.com/hyperjump/biznesinfo/internal/models"
	"github.com/hyperjump/biznesinfo/internal/slug"
)

// Dedupe removes companies whose ids canonicalize to the same slug, preferring the
// entry whose raw id is already canonical, at the position of the first-seen entry.
// Kept entries get their Slug set. Returns the kept list and the number removed.
func Dedupe(companies []*models.Company) ([]*models.Company, int) {
	ids := make([]string, len(companies))
	for i, c := range companies {
		ids[i] = c.ID
	}
	keep := slug.Dedupe(ids)
	out := make([]*models.Company, 0, len(keep))
	for _, i := range keep {
		c := companies[i]
		c.Slug = slug.Canonicalize(c.ID)
		out = append(out, c)
	}
	return out, len(companies) - len(keep)
}
