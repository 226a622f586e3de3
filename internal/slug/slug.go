// Package slug normalizes company identifiers to their canonical display form.
package slug

import (
	"regexp"
	"strings"
)

// Separator joins the letter and digit runs of a canonical slug.
const Separator = "-"

var compactID = regexp.MustCompile(`^(\p{L}+)(\p{N}+)$`)

// Canonicalize returns the canonical slug for a raw catalog id.
// Ids that already contain a separator are returned unchanged; a compact
// legacy id such as "minsk123" or "гомель42" gets a separator between its
// letter run and digit run. Letter case is preserved.
func Canonicalize(id string) string {
	if strings.Contains(id, Separator) {
		return id
	}
	m := compactID.FindStringSubmatch(id)
	if m == nil {
		return id
	}
	return m[1] + Separator + m[2]
}

// IsCanonical reports whether id is already in canonical form.
func IsCanonical(id string) bool {
	return Canonicalize(id) == id
}

// Dedupe returns the indices of ids to keep so that each canonical slug appears once.
// The kept index for a slug sits at the position where the slug was first seen;
// if a later id is already canonical while the first-seen one is not, the later
// index replaces it in that position.
func Dedupe(ids []string) []int {
	keep := make([]int, 0, len(ids))
	pos := make(map[string]int, len(ids))
	for i, id := range ids {
		canon := Canonicalize(id)
		p, seen := pos[canon]
		if !seen {
			pos[canon] = len(keep)
			keep = append(keep, i)
			continue
		}
		if ids[keep[p]] != canon && id == canon {
			keep[p] = i
		}
	}
	return keep
}
