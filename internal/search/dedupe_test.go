package search

import (
	"testing"

	"github.com/hyperjump/biznesinfo/internal/models"
)

func companies(ids ...string) []*models.Company {
	out := make([]*models.Company, len(ids))
	for i, id := range ids {
		out[i] = &models.Company{ID: id, Name: "name " + id}
	}
	return out
}

func idsOf(cs []*models.Company) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func TestDedupe_PrefersCanonical(t *testing.T) {
	got, removed := Dedupe(companies("trub1", "beton-2", "trub-1"))
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	ids := idsOf(got)
	if len(ids) != 2 || ids[0] != "trub-1" || ids[1] != "beton-2" {
		t.Errorf("got %v, want [trub-1 beton-2]", ids)
	}
	if got[0].Slug != "trub-1" {
		t.Errorf("Slug = %q", got[0].Slug)
	}
}

func TestDedupe_KeepsCanonicalWhenFirst(t *testing.T) {
	got, _ := Dedupe(companies("trub-1", "trub1"))
	if len(got) != 1 || got[0].ID != "trub-1" {
		t.Errorf("got %v", idsOf(got))
	}
}

func TestDedupe_SetsSlugForLegacyOnly(t *testing.T) {
	got, removed := Dedupe(companies("гомель7"))
	if removed != 0 || got[0].ID != "гомель7" || got[0].Slug != "гомель-7" {
		t.Errorf("got %+v removed=%d", got[0], removed)
	}
}
