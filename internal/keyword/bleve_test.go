package keyword

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/biznesinfo/internal/models"
	"go.uber.org/zap"
)

func sampleCompanies() []*models.Company {
	return []*models.Company{
		{ID: "trub-1", Name: "ТрубСнаб", Description: "стальные трубы и фитинги", City: "Минск",
			Categories: []models.Category{{Name: "Металлопрокат"}}},
		{ID: "beton-2", Name: "Бетон Плюс", Description: "товарный бетон", City: "Гомель",
			Categories: []models.Category{{Name: "Строительные материалы"}}},
		{ID: "pipes-3", Name: "Гомельские трубы", Description: "трубы ПНД", City: "Гомель", Region: "Гомельская область",
			Rubrics: []models.Category{{Name: "Трубы"}}},
	}
}

func newIndex(t *testing.T, path string, companies []*models.Company) *CompanyIndex {
	t.Helper()
	byID := make(map[string]*models.Company, len(companies))
	for _, c := range companies {
		byID[c.ID] = c
	}
	idx, err := NewCompanyIndex(path, func(id string) (*models.Company, bool) {
		c, ok := byID[id]
		return c, ok
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewCompanyIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	if err := idx.Rebuild(context.Background(), companies); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	return idx
}

func search(t *testing.T, idx *CompanyIndex, q models.SearchQuery) *models.SearchResult {
	t.Helper()
	q.Normalize(0, 0)
	res, err := idx.Search(context.Background(), &q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	return res
}

func ids(res *models.SearchResult) []string {
	out := make([]string, len(res.Companies))
	for i, c := range res.Companies {
		out[i] = c.ID
	}
	return out
}

func TestCompanyIndex_TextSearch(t *testing.T) {
	idx := newIndex(t, "", sampleCompanies())

	res := search(t, idx, models.SearchQuery{Query: "трубы"})
	got := ids(res)
	if len(got) != 2 {
		t.Fatalf("ids = %v, want 2 hits", got)
	}
	if got[0] != "pipes-3" {
		t.Errorf("name match should rank first, got %v", got)
	}
	if res.Total != 2 {
		t.Errorf("Total = %d, want 2", res.Total)
	}
}

func TestCompanyIndex_RussianMorphology(t *testing.T) {
	idx := newIndex(t, "", sampleCompanies())

	res := search(t, idx, models.SearchQuery{Query: "поставщик труб"})
	if got := ids(res); len(got) != 2 {
		t.Errorf("inflected query ids = %v, want trub-1 and pipes-3", got)
	}

	res = search(t, idx, models.SearchQuery{Query: "в и на"})
	if got := ids(res); len(got) != 0 {
		t.Errorf("stopword-only query ids = %v, want none", got)
	}
}

func TestCompanyIndex_CityFilter(t *testing.T) {
	idx := newIndex(t, "", sampleCompanies())

	res := search(t, idx, models.SearchQuery{Query: "трубы", City: "минск"})
	got := ids(res)
	if len(got) != 1 || got[0] != "trub-1" {
		t.Errorf("ids = %v, want [trub-1]", got)
	}

	res = search(t, idx, models.SearchQuery{Region: "Гомельская область"})
	got = ids(res)
	if len(got) != 1 || got[0] != "pipes-3" {
		t.Errorf("region ids = %v, want [pipes-3]", got)
	}
}

func TestCompanyIndex_Service(t *testing.T) {
	idx := newIndex(t, "", sampleCompanies())
	res := search(t, idx, models.SearchQuery{Service: "металлопрокат"})
	got := ids(res)
	if len(got) != 1 || got[0] != "trub-1" {
		t.Errorf("ids = %v, want [trub-1]", got)
	}
}

func TestCompanyIndex_BrowseKeepsCatalogOrder(t *testing.T) {
	idx := newIndex(t, "", sampleCompanies())

	res := search(t, idx, models.SearchQuery{Limit: 2})
	got := ids(res)
	if len(got) != 2 || got[0] != "trub-1" || got[1] != "beton-2" {
		t.Errorf("page 1 = %v", got)
	}
	if res.Total != 3 {
		t.Errorf("Total = %d, want 3", res.Total)
	}

	res = search(t, idx, models.SearchQuery{Limit: 2, Offset: 2})
	got = ids(res)
	if len(got) != 1 || got[0] != "pipes-3" {
		t.Errorf("page 2 = %v", got)
	}
}

func TestCompanyIndex_RebuildRemovesStale(t *testing.T) {
	companies := sampleCompanies()
	idx := newIndex(t, "", companies)

	if err := idx.Rebuild(context.Background(), companies[:1]); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	n, err := idx.DocCount()
	if err != nil {
		t.Fatalf("DocCount: %v", err)
	}
	if n != 1 {
		t.Errorf("DocCount = %d, want 1", n)
	}
}

func TestCompanyIndex_Health(t *testing.T) {
	empty := newIndex(t, "", nil)
	if err := empty.Health(context.Background()); err == nil {
		t.Error("empty index should be unhealthy")
	}

	idx := newIndex(t, "", sampleCompanies())
	if err := idx.Health(context.Background()); err != nil {
		t.Errorf("Health: %v", err)
	}
	_ = idx.Close()
	if err := idx.Health(context.Background()); err == nil {
		t.Error("closed index should be unhealthy")
	}
	if _, err := idx.Search(context.Background(), &models.SearchQuery{Query: "x", Limit: 1}); err != ErrClosed {
		t.Errorf("Search after close err = %v, want ErrClosed", err)
	}
}

func TestCompanyIndex_ReopensFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "companies.bleve")
	companies := sampleCompanies()
	idx := newIndex(t, path, companies)
	_ = idx.Close()

	reopened, err := NewCompanyIndex(path, func(id string) (*models.Company, bool) {
		for _, c := range companies {
			if c.ID == id {
				return c, true
			}
		}
		return nil, false
	}, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	res := search(t, reopened, models.SearchQuery{Query: "бетон"})
	if got := ids(res); len(got) != 1 || got[0] != "beton-2" {
		t.Errorf("ids = %v, want [beton-2]", got)
	}
}

func TestCompanyIndex_SkipsUnknownHits(t *testing.T) {
	companies := sampleCompanies()
	idx, err := NewCompanyIndex("", func(id string) (*models.Company, bool) {
		if id == "beton-2" {
			return nil, false
		}
		return &models.Company{ID: id}, true
	}, nil)
	if err != nil {
		t.Fatalf("NewCompanyIndex: %v", err)
	}
	defer func() { _ = idx.Close() }()
	if err := idx.Rebuild(context.Background(), companies); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	res := search(t, idx, models.SearchQuery{})
	if len(res.Companies) != 2 || res.Total != 2 {
		t.Errorf("result = %v total %d", ids(res), res.Total)
	}
}
