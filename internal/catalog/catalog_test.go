package catalog

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/biznesinfo/internal/models"
)

const sampleJSONL = `{"id":"trubsnab-1","name":"ТрубСнаб","description":"Продажа стальных труб и фитингов","city":"Минск","region":"Минская область","categories":[{"slug":"truby","name":"Трубы"}]}
{"id":"polimer-2","name":"ПолимерТорг","description":"Пластиковые трубы ПНД","city":"Гомель","region":"Гомельская область"}

not json
{"id":"logist-3","name":"БелЛогистик","description":"Грузоперевозки по Беларуси","city":"Минск","rubrics":[{"slug":"dostavka","name":"Доставка грузов"}]}
{"id":"kirpich4","name":"Кирпичный двор","description":"Кирпич и блоки","city":"Брест"}
{"id":"kirpich-4","name":"Кирпичный двор (новый)","description":"Кирпич и блоки","city":"Брест"}
`

func loadSample(t *testing.T) *Catalog {
	t.Helper()
	companies, stats, err := ReadJSONL(strings.NewReader(sampleJSONL))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Loaded != 5 || stats.Skipped != 1 {
		t.Fatalf("stats = %+v, want 5 loaded, 1 skipped", stats)
	}
	return New(companies)
}

func search(t *testing.T, c *Catalog, q models.SearchQuery) *models.SearchResult {
	t.Helper()
	q.Normalize(models.DefaultSearchLimit, models.MaxSearchLimit)
	res, err := c.Search(context.Background(), &q)
	if err != nil {
		t.Fatal(err)
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

func TestCatalog_DedupeOnLoad(t *testing.T) {
	c := loadSample(t)
	if c.Len() != 4 {
		t.Fatalf("Len = %d, want 4", c.Len())
	}
	got, ok := c.Get("kirpich4")
	if !ok {
		t.Fatal("legacy id should resolve")
	}
	if got.ID != "kirpich-4" || got.Slug != "kirpich-4" {
		t.Errorf("legacy alias resolved to %+v", got)
	}
}

func TestCatalog_SearchText(t *testing.T) {
	c := loadSample(t)
	res := search(t, c, models.SearchQuery{Query: "трубы"})
	if res.Total != 2 {
		t.Fatalf("Total = %d, want 2 (%v)", res.Total, ids(res))
	}
	if res.Companies[0].ID != "trubsnab-1" {
		t.Errorf("category match should rank first, got %v", ids(res))
	}
}

func TestCatalog_SearchCityFilter(t *testing.T) {
	c := loadSample(t)
	res := search(t, c, models.SearchQuery{Query: "трубы", City: "минск"})
	if res.Total != 1 || res.Companies[0].ID != "trubsnab-1" {
		t.Errorf("got %v", ids(res))
	}
}

func TestCatalog_SearchService(t *testing.T) {
	c := loadSample(t)
	res := search(t, c, models.SearchQuery{Service: "доставка"})
	if res.Total != 1 || res.Companies[0].ID != "logist-3" {
		t.Errorf("got %v", ids(res))
	}
}

func TestCatalog_SearchStopwordsOnly(t *testing.T) {
	c := loadSample(t)
	res := search(t, c, models.SearchQuery{Query: "ищу поставщика"})
	if res.Total != 4 {
		t.Errorf("stopword-only query should list the catalog, got %d", res.Total)
	}
}

func TestCatalog_SearchNoMatch(t *testing.T) {
	c := loadSample(t)
	res := search(t, c, models.SearchQuery{Query: "вертолеты"})
	if res.Total != 0 || len(res.Companies) != 0 {
		t.Errorf("got %v", ids(res))
	}
	if res.Companies == nil {
		t.Error("Companies should be empty, not nil")
	}
}

func TestCatalog_BrowsePagination(t *testing.T) {
	c := loadSample(t)
	res := search(t, c, models.SearchQuery{Offset: 1, Limit: 2})
	if res.Total != 4 {
		t.Fatalf("Total = %d", res.Total)
	}
	want := []string{"polimer-2", "logist-3"}
	got := ids(res)
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("page = %v, want %v", got, want)
	}
	res = search(t, c, models.SearchQuery{Offset: 10})
	if len(res.Companies) != 0 || res.Total != 4 {
		t.Errorf("offset past end: %v total=%d", ids(res), res.Total)
	}
}

func TestCatalog_OpenAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "companies.jsonl")
	if err := os.WriteFile(path, []byte(sampleJSONL), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 4 {
		t.Fatalf("Len = %d", c.Len())
	}
	if err := os.WriteFile(path, []byte(`{"id":"only-1","name":"Один"}`+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := c.Reload(); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 1 {
		t.Errorf("Len after reload = %d, want 1", c.Len())
	}

	_ = os.Remove(path)
	if err := c.Reload(); err == nil {
		t.Error("expected error reloading a missing file")
	}
	if c.Len() != 1 {
		t.Error("failed reload should keep the previous generation")
	}
}

func TestWriteJSONL_RoundTripsThroughReader(t *testing.T) {
	c := loadSample(t)
	var buf bytes.Buffer
	if err := WriteJSONL(&buf, c.All()); err != nil {
		t.Fatal(err)
	}
	again, stats, err := ReadJSONL(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Loaded != 4 || len(again) != 4 {
		t.Errorf("re-read %d companies", len(again))
	}
}

func TestCatalog_WithPathStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "companies.jsonl")
	c := New(nil, WithPath(path))
	if c.Len() != 0 || c.Path() != path {
		t.Fatalf("Len = %d, Path = %q", c.Len(), c.Path())
	}
	if err := os.WriteFile(path, []byte(sampleJSONL), 0644); err != nil {
		t.Fatal(err)
	}
	if err := c.Reload(); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 4 {
		t.Errorf("Len after reload = %d, want 4", c.Len())
	}
}
