package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/biznesinfo/internal/catalog"
	"github.com/hyperjump/biznesinfo/internal/config"
	"github.com/hyperjump/biznesinfo/internal/database"
	"github.com/hyperjump/biznesinfo/internal/models"
	"go.uber.org/zap"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after query are moved first",
			args:     []string{"трубы минск", "-limit", "5"},
			expected: []string{"-limit", "5", "трубы минск"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-limit", "5", "трубы"},
			expected: []string{"-limit", "5", "трубы"},
		},
		{
			name:     "query only returns unchanged",
			args:     []string{"трубы"},
			expected: []string{"трубы"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"one", "two", "-json"},
			expected: []string{"-json", "one", "two"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"бетон"}, "бетон"},
		{"multiple words", []string{"трубы", "минск"}, "трубы минск"},
		{"single quoted phrase", []string{"трубы минск"}, "трубы минск"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildSearchQuery(tt.args)
			if got != tt.expected {
				t.Errorf("buildSearchQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestSearchParams(t *testing.T) {
	got := searchParams(models.SearchQuery{Query: "трубы", City: "Минск", Limit: 5})
	want := map[string]string{"q": "трубы", "city": "Минск", "offset": "0", "limit": "5"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("searchParams() = %v, want %v", got, want)
	}
}

func TestSearchViaHTTP(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.URL.Query().Get("q") != "бетон" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(&models.SearchResult{
			Companies: []*models.Company{{ID: "beton-2", Name: "Бетон Плюс"}},
			Total:     1,
			Backend:   models.BackendFallback,
		})
	}))
	defer ts.Close()

	res, err := searchViaHTTP(ts.URL+"/", models.SearchQuery{Query: "бетон", Limit: 10})
	if err != nil {
		t.Fatalf("searchViaHTTP: %v", err)
	}
	if res.Total != 1 || res.Companies[0].ID != "beton-2" {
		t.Errorf("result = %+v", res)
	}

	if _, err := searchViaHTTP(ts.URL, models.SearchQuery{Query: "x"}); err == nil {
		t.Error("expected error for non-2xx response")
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	content := "debug: true\nserver:\n  port: 9090\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if !cfg.Debug || cfg.Server.Port != 9090 {
		t.Errorf("cwd config not used: debug=%v port=%d", cfg.Debug, cfg.Server.Port)
	}
	if filepath.Base(resolved) != "config.yaml" {
		t.Errorf("resolved = %q", resolved)
	}
}

func TestLoadConfig_missingDefaultUsesBuiltins(t *testing.T) {
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		t.Skip("a system config exists at the default path")
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if resolved != "" || cfg.Server.Port == 0 {
		t.Errorf("resolved = %q, port = %d", resolved, cfg.Server.Port)
	}
}

func TestLoadConfig_explicitMissingPathFails(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for a missing explicit config")
	}
}

const sampleCatalog = `{"id":"trubsnab-1","name":"ТрубСнаб","description":"Продажа стальных труб","city":"Минск"}
{"id":"polimer-2","name":"ПолимерТорг","description":"Пластиковые трубы","city":"Гомель"}
{"id":"polimer2","name":"ПолимерТорг (копия)","city":"Гомель"}
`

func writeCatalog(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "export.jsonl")
	if err := os.WriteFile(path, []byte(sampleCatalog), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestImportCatalog(t *testing.T) {
	dir := t.TempDir()
	src := writeCatalog(t, dir)
	dst := filepath.Join(dir, "out", "companies.jsonl")

	stats, err := importCatalog(src, dst)
	if err != nil {
		t.Fatalf("importCatalog: %v", err)
	}
	if stats.Loaded != 2 || stats.Duplicates != 1 {
		t.Errorf("stats = %+v, want 2 loaded and 1 duplicate", stats)
	}
	companies, _, err := catalog.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if len(companies) != 2 {
		t.Errorf("wrote %d companies, want 2", len(companies))
	}
	entries, _ := os.ReadDir(filepath.Dir(dst))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temporary file left behind: %s", e.Name())
		}
	}
}

func TestMigrate(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Database.DSN = filepath.Join(dir, "app.db")
	config.ApplyDefaults(cfg)

	ctx := context.Background()
	if err := migrate(ctx, cfg, zap.NewNop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	db, err := database.Open(ctx, cfg.Database.DSN)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	for _, table := range []string{"ai_conversation_sessions", "ai_conversation_turns", "ai_request_locks"} {
		var n int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}
}

func TestInitializeStack_LocalSearchAndAsk(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Database.DSN = filepath.Join(dir, "app.db")
	cfg.Catalog.Path = writeCatalog(t, dir)
	cfg.Catalog.BleveIndexPath = filepath.Join(dir, "companies.bleve")
	config.ApplyDefaults(cfg)

	ctx := context.Background()
	stack, err := initializeStack(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("initializeStack: %v", err)
	}
	defer stack.Close()

	res := stack.Resolver.Search(ctx, models.SearchQuery{Query: "трубы", City: "Гомель"})
	if res.Total != 1 || res.Companies[0].ID != "polimer-2" {
		t.Errorf("search = %+v", res)
	}
	health := stack.health(ctx)
	if health["database"] != "ok" || !strings.HasPrefix(health["search_primary"], "ok") {
		t.Errorf("health = %v", health)
	}
}

func TestInitializeComponents_missingCatalogStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Catalog.Path = filepath.Join(dir, "companies.jsonl")
	cfg.Search.Primary = "none"
	config.ApplyDefaults(cfg)

	comps, err := initializeComponents(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("initializeComponents: %v", err)
	}
	defer comps.Close()
	if comps.Catalog.Len() != 0 || comps.Primary != nil {
		t.Fatalf("len = %d, primary = %v", comps.Catalog.Len(), comps.Primary)
	}

	if err := os.WriteFile(cfg.Catalog.Path, []byte(sampleCatalog), 0644); err != nil {
		t.Fatal(err)
	}
	if err := comps.RefreshCatalog(context.Background()); err != nil {
		t.Fatalf("RefreshCatalog: %v", err)
	}
	if comps.Catalog.Len() != 2 {
		t.Errorf("len after refresh = %d, want 2", comps.Catalog.Len())
	}
}
