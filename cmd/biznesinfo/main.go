// Package main is the biznesinfo CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hyperjump/biznesinfo/internal/assistant"
	"github.com/hyperjump/biznesinfo/internal/catalog"
	"github.com/hyperjump/biznesinfo/internal/cli"
	"github.com/hyperjump/biznesinfo/internal/config"
	"github.com/hyperjump/biznesinfo/internal/database"
	"github.com/hyperjump/biznesinfo/internal/lock"
	"github.com/hyperjump/biznesinfo/internal/models"
	"github.com/hyperjump/biznesinfo/internal/server"
	"github.com/hyperjump/biznesinfo/internal/storage"
	"github.com/hyperjump/biznesinfo/internal/watcher"
	"github.com/hyperjump/biznesinfo/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/biznesinfo/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in
// the current directory wins if present, and a missing default file means
// built-in defaults plus environment. Returns the config and the path loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			local := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(local); err == nil {
				path = local
			}
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "ask":
		runAsk()
	case "migrate":
		runMigrate()
	case "import":
		runImport()
	case "init":
		runInit()
	case "version", "--version", "-v":
		fmt.Printf("biznesinfo version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config and builds the logger, exiting on failure.
func setup(configPath string, debug bool) (*config.Config, string, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, resolved, logger
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolved, logger := setup(*configPath, *debug)
	defer logger.Sync()
	logger.Info("config loaded", zap.String("config_path", resolved), zap.Bool("debug", cfg.Debug || *debug))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stack, err := initializeStack(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer stack.Close()

	if cfg.Catalog.Watch {
		w := watcher.New([]string{cfg.Catalog.Path}, func(path string) {
			if err := stack.RefreshCatalog(ctx); err != nil {
				logger.Warn("catalog reload failed", zap.String("path", path), zap.Error(err))
				return
			}
			logger.Info("catalog reloaded", zap.String("path", path), zap.Int("companies", stack.Catalog.Len()))
		}, watcher.WithLogger(logger))
		if err := w.Start(ctx); err != nil {
			logger.Fatal("Failed to start catalog watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	srv := server.NewServer(server.Deps{
		Search:    stack.Resolver,
		Store:     stack.Store,
		Assistant: stack.Assistant,
		Health:    stack.health,
	}, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves flags that appear after positional arguments to the front so
// that flag.Parse sees them; the flag package stops at the first non-flag.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: biznesinfo search [flags] [query]\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. An empty query browses the catalog.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  biznesinfo search трубы в минске
  biznesinfo search --city Брест --limit 5 кирпич
  biznesinfo search --service грузоперевозки
  biznesinfo search --server http://localhost:8080 --json бетон
`)
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = search the local catalog directly)")
	service := fs.String("service", "", "service/category filter")
	keywords := fs.String("keywords", "", "extra keywords")
	city := fs.String("city", "", "city filter")
	region := fs.String("region", "", "region filter")
	offset := fs.Int("offset", 0, "result offset")
	limit := fs.Int("limit", 10, "number of results")
	asJSON := fs.Bool("json", false, "print JSON")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(argsReorder(os.Args[2:]))

	q := models.SearchQuery{
		Query:    buildSearchQuery(fs.Args()),
		Service:  *service,
		Keywords: *keywords,
		City:     *city,
		Region:   *region,
		Offset:   *offset,
		Limit:    *limit,
	}
	format := cli.FormatFor(*asJSON)

	if *serverURL != "" {
		res, err := searchViaHTTP(*serverURL, q)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteSearchResults(os.Stdout, res, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, _, logger := setup(*configPath, false)
	defer logger.Sync()
	comps, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer comps.Close()

	res := comps.Resolver.Search(context.Background(), q)
	if err := cli.WriteSearchResults(os.Stdout, res, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL string, q models.SearchQuery) (*models.SearchResult, error) {
	var res models.SearchResult
	resp, err := resty.New().
		SetBaseURL(strings.TrimRight(serverURL, "/")).
		SetTimeout(30 * time.Second).
		R().
		SetQueryParams(searchParams(q)).
		SetResult(&res).
		Get("/search")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode(), resp.String())
	}
	return &res, nil
}

func searchParams(q models.SearchQuery) map[string]string {
	params := map[string]string{
		"offset": fmt.Sprint(q.Offset),
		"limit":  fmt.Sprint(q.Limit),
	}
	for k, v := range map[string]string{
		"q": q.Query, "service": q.Service, "keywords": q.Keywords, "city": q.City, "region": q.Region,
	} {
		if v != "" {
			params[k] = v
		}
	}
	return params
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	user := fs.String("user", os.Getenv("USER"), "user id the request runs as")
	session := fs.String("session", "", "continue an existing session")
	city := fs.String("city", "", "city hint")
	asJSON := fs.Bool("json", false, "print JSON")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	message := buildSearchQuery(fs.Args())
	if message == "" {
		fmt.Fprintln(os.Stderr, "Usage: biznesinfo ask [flags] <message>")
		os.Exit(1)
	}

	cfg, _, logger := setup(*configPath, false)
	defer logger.Sync()
	ctx := context.Background()
	stack, err := initializeStack(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer stack.Close()

	reply, err := stack.Assistant.Ask(ctx, &assistant.Request{
		UserID:    *user,
		SessionID: *session,
		Message:   message,
		City:      *city,
		Source:    "cli",
	})
	var busy *models.BusyError
	if errors.As(err, &busy) {
		fmt.Fprintf(os.Stderr, "Another request (%s) is running for %s, retry in %ds\n", busy.OwnerRequestID, *user, busy.RetryAfterSeconds)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteReply(os.Stdout, reply, cli.FormatFor(*asJSON)); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runMigrate() {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, _, logger := setup(*configPath, false)
	defer logger.Sync()
	if err := migrate(context.Background(), cfg, logger); err != nil {
		logger.Fatal("Migration failed", zap.Error(err))
	}
	fmt.Println("Migrations applied.")
}

// migrate provisions the conversation schema and the admission lock table.
func migrate(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	db, err := database.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := storage.Open(ctx, cfg.Conversation.DSN, db, storage.WithLogger(logger))
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("conversation schema: %w", err)
	}
	if err := lock.NewSQLLocker(db, lock.WithLogger(logger)).EnsureTable(ctx); err != nil {
		return fmt.Errorf("lock table: %w", err)
	}
	return nil
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	out := fs.String("out", "", "output JSONL path (default: stdout)")
	_ = fs.Parse(argsReorder(os.Args[2:]))
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: biznesinfo import [--out companies.jsonl] <export.xlsx|export.jsonl>")
		os.Exit(1)
	}
	stats, err := importCatalog(fs.Arg(0), *out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Imported %d companies (%d skipped, %d duplicates)\n", stats.Loaded, stats.Skipped, stats.Duplicates)
}

// importCatalog reads src, normalizes and dedupes it, and writes JSONL to dst.
// The file is written beside dst and renamed into place so a watching server
// never sees a partial catalog.
func importCatalog(src, dst string) (catalog.LoadStats, error) {
	companies, stats, err := catalog.ReadFile(src)
	if err != nil {
		return stats, err
	}
	cat := catalog.New(companies)
	stats.Duplicates = stats.Loaded - cat.Len()
	stats.Loaded = cat.Len()

	if dst == "" {
		return stats, catalog.WriteJSONL(os.Stdout, cat.All())
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return stats, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".*.tmp")
	if err != nil {
		return stats, err
	}
	defer os.Remove(tmp.Name())
	if err := catalog.WriteJSONL(tmp, cat.All()); err != nil {
		_ = tmp.Close()
		return stats, err
	}
	if err := tmp.Close(); err != nil {
		return stats, err
	}
	return stats, os.Rename(tmp.Name(), dst)
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	out := fs.String("out", "config.yaml", "where to write the config")
	force := fs.Bool("force", false, "overwrite an existing file")
	_ = fs.Parse(os.Args[2:])

	if _, err := os.Stat(*out); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "%s exists; use --force to overwrite\n", *out)
		os.Exit(1)
	}
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	if err := config.Save(*out, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote default config to %s\n", *out)
}

func printUsage() {
	fmt.Println(`biznesinfo - business directory search and assistant

Usage:
  biznesinfo server [flags]            Start the HTTP API
  biznesinfo search [flags] [query]    Search companies
  biznesinfo ask [flags] <message>     Run one assistant request
  biznesinfo migrate [flags]           Create conversation and lock tables
  biznesinfo import [flags] <file>     Convert an XLSX/JSONL export to normalized JSONL
  biznesinfo init [flags]              Write a default config file
  biznesinfo version                   Show version
  biznesinfo help                      Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/biznesinfo/config.yaml,
                     or ./config.yaml when present)

Server Flags:
  --debug            Enable debug logging

Search Flags:
  --server string    Query a running server instead of the local catalog
  --service, --keywords, --city, --region string
  --offset, --limit int
  --json             Print JSON

Ask Flags:
  --user string      User id (default: $USER)
  --session string   Continue a session
  --city string      City hint
  --json             Print JSON

Import Flags:
  --out string       Output path (default: stdout)

Examples:
  biznesinfo server
  biznesinfo search трубы минск
  biznesinfo search --json --city Гомель пластиковые трубы
  biznesinfo ask --user u1 "нужен поставщик кирпича в бресте"
  biznesinfo import --out data/companies.jsonl export.xlsx
  biznesinfo migrate`)
}
