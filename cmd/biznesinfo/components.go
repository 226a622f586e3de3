package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hyperjump/biznesinfo/internal/assistant"
	"github.com/hyperjump/biznesinfo/internal/catalog"
	"github.com/hyperjump/biznesinfo/internal/config"
	"github.com/hyperjump/biznesinfo/internal/database"
	"github.com/hyperjump/biznesinfo/internal/events"
	"github.com/hyperjump/biznesinfo/internal/generate"
	"github.com/hyperjump/biznesinfo/internal/keyword"
	"github.com/hyperjump/biznesinfo/internal/lock"
	"github.com/hyperjump/biznesinfo/internal/search"
	"github.com/hyperjump/biznesinfo/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Components holds initialized search components.
type Components struct {
	Catalog  *catalog.Catalog
	Index    *keyword.CompanyIndex
	Primary  search.Backend
	Resolver *search.Resolver
	logger   *zap.Logger
}

// Close releases search resources.
func (c *Components) Close() {
	if c.Index != nil {
		if err := c.Index.Close(); err != nil {
			c.logger.Warn("bleve index close failed", zap.Error(err))
		}
	}
}

// RefreshCatalog reloads the catalog file and rebuilds the local index.
func (c *Components) RefreshCatalog(ctx context.Context) error {
	if err := c.Catalog.Reload(); err != nil {
		return err
	}
	if c.Index != nil {
		return c.Index.Rebuild(ctx, c.Catalog.All())
	}
	return nil
}

// initializeComponents loads the catalog and builds the resolver with the
// configured primary backend. A missing catalog file yields an empty catalog
// that the watcher can fill later.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{logger: logger}

	cat, err := catalog.Open(cfg.Catalog.Path, catalog.WithLogger(logger))
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn("catalog file not found, starting empty", zap.String("path", cfg.Catalog.Path))
		cat, err = catalog.New(nil, catalog.WithLogger(logger), catalog.WithPath(cfg.Catalog.Path)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	c.Catalog = cat

	switch cfg.Search.Primary {
	case "meili":
		c.Primary = search.NewMeili(cfg.Meili.URL, cfg.Meili.APIKey, cfg.Meili.Index,
			time.Duration(cfg.Meili.TimeoutMs)*time.Millisecond)
	case "bleve":
		idx, err := keyword.NewCompanyIndex(cfg.Catalog.BleveIndexPath, cat.Get, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open bleve index: %w", err)
		}
		if err := idx.Rebuild(ctx, cat.All()); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("failed to build bleve index: %w", err)
		}
		c.Index = idx
		c.Primary = idx
	}

	opts := []search.Option{
		search.WithLogger(logger),
		search.WithLimits(cfg.Search.DefaultLimit, cfg.Search.MaxLimit),
		search.WithHealthTimeout(time.Duration(cfg.Search.HealthTimeoutMs) * time.Millisecond),
	}
	if c.Primary != nil {
		opts = append(opts, search.WithPrimary(c.Primary))
	}
	c.Resolver = search.NewResolver(cat, opts...)
	logger.Info("search initialized",
		zap.String("primary", cfg.Search.Primary),
		zap.Int("companies", cat.Len()),
	)
	return c, nil
}

// Stack is everything the assistant and HTTP API need on top of search.
type Stack struct {
	*Components
	DB        *database.DB
	Store     *storage.SQLStore
	Locker    lock.Locker
	Publisher events.Publisher
	Assistant *assistant.Service
	redis     *redis.Client
}

// Close releases all resources in reverse order of construction.
func (s *Stack) Close() {
	if s.Publisher != nil {
		_ = s.Publisher.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.Store != nil {
		_ = s.Store.Close()
	}
	if s.DB != nil {
		_ = s.DB.Close()
	}
	if s.Components != nil {
		s.Components.Close()
	}
}

func initializeStack(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Stack, error) {
	s := &Stack{}
	fail := func(err error) (*Stack, error) {
		s.Close()
		return nil, err
	}

	comps, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	s.Components = comps

	db, err := database.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return fail(err)
	}
	s.DB = db

	store, err := storage.Open(ctx, cfg.Conversation.DSN, db,
		storage.WithPageSize(cfg.Conversation.PageSize),
		storage.WithLogger(logger),
	)
	if err != nil {
		return fail(err)
	}
	s.Store = store
	if err := store.EnsureSchema(ctx); err != nil {
		return fail(fmt.Errorf("failed to provision conversation schema: %w", err))
	}

	locker, err := s.newLocker(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	s.Locker = locker

	gen, err := generate.New(cfg.LLM.Provider, cfg.LLM.APIKey, cfg.LLM.Model)
	if err != nil {
		return fail(err)
	}

	s.Publisher = events.Nop{}
	if cfg.NATS.URL != "" {
		pub, err := events.NewNATSPublisher(ctx, events.NATSConfig{
			URL:    cfg.NATS.URL,
			Token:  cfg.NATS.Token,
			MaxAge: time.Duration(cfg.NATS.MaxAgeHours) * time.Hour,
		}, logger)
		if err != nil {
			return fail(err)
		}
		s.Publisher = pub
	}

	s.Assistant = assistant.NewService(assistant.Deps{
		Locker:    s.Locker,
		Searcher:  s.Resolver,
		Store:     s.Store,
		Generator: gen,
		Publisher: s.Publisher,
	}, assistant.Config{
		LockTTLSeconds: cfg.Lock.TTLSeconds,
		Candidates:     cfg.Search.Candidates,
		HistoryTurns:   cfg.Conversation.HistoryTurns,
		MaxTokens:      cfg.LLM.MaxTokens,
		Temperature:    cfg.LLM.Temperature,
		Model:          cfg.LLM.Model,
	}, logger)
	logger.Info("assistant initialized",
		zap.String("lock_backend", cfg.Lock.Backend),
		zap.String("llm_provider", gen.Name()),
		zap.Bool("events", cfg.NATS.URL != ""),
	)
	return s, nil
}

func (s *Stack) newLocker(ctx context.Context, cfg *config.Config, logger *zap.Logger) (lock.Locker, error) {
	opts := []lock.Option{
		lock.WithTTLBounds(cfg.Lock.MinTTLSeconds, cfg.Lock.MaxTTLSeconds),
		lock.WithLogger(logger),
	}
	switch cfg.Lock.Backend {
	case "memory":
		return lock.NewMemoryLocker(opts...), nil
	case "redis":
		s.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := s.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return lock.NewRedisLocker(s.redis, opts...), nil
	default:
		l := lock.NewSQLLocker(s.DB, opts...)
		if cfg.Lock.AutoMigrateOrDefault() {
			if err := l.EnsureTable(ctx); err != nil {
				return nil, fmt.Errorf("failed to provision lock table: %w", err)
			}
		}
		return l, nil
	}
}

// health reports per-component status for /health.
func (s *Stack) health(ctx context.Context) map[string]string {
	out := map[string]string{"catalog": fmt.Sprintf("ok (%d companies)", s.Catalog.Len())}
	if err := s.DB.PingContext(ctx); err != nil {
		out["database"] = "error: " + err.Error()
	} else {
		out["database"] = "ok"
	}
	if s.Primary != nil {
		if err := s.Primary.Health(ctx); err != nil {
			out["search_primary"] = "error: " + err.Error()
		} else {
			out["search_primary"] = "ok (" + s.Primary.Name() + ")"
		}
	}
	return out
}
