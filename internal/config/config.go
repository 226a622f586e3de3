// Package config provides configuration loading and structs for the biznesinfo server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug        bool               `yaml:"debug"`
	Server       ServerConfig       `yaml:"server"`
	Auth         AuthConfig         `yaml:"auth"`
	Database     DatabaseConfig     `yaml:"database"`
	Conversation ConversationConfig `yaml:"conversation"`
	Lock         LockConfig         `yaml:"lock"`
	Redis        RedisConfig        `yaml:"redis"`
	Search       SearchConfig       `yaml:"search"`
	Meili        MeiliConfig        `yaml:"meili"`
	Catalog      CatalogConfig      `yaml:"catalog"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	LLM          LLMConfig          `yaml:"llm"`
	NATS         NATSConfig         `yaml:"nats"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	RequestTimeout int      `yaml:"request_timeout_seconds"`
	CORSOrigins    []string `yaml:"cors_origins"`
}

// AuthConfig selects how callers are identified. With JWTSecret set a bearer
// token is required; otherwise UserHeader is trusted.
type AuthConfig struct {
	JWTSecret  string `yaml:"jwt_secret"`
	UserHeader string `yaml:"user_header"`
}

// DatabaseConfig is the primary application database. A postgres:// DSN selects
// Postgres; anything else is a SQLite path.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// ConversationConfig holds conversation store settings. An empty DSN stores
// conversations in the primary database.
type ConversationConfig struct {
	DSN          string `yaml:"dsn"`
	PageSize     int    `yaml:"page_size"`
	HistoryTurns int    `yaml:"history_turns"`
}

// LockConfig holds admission lock settings.
type LockConfig struct {
	// Backend is sql, redis or memory.
	Backend       string `yaml:"backend"`
	TTLSeconds    int    `yaml:"ttl_seconds"`
	MinTTLSeconds int    `yaml:"min_ttl_seconds"`
	MaxTTLSeconds int    `yaml:"max_ttl_seconds"`
	AutoMigrate   *bool  `yaml:"auto_migrate"`
}

// AutoMigrateOrDefault reports whether the server creates the lock table on
// startup; defaults to true when unset.
func (l *LockConfig) AutoMigrateOrDefault() bool {
	if l.AutoMigrate != nil {
		return *l.AutoMigrate
	}
	return true
}

// RedisConfig holds the Redis connection for the redis lock backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SearchConfig holds resolver settings.
type SearchConfig struct {
	// Primary is meili, bleve or none.
	Primary         string `yaml:"primary"`
	DefaultLimit    int    `yaml:"default_limit"`
	MaxLimit        int    `yaml:"max_limit"`
	HealthTimeoutMs int    `yaml:"health_timeout_ms"`
	Candidates      int    `yaml:"candidates"`
}

// MeiliConfig holds the Meilisearch-compatible primary backend.
type MeiliConfig struct {
	URL       string `yaml:"url"`
	APIKey    string `yaml:"api_key"`
	Index     string `yaml:"index"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// CatalogConfig holds the fallback catalog and local index paths.
type CatalogConfig struct {
	Path           string `yaml:"path"`
	BleveIndexPath string `yaml:"bleve_index_path"`
	Watch          bool   `yaml:"watch"`
}

// RateLimitConfig holds per-class fixed-window rules.
type RateLimitConfig struct {
	Search       RuleConfig `yaml:"search"`
	Assistant    RuleConfig `yaml:"assistant"`
	Conversation RuleConfig `yaml:"conversation"`
}

// RuleConfig allows Limit requests per WindowMs.
type RuleConfig struct {
	Limit    int `yaml:"limit"`
	WindowMs int `yaml:"window_ms"`
}

// LLMConfig selects the reply generator.
type LLMConfig struct {
	// Provider is openai, anthropic or static.
	Provider    string  `yaml:"provider"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// NATSConfig enables turn events when URL is set.
type NATSConfig struct {
	URL         string `yaml:"url"`
	Token       string `yaml:"token"`
	MaxAgeHours int    `yaml:"max_age_hours"`
}

// Load reads and parses the config file at path, applies environment overrides
// and defaults, and expands paths. An empty path yields defaults plus environment.
func Load(path string) (*Config, error) {
	var cfg Config
	configDir := "."
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		configDir = filepath.Dir(path)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)

	if !isPostgres(cfg.Database.DSN) {
		cfg.Database.DSN = expandPath(cfg.Database.DSN, configDir)
	}
	if cfg.Conversation.DSN != "" && !isPostgres(cfg.Conversation.DSN) {
		cfg.Conversation.DSN = expandPath(cfg.Conversation.DSN, configDir)
	}
	cfg.Catalog.Path = expandPath(cfg.Catalog.Path, configDir)
	cfg.Catalog.BleveIndexPath = expandPath(cfg.Catalog.BleveIndexPath, configDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Search.Primary {
	case "meili", "bleve", "none":
	default:
		return fmt.Errorf("search.primary must be meili, bleve or none, got %q", c.Search.Primary)
	}
	if c.Search.Primary == "meili" && c.Meili.URL == "" {
		return fmt.Errorf("meili.url is required when search.primary is meili")
	}
	switch c.Lock.Backend {
	case "sql", "redis", "memory":
	default:
		return fmt.Errorf("lock.backend must be sql, redis or memory, got %q", c.Lock.Backend)
	}
	if c.Lock.Backend == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when lock.backend is redis")
	}
	if c.Lock.MinTTLSeconds > c.Lock.MaxTTLSeconds {
		return fmt.Errorf("lock.min_ttl_seconds (%d) exceeds lock.max_ttl_seconds (%d)", c.Lock.MinTTLSeconds, c.Lock.MaxTTLSeconds)
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func isPostgres(dsn string) bool {
	lower := strings.ToLower(dsn)
	return strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://")
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// "~/" paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
		return path
	}
	return filepath.Join(configDir, path)
}
