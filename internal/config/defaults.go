package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 90
	}
	if cfg.Auth.UserHeader == "" {
		cfg.Auth.UserHeader = "X-User-ID"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "./data/biznesinfo.db"
	}
	if cfg.Conversation.PageSize == 0 {
		cfg.Conversation.PageSize = 200
	}
	if cfg.Conversation.HistoryTurns == 0 {
		cfg.Conversation.HistoryTurns = 6
	}
	if cfg.Lock.Backend == "" {
		cfg.Lock.Backend = "sql"
	}
	if cfg.Lock.TTLSeconds == 0 {
		cfg.Lock.TTLSeconds = 120
	}
	if cfg.Lock.MinTTLSeconds == 0 {
		cfg.Lock.MinTTLSeconds = 30
	}
	if cfg.Lock.MaxTTLSeconds == 0 {
		cfg.Lock.MaxTTLSeconds = 1800
	}
	if cfg.Search.Primary == "" {
		cfg.Search.Primary = "bleve"
		if cfg.Meili.URL != "" {
			cfg.Search.Primary = "meili"
		}
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 24
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
	if cfg.Search.HealthTimeoutMs == 0 {
		cfg.Search.HealthTimeoutMs = 1500
	}
	if cfg.Search.Candidates == 0 {
		cfg.Search.Candidates = 8
	}
	if cfg.Meili.Index == "" {
		cfg.Meili.Index = "companies"
	}
	if cfg.Meili.TimeoutMs == 0 {
		cfg.Meili.TimeoutMs = 3000
	}
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = "./data/companies.jsonl"
	}
	if cfg.Catalog.BleveIndexPath == "" {
		cfg.Catalog.BleveIndexPath = "./data/indices/companies.bleve"
	}
	applyRuleDefaults(&cfg.RateLimit.Search, 120, 60000)
	applyRuleDefaults(&cfg.RateLimit.Assistant, 10, 60000)
	applyRuleDefaults(&cfg.RateLimit.Conversation, 60, 60000)
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "static"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1024
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.3
	}
	if cfg.NATS.MaxAgeHours == 0 {
		cfg.NATS.MaxAgeHours = 24 * 30
	}
}

func applyRuleDefaults(r *RuleConfig, limit, windowMs int) {
	if r.Limit == 0 {
		r.Limit = limit
	}
	if r.WindowMs == 0 {
		r.WindowMs = windowMs
	}
}
