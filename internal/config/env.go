package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment override, e.g. BIZNESINFO_DATABASE_DSN.
const EnvPrefix = "BIZNESINFO"

// envOverrides lists settings that can be supplied through the environment.
// Set values replace the file's values.
type envOverrides struct {
	DatabaseDSN     string `envconfig:"DATABASE_DSN"`
	ConversationDSN string `envconfig:"CONVERSATION_DSN"`
	LLMProvider     string `envconfig:"LLM_PROVIDER"`
	LLMAPIKey       string `envconfig:"LLM_API_KEY"`
	MeiliURL        string `envconfig:"MEILI_URL"`
	MeiliAPIKey     string `envconfig:"MEILI_API_KEY"`
	AuthJWTSecret   string `envconfig:"AUTH_JWT_SECRET"`
	RedisAddr       string `envconfig:"REDIS_ADDR"`
	RedisPassword   string `envconfig:"REDIS_PASSWORD"`
	NATSURL         string `envconfig:"NATS_URL"`
	Port            int    `envconfig:"PORT"`
	Debug           bool   `envconfig:"DEBUG"`
}

func applyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Database.DSN, env.DatabaseDSN)
	set(&cfg.Conversation.DSN, env.ConversationDSN)
	set(&cfg.LLM.Provider, env.LLMProvider)
	set(&cfg.LLM.APIKey, env.LLMAPIKey)
	set(&cfg.Meili.URL, env.MeiliURL)
	set(&cfg.Meili.APIKey, env.MeiliAPIKey)
	set(&cfg.Auth.JWTSecret, env.AuthJWTSecret)
	set(&cfg.Redis.Addr, env.RedisAddr)
	set(&cfg.Redis.Password, env.RedisPassword)
	set(&cfg.NATS.URL, env.NATSURL)
	if env.Port != 0 {
		cfg.Server.Port = env.Port
	}
	if env.Debug {
		cfg.Debug = true
	}
	return nil
}
