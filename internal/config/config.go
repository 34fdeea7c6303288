package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Core
	DatabaseURL string `env:"DATABASE_URL,required"`
	JWTSecret   string `env:"JWT_SECRET,required"`

	// Redis (history cache + rate limiting)
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Server
	Port          int    `env:"PORT" envDefault:"8080"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`

	// Rate limiting (requests per second per user)
	RateLimitPerSecond int `env:"RATE_LIMIT_PER_SECOND" envDefault:"5"`

	// Ops alerting via Telegram (disabled when token is empty)
	OpsBotToken     string `env:"OPS_BOT_TOKEN"`
	OpsChatID       int64  `env:"OPS_CHAT_ID"`
	OpsTopicError   int    `env:"OPS_TOPIC_ERROR"`
	OpsTopicWarning int    `env:"OPS_TOPIC_WARNING"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) OpsAlertsEnabled() bool {
	return c.OpsBotToken != "" && c.OpsChatID != 0
}
