package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port                 int    `env:"PORT" envDefault:"8080"`
	DatabaseURL          string `env:"DATABASE_URL,required"`
	RedisURL             string `env:"REDIS_URL,required"`
	CodeTTLSeconds       int    `env:"CODE_TTL_SECONDS" envDefault:"300"`
	CodeRateLimitPerMin  int    `env:"CODE_RATE_LIMIT_PER_MIN" envDefault:"30"`
	LogLevel             string `env:"LOG_LEVEL" envDefault:"info"`
	AllowAllOrigins      bool   `env:"ALLOW_ALL_ORIGINS" envDefault:"false"`
	ShutdownGraceSeconds int    `env:"SHUTDOWN_GRACE_SECONDS" envDefault:"30"`
}

func (c *Config) CodeTTL() time.Duration {
	return time.Duration(c.CodeTTLSeconds) * time.Second
}

func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGraceSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate() error {
	if c.CodeTTLSeconds <= 0 {
		return fmt.Errorf("CODE_TTL_SECONDS must be positive, got %d", c.CodeTTLSeconds)
	}
	if c.CodeRateLimitPerMin < 0 {
		return fmt.Errorf("CODE_RATE_LIMIT_PER_MIN must not be negative, got %d", c.CodeRateLimitPerMin)
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
