package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full environment-derived configuration surface.
type Config struct {
	Port          string        `env:"PORT" envDefault:"8080"`
	RedisURL      string        `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"30s"`
}

// Load parses configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
