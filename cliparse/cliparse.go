// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port          int           `env:"PORT" envDefault:"3318"`
	DatabaseURL   string        `env:"DATABASE_URL"`
	DatabaseType  string        `env:"DATABASE_TYPE" envDefault:"sqlite"`
	JWTSecret     string        `env:"JWT_SECRET"`
	VotingTimeout time.Duration `env:"VOTING_TIMEOUT" envDefault:"0s"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"30s"`
	ResolveLease  time.Duration `env:"RESOLVE_LEASE" envDefault:"10s"`
	OTelEndpoint  string        `env:"OTEL_ENDPOINT"`
}

// ParseFlags reads the environment, applies CLI overrides and validates.
func ParseFlags(args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("plan-decision", flag.ContinueOnError)

	// Env values become the flag defaults, so flags win when given
	fs.IntVar(&cfg.Port, "p", cfg.Port, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", cfg.DatabaseURL, "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", cfg.DatabaseType, "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret, "HS256 token secret (prefer env)")
	fs.DurationVar(&cfg.VotingTimeout, "voting-timeout", cfg.VotingTimeout, "Auto-close voting after this long (0 disables)")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "How often the sweeper runs")
	fs.DurationVar(&cfg.ResolveLease, "resolve-lease", cfg.ResolveLease, "Resolution lease duration")
	fs.StringVar(&cfg.OTelEndpoint, "otel-endpoint", cfg.OTelEndpoint, "OTLP/HTTP endpoint (empty disables tracing)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required values and ranges.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.DatabaseURL == "" {
		return errors.New("database URL required (use -d or DATABASE_URL env)")
	}
	if c.DatabaseType != "sqlite" && c.DatabaseType != "postgres" {
		return fmt.Errorf("unsupported database type %q", c.DatabaseType)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET required")
	}
	if c.VotingTimeout < 0 {
		return errors.New("voting timeout must not be negative")
	}
	if c.SweepInterval <= 0 {
		return errors.New("sweep interval must be positive")
	}
	if c.ResolveLease <= 0 {
		return errors.New("resolve lease must be positive")
	}
	return nil
}
