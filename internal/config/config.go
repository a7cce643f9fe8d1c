// Package config loads engine configuration from environment variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds the tunable parameters of the core engine.
type Config struct {
	// DBPath locates the SQLite file backing the collaborative store.
	DBPath string `env:"COFRONT_DB_PATH" envDefault:"cofront.db"`
	// LogLevel selects the zerolog level (debug, info, warn, error).
	LogLevel string `env:"COFRONT_LOG_LEVEL" envDefault:"info"`
	// CountdownTicks is the delay before each stimulus presentation.
	CountdownTicks uint64 `env:"COFRONT_COUNTDOWN_TICKS" envDefault:"3"`
	// WindowTicks bounds the response window after a stimulus.
	WindowTicks uint64 `env:"COFRONT_WINDOW_TICKS" envDefault:"30"`
	// RoundsPerSession is how many rounds a Dual-Core Vision session runs.
	RoundsPerSession int `env:"COFRONT_ROUNDS_PER_SESSION" envDefault:"5"`
	// GardenGenerations is how many tended generations bloom a shared garden.
	GardenGenerations int `env:"COFRONT_GARDEN_GENERATIONS" envDefault:"3"`
	// Seed fixes the stimulus sequence; zero means a crypto-random seed.
	Seed int64 `env:"COFRONT_SEED" envDefault:"0"`
}

// Parse loads configuration from environment variables and validates it.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.WindowTicks == 0 {
		return fmt.Errorf("window ticks must be greater than zero")
	}
	if c.RoundsPerSession <= 0 {
		return fmt.Errorf("rounds per session must be greater than zero")
	}
	if c.GardenGenerations <= 0 {
		return fmt.Errorf("garden generations must be greater than zero")
	}
	return nil
}
