// Package config reads the offer service configuration from the environment and flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"

	"github.com/damon-houk/insurance-offer-system/internal/infrastructure/logger"
)

// Store drivers
const (
	StoreBadger   = "badger"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds the service configuration
type Config struct {
	RunAddress      string        `env:"RUN_ADDRESS"`
	StoreDriver     string        `env:"STORE_DRIVER"`
	BadgerPath      string        `env:"BADGER_PATH" envDefault:"./data"`
	DatabaseURI     string        `env:"DATABASE_URI"`
	ExpiryWindow    time.Duration `env:"OFFER_EXPIRY_WINDOW" envDefault:"720h"`
	PremiumRate     string        `env:"PREMIUM_RATE" envDefault:"0.038"`
	SweepInterval   time.Duration `env:"SWEEP_INTERVAL" envDefault:"24h"`
	StatsCacheTTL   time.Duration `env:"STATS_CACHE_TTL" envDefault:"15s"`
	KafkaBrokers    []string      `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaOfferTopic string        `env:"KAFKA_OFFER_TOPIC" envDefault:"offers.lifecycle"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"INFO"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Parse reads the configuration from command-line flags and environment variables.
// Environment variables take precedence over flags.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envStoreDriver := cfg.StoreDriver
	envDatabaseURI := cfg.DatabaseURI

	flag.StringVar(&cfg.RunAddress, "a", ":8080", "address and port for HTTP server")
	flag.StringVar(&cfg.StoreDriver, "s", StoreBadger, "offer store driver: badger, postgres or memory")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI for the postgres store")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envStoreDriver != "" {
		cfg.StoreDriver = envStoreDriver
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreBadger, StoreMemory:
	case StorePostgres:
		if c.DatabaseURI == "" {
			return errors.New("DATABASE_URI is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}

	if c.ExpiryWindow <= 0 {
		return errors.New("OFFER_EXPIRY_WINDOW must be positive")
	}
	if c.SweepInterval <= 0 {
		return errors.New("SWEEP_INTERVAL must be positive")
	}
	if c.StatsCacheTTL < 0 {
		return errors.New("STATS_CACHE_TTL must not be negative")
	}

	if _, err := c.Rate(); err != nil {
		return err
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}

// Rate returns the premium rate as a decimal
func (c *Config) Rate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.PremiumRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse PREMIUM_RATE: %w", err)
	}
	if !rate.IsPositive() {
		return decimal.Zero, errors.New("PREMIUM_RATE must be positive")
	}
	return rate, nil
}

// Level returns the configured log level, defaulting to INFO
func (c *Config) Level() logger.Level {
	level, err := logger.ParseLevel(c.LogLevel)
	if err != nil {
		return logger.InfoLevel
	}
	return level
}

// KafkaEnabled reports whether lifecycle events go to Kafka
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
