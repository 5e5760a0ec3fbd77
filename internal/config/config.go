// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"docnum/internal/domain/numbering"
	"docnum/internal/infrastructure/storage/postgres"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

var (
	ErrUnknownDriver    = errors.New("unknown storage driver")
	ErrMissingDSN       = errors.New("DATABASE_URL is required for the postgres driver")
	ErrInvalidAttempts  = errors.New("NUMBERING_MAX_ATTEMPTS must be positive")
	ErrInvalidTimeout   = errors.New("timeouts must be positive")
	ErrInvalidPoolSizes = errors.New("DB_MIN_CONNS must not exceed DB_MAX_CONNS")
	ErrInvalidCodeLimit = errors.New("NUMBERING_MAX_CODE_LENGTH must not be negative")
)

// Config is the complete service configuration.
type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	AppPort  string `env:"APP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	StorageDriver  string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"false"`

	Database  Database
	Numbering Numbering

	GenerateTimeout time.Duration `env:"GENERATE_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// Database configures the PostgreSQL pool.
type Database struct {
	URL              string        `env:"DATABASE_URL"`
	MaxConns         int32         `env:"DB_MAX_CONNS" envDefault:"25"`
	MinConns         int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	MaxConnLifetime  time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	MaxConnIdleTime  time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	// StatementTimeout is set per managed transaction, sequence allocation included.
	StatementTimeout time.Duration `env:"DB_STATEMENT_TIMEOUT" envDefault:"30s"`
}

// Numbering configures number generation.
type Numbering struct {
	VerifyUnique         bool   `env:"NUMBERING_VERIFY_UNIQUE" envDefault:"false"`
	MaxAttempts          int    `env:"NUMBERING_MAX_ATTEMPTS" envDefault:"10"`
	DocumentsTable       string `env:"NUMBERING_DOCUMENTS_TABLE" envDefault:"documents"`
	DocumentNumberColumn string `env:"NUMBERING_DOCUMENT_NUMBER_COLUMN" envDefault:"document_number"`
	MaxCodeLength        int    `env:"NUMBERING_MAX_CODE_LENGTH" envDefault:"0"`
}

// Load reads an optional .env file, then parses and validates the environment.
func Load(envFiles ...string) (*Config, error) {
	// A missing .env file is not an error.
	_ = godotenv.Load(envFiles...)

	return Parse()
}

// Parse reads the process environment without touching .env files.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case DriverPostgres:
		if c.Database.URL == "" {
			return ErrMissingDSN
		}
	case DriverMemory:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.StorageDriver)
	}

	if c.Numbering.MaxAttempts < 1 {
		return ErrInvalidAttempts
	}
	if c.Numbering.MaxCodeLength < 0 {
		return ErrInvalidCodeLimit
	}
	if c.GenerateTimeout <= 0 || c.ShutdownTimeout <= 0 || c.Database.StatementTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Database.MaxConns > 0 && c.Database.MinConns > c.Database.MaxConns {
		return ErrInvalidPoolSizes
	}
	return nil
}

// IsDevelopment reports whether APP_ENV is development.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// PoolConfig maps database settings onto the pool configuration.
func (c *Config) PoolConfig() postgres.PoolConfig {
	pc := postgres.DefaultPoolConfig(c.Database.URL)
	pc.MaxConns = c.Database.MaxConns
	pc.MinConns = c.Database.MinConns
	pc.MaxConnLifetime = c.Database.MaxConnLifetime
	pc.MaxConnIdleTime = c.Database.MaxConnIdleTime
	return pc
}

// ServiceConfig returns numbering options; store and metrics are wired by the caller.
func (c *Config) ServiceConfig() numbering.ServiceConfig {
	return numbering.ServiceConfig{
		VerifyUnique:  c.Numbering.VerifyUnique,
		MaxAttempts:   c.Numbering.MaxAttempts,
		MaxCodeLength: c.Numbering.MaxCodeLength,
	}
}
