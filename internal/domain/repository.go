// Package domain defines the core interfaces and types for loanrisk.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for decision persistence.
// Decisions are append-only; there is no update or delete.
type Repository interface {
	// RecordDecision assigns an identifier and creation timestamp to d and
	// appends it in a single atomic write. The stored record is returned.
	RecordDecision(ctx context.Context, d Decision) (*Decision, error)

	// GetDecision retrieves a decision by ID.
	GetDecision(ctx context.Context, id string) (*Decision, error)

	// ListDecisions returns the most recent decisions, newest first.
	ListDecisions(ctx context.Context, limit int) ([]*Decision, error)

	// DecisionStats aggregates counts and averages over all decisions.
	DecisionStats(ctx context.Context) (Stats, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `yaml:"driver"`

	// SQLite specific
	SQLitePath string `yaml:"sqlitePath"`

	// PostgreSQL specific
	PostgresHost     string `yaml:"postgresHost"`
	PostgresPort     int    `yaml:"postgresPort"`
	PostgresUser     string `yaml:"postgresUser"`
	PostgresPassword string `yaml:"postgresPassword"`
	PostgresDB       string `yaml:"postgresDB"`
	PostgresSSLMode  string `yaml:"postgresSSLMode"`

	// Connection pool settings
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}
