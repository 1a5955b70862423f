package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // postgres driver for database/sql
)

const healthCheckTimeout = 2 * time.Second

// ErrNoDatabaseConnection is returned when a postgres store is built without a connection.
var ErrNoDatabaseConnection = errors.New("no database connection")

// Connection wraps a pooled *sql.DB configured from Config.
type Connection struct {
	*sql.DB
}

// NewConnection opens a pool for cfg and verifies it with a ping.
func NewConnection(ctx context.Context, cfg *Config) (*Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Backend != BackendPostgres {
		return nil, fmt.Errorf("%w: backend is %q", ErrNoDatabaseConnection, cfg.Backend)
	}

	db, err := sql.Open("postgres", cfg.databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	conn := &Connection{DB: db}

	if err := conn.HealthCheck(ctx); err != nil {
		_ = db.Close()

		return nil, err
	}

	return conn, nil
}

// NewConnectionFromDB wraps an already open pool. Used by tests and the CLI.
func NewConnectionFromDB(db *sql.DB) *Connection {
	return &Connection{DB: db}
}

// HealthCheck pings the database with a short timeout.
func (c *Connection) HealthCheck(ctx context.Context) error {
	if c == nil || c.DB == nil {
		return ErrNoDatabaseConnection
	}

	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := c.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}
