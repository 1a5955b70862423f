package storage

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/medfix-io/medfix/internal/config"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 10 * time.Minute
	defaultCleanupInterval = time.Hour

	// BackendMemory keeps every record in process memory.
	BackendMemory = "memory"
	// BackendPostgres stores records in PostgreSQL.
	BackendPostgres = "postgres"
)

var (
	// ErrDatabaseURLEmpty is returned when the postgres backend has no database URL.
	ErrDatabaseURLEmpty = errors.New("database URL cannot be empty")
	// ErrUnknownBackend is returned for a MEDFIX_STORAGE value other than memory or postgres.
	ErrUnknownBackend = errors.New("unknown storage backend")
)

// Config holds storage backend selection and PostgreSQL pool settings.
type Config struct {
	Backend         string
	databaseURL     string
	MaxOpenConns    int           // Maximum number of open connections
	MaxIdleConns    int           // Maximum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of connections
	ConnMaxIdleTime time.Duration // Maximum idle time for connections
	CleanupInterval time.Duration // How often expired sessions are purged
}

// LoadConfig loads storage configuration from environment variables with fallback to defaults.
// The backend defaults to postgres when DATABASE_URL is set and memory otherwise.
func LoadConfig() *Config {
	databaseURL := config.GetEnvStr("DATABASE_URL", "")

	backend := BackendMemory
	if databaseURL != "" {
		backend = BackendPostgres
	}

	return &Config{
		Backend:         strings.ToLower(config.GetEnvStr("MEDFIX_STORAGE", backend)),
		databaseURL:     databaseURL,
		MaxOpenConns:    config.GetEnvInt("DATABASE_MAX_OPEN_CONNS", defaultMaxOpenConns),
		MaxIdleConns:    config.GetEnvInt("DATABASE_MAX_IDLE_CONNS", defaultMaxIdleConns),
		ConnMaxLifetime: config.GetEnvDuration("DATABASE_CONN_MAX_LIFETIME", defaultConnMaxLifetime),
		ConnMaxIdleTime: config.GetEnvDuration("DATABASE_CONN_MAX_IDLE_TIME", defaultConnMaxIdleTime),
		CleanupInterval: config.GetEnvDuration("MEDFIX_SESSION_CLEANUP_INTERVAL", defaultCleanupInterval),
	}
}

// NewConfig returns a postgres configuration for databaseURL with default pool settings.
func NewConfig(databaseURL string) *Config {
	return &Config{
		Backend:         BackendPostgres,
		databaseURL:     databaseURL,
		MaxOpenConns:    defaultMaxOpenConns,
		MaxIdleConns:    defaultMaxIdleConns,
		ConnMaxLifetime: defaultConnMaxLifetime,
		ConnMaxIdleTime: defaultConnMaxIdleTime,
		CleanupInterval: defaultCleanupInterval,
	}
}

// Validate checks if the storage configuration is valid.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
		return nil
	case BackendPostgres:
		if strings.TrimSpace(c.databaseURL) == "" {
			return ErrDatabaseURLEmpty
		}

		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}
}

// DatabaseURL returns the raw connection string. Use MaskDatabaseURL for logs.
func (c *Config) DatabaseURL() string {
	return c.databaseURL
}

// MaskDatabaseURL returns the database URL with its password replaced by ***.
func (c *Config) MaskDatabaseURL() string {
	return MaskDatabaseURL(c.databaseURL)
}

// MaskDatabaseURL replaces the password of a URL-form connection string with ***.
// Strings that do not parse as URLs, or carry no password, are returned unchanged.
func MaskDatabaseURL(raw string) string {
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}

	password, ok := u.User.Password()
	if !ok || password == "" {
		return raw
	}

	schemeEnd := strings.Index(raw, "://")
	lastAt := strings.LastIndex(raw, "@")

	if schemeEnd == -1 || lastAt < schemeEnd {
		return raw
	}

	userInfo := raw[schemeEnd+3 : lastAt]

	colon := strings.Index(userInfo, ":")
	if colon == -1 {
		return raw
	}

	return raw[:schemeEnd+3] + userInfo[:colon] + ":***" + raw[lastAt:]
}
