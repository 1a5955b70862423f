package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	migrate "github.com/golang-migrate/migrate/v4"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/medfix-io/medfix/internal/cli"
	"github.com/medfix-io/medfix/migrations"
)

const pingTimeout = 10 * time.Second

type (
	// MigrationRunner defines the commands the migrator exposes.
	MigrationRunner interface {
		// Up applies all pending migrations.
		Up() error

		// Down rolls back the last migration.
		Down() error

		// Status prints every known migration and whether it is applied.
		Status() error

		// Version prints the current migration version.
		Version() error

		// Drop drops all tables.
		Drop() error

		// Close closes any open connections.
		Close() error
	}

	migrationRunner struct {
		config  *Config
		migrate *migrate.Migrate
		db      *sql.DB
		out     io.Writer
		logger  *slog.Logger
	}

	// migrateLogger forwards golang-migrate output to slog.
	migrateLogger struct {
		logger *slog.Logger
	}
)

var (
	_ migrate.Logger  = (*migrateLogger)(nil)
	_ MigrationRunner = (*migrationRunner)(nil)
)

// NewMigrationRunner connects to the database and prepares the embedded migrations.
// Command output goes to out; progress is logged to logger.
func NewMigrationRunner(cfg *Config, out io.Writer, logger *slog.Logger) (MigrationRunner, error) {
	logger.Info("Initializing migration runner", slog.String("config", cfg.String()))

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	m, err := migrations.New(db, cfg.MigrationTable)
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	m.Log = &migrateLogger{logger: logger}

	return &migrationRunner{
		config:  cfg,
		migrate: m,
		db:      db,
		out:     out,
		logger:  logger,
	}, nil
}

func (r *migrationRunner) Up() error {
	r.logger.Info("Starting migration up")

	err := r.migrate.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		r.logger.Info("No new migrations to apply")

		return nil
	}

	if err != nil {
		return fmt.Errorf("migration up failed: %w", err)
	}

	r.logger.Info("All migrations applied successfully")

	return nil
}

func (r *migrationRunner) Down() error {
	r.logger.Info("Starting migration down")

	err := r.migrate.Steps(-1)
	if errors.Is(err, migrate.ErrNoChange) || errors.Is(err, fs.ErrNotExist) {
		r.logger.Info("No migrations to roll back")

		return nil
	}

	if err != nil {
		return fmt.Errorf("migration down failed: %w", err)
	}

	r.logger.Info("Last migration rolled back successfully")

	return nil
}

func (r *migrationRunner) Status() error {
	current, dirty, err := r.currentVersion()
	if err != nil {
		return err
	}

	list, err := migrations.List(migrations.FS())
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(list))
	pending := 0

	for _, m := range list {
		state := "applied"

		switch {
		case uint(m.Version) > current:
			state = "pending"
			pending++
		case uint(m.Version) == current && dirty:
			state = "dirty"
		}

		rows = append(rows, []string{fmt.Sprintf("%03d", m.Version), m.Name, state})
	}

	if err := cli.RenderTable(r.out, []string{"Version", "Name", "State"}, rows); err != nil {
		return fmt.Errorf("failed to render status: %w", err)
	}

	_, err = fmt.Fprintf(r.out, "%d applied, %d pending\n", len(list)-pending, pending)

	return err
}

func (r *migrationRunner) Version() error {
	current, dirty, err := r.currentVersion()
	if err != nil {
		return err
	}

	if current == 0 {
		_, err = fmt.Fprintln(r.out, "Current Version: No migrations applied")

		return err
	}

	note := ""
	if dirty {
		note = " (dirty)"
	}

	_, err = fmt.Fprintf(r.out, "Current Version: %d%s\n", current, note)

	return err
}

func (r *migrationRunner) Drop() error {
	r.logger.Warn("Dropping all tables")

	if err := r.migrate.Drop(); err != nil {
		return fmt.Errorf("drop operation failed: %w", err)
	}

	r.logger.Info("All tables dropped successfully")

	return nil
}

// Close closes the migrate instance, which also closes the database handle.
func (r *migrationRunner) Close() error {
	sourceErr, dbErr := r.migrate.Close()

	var errs []error
	if sourceErr != nil {
		errs = append(errs, fmt.Errorf("source close error: %w", sourceErr))
	}

	if dbErr != nil {
		errs = append(errs, fmt.Errorf("database close error: %w", dbErr))
	}

	return errors.Join(errs...)
}

// currentVersion returns 0 when nothing has been applied.
func (r *migrationRunner) currentVersion() (uint, bool, error) {
	v, dirty, err := r.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}

	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}

	return v, dirty, nil
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("component", "migrate"))
}

func (l *migrateLogger) Verbose() bool {
	return l.logger.Enabled(context.Background(), slog.LevelDebug)
}
