// Package migrations embeds the medfix PostgreSQL schema migrations and
// validates their layout before they are handed to golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// DefaultTable is the table golang-migrate uses to track the applied version.
const DefaultTable = "schema_migrations"

var (
	//go:embed *.sql
	embedded embed.FS

	// filenamePattern matches 001_name.up.sql and 001_name.down.sql.
	filenamePattern = regexp.MustCompile(`^(\d{3})_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)

	// ErrNoMigrations is returned when the filesystem holds no migration files.
	ErrNoMigrations = errors.New("no migration files found")
)

// Migration is one version with both of its directions.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// FS returns the embedded migration files.
func FS() fs.FS {
	return embedded
}

// List parses every migration file in fsys and returns one entry per version,
// sorted by version. Files not matching the naming scheme are rejected.
func List(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	byVersion := make(map[int]*Migration)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		match := filenamePattern.FindStringSubmatch(entry.Name())
		if match == nil {
			return nil, fmt.Errorf("invalid migration filename %q: expected 001_name.(up|down).sql", entry.Name())
		}

		version, _ := strconv.Atoi(match[1])

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: match[2]}
			byVersion[version] = m
		}

		if m.Name != match[2] {
			return nil, fmt.Errorf("version %03d has conflicting names %q and %q", version, m.Name, match[2])
		}

		if match[3] == "up" {
			m.Up = entry.Name()
		} else {
			m.Down = entry.Name()
		}
	}

	result := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		result = append(result, *m)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Version < result[j].Version })

	return result, nil
}

// Validate checks that fsys holds at least one migration, that every version
// has both directions, that versions run 1..n without gaps, and that no file
// is empty.
func Validate(fsys fs.FS) error {
	list, err := List(fsys)
	if err != nil {
		return err
	}

	if len(list) == 0 {
		return ErrNoMigrations
	}

	for i, m := range list {
		if m.Version != i+1 {
			return fmt.Errorf("migration sequence gap: expected version %03d, found %03d", i+1, m.Version)
		}

		if m.Up == "" || m.Down == "" {
			return fmt.Errorf("migration %03d_%s is missing its up or down file", m.Version, m.Name)
		}

		for _, name := range []string{m.Up, m.Down} {
			content, err := fs.ReadFile(fsys, name)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", name, err)
			}

			if len(content) == 0 {
				return fmt.Errorf("migration file %s is empty", name)
			}
		}
	}

	return nil
}

// New builds a golang-migrate instance over db using the embedded files.
// The caller owns db; closing the returned instance also closes db.
func New(db *sql.DB, table string) (*migrate.Migrate, error) {
	if err := Validate(embedded); err != nil {
		return nil, fmt.Errorf("embedded migrations are invalid: %w", err)
	}

	if table == "" {
		table = DefaultTable
	}

	source, err := iofs.New(embedded, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: table})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	return m, nil
}

// Up applies every pending migration. No pending migration is not an error.
func Up(db *sql.DB) error {
	m, err := New(db, DefaultTable)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}

	return nil
}
