package storage

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	pqUniqueViolation   pq.ErrorCode = "23505"
	pqInvalidTextFormat pq.ErrorCode = "22P02"
	pqCheckViolation    pq.ErrorCode = "23514"
	pqStringTooLong     pq.ErrorCode = "22001"
)

// pqConnectionClass prefixes every PostgreSQL connection exception code.
const pqConnectionClass = "08"

var (
	_ UserStore    = (*PostgresUserStore)(nil)
	_ CatalogStore = (*PostgresCatalogStore)(nil)
	_ RequestStore = (*PostgresRequestStore)(nil)
	_ SessionStore = (*PostgresSessionStore)(nil)
)

// NewPostgresStores returns a PostgreSQL implementation of every store over conn.
// The session store runs a background cleanup; close it via Stores.Close.
func NewPostgresStores(conn *Connection, cfg *Config, logger *slog.Logger) (*Stores, error) {
	if conn == nil {
		return nil, ErrNoDatabaseConnection
	}

	sessions, err := NewPostgresSessionStore(conn, cfg.CleanupInterval, WithSessionLogger(logger))
	if err != nil {
		return nil, err
	}

	return &Stores{
		Users:    NewPostgresUserStore(conn),
		Devices:  NewPostgresCatalogStore(conn, CatalogDevices),
		Units:    NewPostgresCatalogStore(conn, CatalogUnits),
		Requests: NewPostgresRequestStore(conn),
		Sessions: sessions,
	}, nil
}

// Close stops background work held by any store that has some.
func (s *Stores) Close() error {
	if closer, ok := s.Sessions.(interface{ Close() error }); ok {
		return closer.Close()
	}

	return nil
}

// translate maps driver errors onto the package sentinels, keeping the original in the chain.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}

	if isDatabaseConnectionError(err) {
		return fmt.Errorf("%s: %w: %w", what, ErrUnavailable, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return fmt.Errorf("%s: %w: %w", what, ErrDuplicate, err)
		case pqStringTooLong:
			return fmt.Errorf("%s: %w: %w", what, ErrTooLong, err)
		case pqInvalidTextFormat:
			// A malformed uuid cannot address any row.
			return fmt.Errorf("%s: %w", what, ErrNotFound)
		case pqCheckViolation:
			if strings.Contains(pqErr.Constraint, "status") {
				return fmt.Errorf("%s: %w: %w", what, ErrInvalidStatus, err)
			}

			if strings.Contains(pqErr.Constraint, "role") {
				return fmt.Errorf("%s: %w: %w", what, ErrInvalidRole, err)
			}
		}
	}

	return fmt.Errorf("%s: %w", what, err)
}

// isDatabaseConnectionError reports PostgreSQL class 08 errors and dropped connections.
func isDatabaseConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return strings.HasPrefix(string(pqErr.Code), pqConnectionClass)
	}

	return errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn)
}

// validID reports whether id can address a row. Avoids a round trip for garbage ids.
func validID(id string) bool {
	_, err := uuid.Parse(id)

	return err == nil
}

func affectedOrNotFound(result sql.Result, what string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}

	if rows == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// setClause accumulates "column = $n" assignments for a partial update.
type setClause struct {
	columns []string
	args    []any
}

func (c *setClause) add(column string, value any) {
	c.args = append(c.args, value)
	c.columns = append(c.columns, fmt.Sprintf("%s = $%d", column, len(c.args)))
}

// raw appends an assignment that takes no argument.
func (c *setClause) raw(assignment string) {
	c.columns = append(c.columns, assignment)
}

func (c *setClause) empty() bool {
	return len(c.columns) == 0
}

func (c *setClause) String() string {
	return strings.Join(c.columns, ", ")
}
