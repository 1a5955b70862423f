package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// cleanupBatchSize caps rows deleted per statement to keep locks short.
const cleanupBatchSize = 10000

// PostgresSessionStore persists sessions and purges expired ones in the background.
type PostgresSessionStore struct {
	conn    *Connection
	logger  *slog.Logger
	sweeper *sessionSweeper
}

// SessionStoreOption configures a PostgresSessionStore.
type SessionStoreOption func(*PostgresSessionStore)

// WithSessionLogger sets the logger used by the cleanup goroutine. Nil keeps the default.
func WithSessionLogger(logger *slog.Logger) SessionStoreOption {
	return func(s *PostgresSessionStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewPostgresSessionStore creates a session store and starts its cleanup goroutine.
// The goroutine stops on Close. The connection is not closed by the store.
func NewPostgresSessionStore(
	conn *Connection,
	cleanupInterval time.Duration,
	opts ...SessionStoreOption,
) (*PostgresSessionStore, error) {
	if conn == nil {
		return nil, ErrNoDatabaseConnection
	}

	if cleanupInterval <= 0 {
		return nil, ErrInvalidCleanupInterval
	}

	store := &PostgresSessionStore{
		conn:   conn,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(store)
	}

	store.sweeper = startSessionSweeper(store.DeleteExpired, cleanupInterval, store.logger)

	return store, nil
}

// Save inserts rec, replacing any session with the same token hash.
func (s *PostgresSessionStore) Save(ctx context.Context, rec SessionRecord) error {
	query := `
		INSERT INTO sessions (token_hash, user_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token_hash) DO UPDATE
		SET user_id = EXCLUDED.user_id, created_at = EXCLUDED.created_at, expires_at = EXCLUDED.expires_at`

	if _, err := s.conn.ExecContext(ctx, query, rec.TokenHash, rec.UserID, rec.CreatedAt, rec.ExpiresAt); err != nil {
		return translate(err, "save session")
	}

	return nil
}

// Find returns the session for tokenHash. Expiry is checked by the caller.
func (s *PostgresSessionStore) Find(ctx context.Context, tokenHash string) (*SessionRecord, error) {
	var rec SessionRecord

	err := s.conn.QueryRowContext(ctx,
		`SELECT token_hash, user_id, created_at, expires_at FROM sessions WHERE token_hash = $1`, tokenHash).
		Scan(&rec.TokenHash, &rec.UserID, &rec.CreatedAt, &rec.ExpiresAt)
	if err != nil {
		return nil, translate(err, "find session")
	}

	return &rec, nil
}

// Delete removes the session for tokenHash. Deleting an unknown session is not an error.
func (s *PostgresSessionStore) Delete(ctx context.Context, tokenHash string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash); err != nil {
		return translate(err, "delete session")
	}

	return nil
}

// DeleteExpired removes sessions that expired at or before now, in batches.
func (s *PostgresSessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM sessions
		WHERE token_hash IN (
			SELECT token_hash FROM sessions
			WHERE expires_at <= $1
			ORDER BY expires_at ASC
			LIMIT $2
		)`

	var total int64

	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		result, err := s.conn.ExecContext(ctx, query, now, cleanupBatchSize)
		if err != nil {
			return total, translate(err, "delete expired sessions")
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("delete expired sessions: %w", err)
		}

		total += rows

		if rows < cleanupBatchSize {
			return total, nil
		}
	}
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (s *PostgresSessionStore) Close() error {
	return s.sweeper.Close()
}
