// Package session issues and resolves opaque bearer sessions for medfix users.
//
// Tokens are random, carried in the Authorization header or the medfix_session
// cookie, and stored only as their SHA-256 hash with an expiry.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/medfix-io/medfix/internal/config"
	"github.com/medfix-io/medfix/internal/storage"
)

// DefaultTTL is how long a session lives when MEDFIX_SESSION_TTL is unset.
const DefaultTTL = 24 * time.Hour

var (
	// ErrUnauthenticated wraps every reason a request has no usable session.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrExpired is returned for a session past its expiry.
	ErrExpired = errors.New("session expired")
	// ErrUnknownSession is returned when no stored session matches the token.
	ErrUnknownSession = errors.New("unknown session")
)

type (
	// Session is a resolved, unexpired session and its user.
	Session struct {
		User      *storage.User
		TokenHash string
		ExpiresAt time.Time
	}

	// Issued is a freshly created session token. The token is shown once.
	Issued struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expiresAt"`
	}

	// Provider resolves the caller's session.
	Provider interface {
		Resolve(ctx context.Context, r *http.Request) (*Session, error)
		Issue(ctx context.Context, user *storage.User) (*Issued, error)
		Revoke(ctx context.Context, r *http.Request) error
	}

	// Config holds session settings.
	Config struct {
		TTL time.Duration
	}

	// Manager is the Provider backed by a session store and a user store.
	Manager struct {
		sessions storage.SessionStore
		users    storage.UserStore
		ttl      time.Duration
		now      func() time.Time
		logger   *slog.Logger
	}

	// Option configures a Manager.
	Option func(*Manager)
)

var _ Provider = (*Manager)(nil)

// IsAdmin reports whether the session's user has the admin role.
func (s *Session) IsAdmin() bool {
	return s.User != nil && s.User.Role == storage.RoleAdmin
}

// LoadConfig reads MEDFIX_SESSION_TTL. Non-positive values fall back to the default.
func LoadConfig() Config {
	ttl := config.GetEnvDuration("MEDFIX_SESSION_TTL", DefaultTTL)
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return Config{TTL: ttl}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLogger sets the logger for revocation and expiry events.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a Manager.
func NewManager(sessions storage.SessionStore, users storage.UserStore, cfg Config, opts ...Option) *Manager {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	m := &Manager{
		sessions: sessions,
		users:    users,
		ttl:      ttl,
		now:      time.Now,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// TTL returns the lifetime of issued sessions.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue creates and stores a session for user.
func (m *Manager) Issue(ctx context.Context, user *storage.User) (*Issued, error) {
	token, err := GenerateToken()
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	rec := storage.SessionRecord{
		TokenHash: HashToken(token),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	if err := m.sessions.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return &Issued{Token: token, ExpiresAt: rec.ExpiresAt}, nil
}

// Resolve returns the caller's session. Every missing, malformed, unknown or
// expired token yields an error wrapping ErrUnauthenticated. Store failures are
// returned unwrapped so they surface as server errors.
func (m *Manager) Resolve(ctx context.Context, r *http.Request) (*Session, error) {
	token, err := ExtractToken(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	hash := HashToken(token)

	rec, err := m.sessions.Find(ctx, hash)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, ErrUnknownSession)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	if !SecureCompare(rec.TokenHash, hash) {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, ErrUnknownSession)
	}

	if !m.now().Before(rec.ExpiresAt) {
		if err := m.sessions.Delete(ctx, hash); err != nil {
			m.logger.Warn("Failed to delete expired session",
				slog.String("token", MaskToken(token)), slog.String("error", err.Error()))
		}

		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, ErrExpired)
	}

	user, err := m.users.Get(ctx, rec.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, ErrUnknownSession)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load session user: %w", err)
	}

	return &Session{User: user, TokenHash: hash, ExpiresAt: rec.ExpiresAt}, nil
}

// Revoke deletes the caller's session. A request without a valid token is
// unauthenticated; revoking an already unknown session is not an error.
func (m *Manager) Revoke(ctx context.Context, r *http.Request) error {
	token, err := ExtractToken(r)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	if err := m.sessions.Delete(ctx, HashToken(token)); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	m.logger.Debug("Session revoked", slog.String("token", MaskToken(token)))

	return nil
}
