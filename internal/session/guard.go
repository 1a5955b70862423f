package session

import (
	"errors"
	"net/http"

	"github.com/medfix-io/medfix/internal/api/failure"
)

// RequireUser resolves the caller's session or returns a 401 failure.
// Store errors pass through and become 500s.
func RequireUser(p Provider, r *http.Request) (*Session, error) {
	s, err := p.Resolve(r.Context(), r)
	if errors.Is(err, ErrUnauthenticated) {
		return nil, failure.Unauthorized(failure.WithCause(err))
	}

	if err != nil {
		return nil, err
	}

	return s, nil
}

// RequireAdmin resolves the caller's session and requires the admin role.
// No session is a 401. A non-admin session is a 403.
func RequireAdmin(p Provider, r *http.Request) (*Session, error) {
	s, err := RequireUser(p, r)
	if err != nil {
		return nil, err
	}

	if !s.IsAdmin() {
		return nil, failure.Forbidden()
	}

	return s, nil
}
