package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/medfix-io/medfix/internal/api/failure"
	"github.com/medfix-io/medfix/internal/api/middleware"
	"github.com/medfix-io/medfix/internal/api/pipeline"
	"github.com/medfix-io/medfix/internal/session"
	"github.com/medfix-io/medfix/internal/storage"
)

const invalidCredentialsMessage = "Invalid email or password"

// dummyHash is compared against when the email is unknown, so that a login for
// a missing account costs the same bcrypt work as a wrong password.
var dummyHash = sync.OnceValue(func() string { //nolint: gochecknoglobals
	hash, _ := storage.HashPassword("medfix-timing-equalizer")

	return hash
})

type (
	// authHandler serves registration and the session lifecycle.
	authHandler struct {
		users    storage.UserStore
		sessions session.Provider
		logger   *slog.Logger
	}

	// loginResponse is the body of a successful login.
	loginResponse struct {
		Token     string        `json:"token"`
		ExpiresAt time.Time     `json:"expiresAt"`
		User      *storage.User `json:"user"`
	}
)

// register creates a user-role account. Registration never grants admin.
func (h *authHandler) register(env *pipeline.Envelope) (*pipeline.Response, error) {
	in, _ := pipeline.Body[registerInput](env)

	user, err := createUser(env, h.users, in.Email, in.Username, in.Password, storage.RoleUser)
	if err != nil {
		return nil, err
	}

	h.logger.Info("User registered",
		slog.String("correlation_id", middleware.GetCorrelationID(env.Context())),
		slog.String("user_id", user.ID),
	)

	return pipeline.Created(user), nil
}

func (h *authHandler) login(env *pipeline.Envelope) (*pipeline.Response, error) {
	in, _ := pipeline.Body[loginInput](env)

	user, err := h.users.GetByEmail(env.Context(), normalizeEmail(in.Email))

	switch {
	case err == nil:
		if !storage.ComparePassword(user.PasswordHash, in.Password) {
			return nil, invalidCredentials()
		}
	case isNotFound(err):
		storage.ComparePassword(dummyHash(), in.Password)

		return nil, invalidCredentials()
	default:
		return nil, storageFailure(err, userNoun)
	}

	issued, err := h.sessions.Issue(env.Context(), user)
	if err != nil {
		return nil, storageFailure(err, userNoun)
	}

	resp := pipeline.OK(loginResponse{Token: issued.Token, ExpiresAt: issued.ExpiresAt, User: user})
	resp.Header = http.Header{}
	resp.Header.Add("Set-Cookie", sessionCookie(issued.Token, issued.ExpiresAt).String())

	return resp, nil
}

func (h *authHandler) logout(env *pipeline.Envelope) (*pipeline.Response, error) {
	if _, err := session.RequireUser(h.sessions, env.Request()); err != nil {
		return nil, err
	}

	if err := h.sessions.Revoke(env.Context(), env.Request()); err != nil {
		return nil, storageFailure(err, userNoun)
	}

	resp := pipeline.OK(successBody{Success: true})
	resp.Header = http.Header{}
	resp.Header.Add("Set-Cookie", sessionCookie("", time.Unix(0, 0)).String())

	return resp, nil
}

func (h *authHandler) me(env *pipeline.Envelope) (*pipeline.Response, error) {
	s, err := session.RequireUser(h.sessions, env.Request())
	if err != nil {
		return nil, err
	}

	return pipeline.OK(s.User), nil
}

func invalidCredentials() error {
	return failure.New(invalidCredentialsMessage,
		failure.WithStatus(http.StatusUnauthorized),
		failure.WithCode(failure.CodeInvalidCreds),
	)
}

func sessionCookie(token string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     session.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}
