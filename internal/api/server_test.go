package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/medfix-io/medfix/internal/api/failure"
	"github.com/medfix-io/medfix/internal/events"
	"github.com/medfix-io/medfix/internal/policy"
	"github.com/medfix-io/medfix/internal/ratelimit"
	"github.com/medfix-io/medfix/internal/session"
	"github.com/medfix-io/medfix/internal/storage"
)

const (
	testAdminEmail = "admin@medfix.test"
	testUserEmail  = "nurse@medfix.test"
	testPassword   = "correct-horse"
	generousLimit  = 1000
)

type (
	testEnv struct {
		t         *testing.T
		server    *Server
		stores    *storage.Stores
		sessions  *session.Manager
		events    *recordingPublisher
		admin     *storage.User
		user      *storage.User
		adminAuth string
		userAuth  string
	}

	recordingPublisher struct {
		mu     sync.Mutex
		events []events.Event
		err    error
	}

	failingChecker struct{}
)

func (p *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, evt)

	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]events.Event(nil), p.events...)
}

func (failingChecker) HealthCheck(context.Context) error { return errors.New("connection refused") }

func testServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:               8080,
		Host:               "127.0.0.1",
		ReadTimeout:        time.Second,
		WriteTimeout:       time.Second,
		ShutdownTimeout:    time.Second,
		LogFormat:          "json",
		MaxRequestSize:     1 << 20,
		CORSAllowedOrigins: []string{"*"},
		CORSAllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
	}
}

// newTestEnv builds a server over memory stores with one admin and one user
// already signed in. Every limit is generous unless tune lowers it.
func newTestEnv(t *testing.T, tune ...func(*policy.Policy, *Dependencies)) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	stores := storage.NewMemoryStores()
	sessions := session.NewManager(stores.Sessions, stores.Users, session.Config{TTL: time.Hour})
	publisher := &recordingPublisher{}

	p := policy.Default()
	for name := range p.Limits {
		p.Limits[name] = ratelimit.Config{MaxRequests: generousLimit, Window: time.Minute}
	}

	deps := Dependencies{Stores: stores, Sessions: sessions, Events: publisher}

	for _, fn := range tune {
		fn(&p, &deps)
	}

	limiters, err := policy.Build(context.Background(), p, logger)
	require.NoError(t, err)

	t.Cleanup(func() { _ = limiters.Close() })

	deps.Limiters = limiters

	env := &testEnv{
		t:        t,
		server:   NewServer(testServerConfig(), deps, logger),
		stores:   stores,
		sessions: sessions,
		events:   publisher,
	}

	env.admin, env.adminAuth = env.seedUser(testAdminEmail, "admin", storage.RoleAdmin)
	env.user, env.userAuth = env.seedUser(testUserEmail, "nurse", storage.RoleUser)

	return env
}

// seedUser stores an account with a cheap hash and signs it in.
func (e *testEnv) seedUser(email, username string, role storage.Role) (*storage.User, string) {
	e.t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(e.t, err)

	user, err := e.stores.Users.Create(context.Background(), &storage.User{
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
	})
	require.NoError(e.t, err)

	issued, err := e.sessions.Issue(context.Background(), user)
	require.NoError(e.t, err)

	return user, "Bearer " + issued.Token
}

// do sends a request through the full middleware stack. body may be a string
// (sent verbatim), nil, or any value encoded as JSON.
func (e *testEnv) do(method, path, auth string, body any) *httptest.ResponseRecorder {
	e.t.Helper()

	var reader io.Reader

	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(e.t, err)

		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("X-Forwarded-For", "198.51.100.7")

	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)

	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())

	return v
}

func requireFailure(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) failure.Body {
	t.Helper()

	require.Equal(t, status, rec.Code, "body: %s", rec.Body.String())

	body := decode[failure.Body](t, rec)
	require.False(t, body.Success)
	require.Equal(t, code, body.Code)

	return body
}

func TestNewServer_MiddlewareStack(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/devices", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodOptions, "/api/devices", nil)
	pre := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(pre, req)
	require.Equal(t, http.StatusNoContent, pre.Code)
}

func TestNewServer_BodyTooLarge(t *testing.T) {
	env := newTestEnv(t)
	env.server = NewServer(&ServerConfig{
		Port: 8080, Host: "127.0.0.1", MaxRequestSize: 16, LogFormat: "json",
		ReadTimeout: time.Second, WriteTimeout: time.Second, ShutdownTimeout: time.Second,
	}, env.server.deps, env.server.logger)

	rec := env.do(http.MethodPost, "/api/devices", env.adminAuth, map[string]string{"name": "a very long device name indeed"})
	requireFailure(t, rec, http.StatusRequestEntityTooLarge, failure.CodePayloadTooLarge)
}

func TestServer_CloseDependencies(t *testing.T) {
	closed := 0
	env := newTestEnv(t, func(_ *policy.Policy, d *Dependencies) {
		d.Closers = []io.Closer{closerFunc(func() error { closed++; return nil }), nil}
	})

	env.server.closeDependencies()
	require.Equal(t, 1, closed)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
