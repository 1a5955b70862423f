package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medfix-io/medfix/internal/api/failure"
	"github.com/medfix-io/medfix/internal/policy"
	"github.com/medfix-io/medfix/internal/ratelimit"
	"github.com/medfix-io/medfix/internal/session"
	"github.com/medfix-io/medfix/internal/storage"
)

func TestAuth_Register(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "porter@medfix.test",
		"password": "long-enough",
		"username": "porter_1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	user := decode[storage.User](t, rec)
	assert.Equal(t, storage.RoleUser, user.Role)

	rec = env.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "porter2@medfix.test",
		"password": "long-enough",
		"username": "no spaces allowed",
	})
	requireFailure(t, rec, http.StatusBadRequest, failure.CodeValidationError)

	rec = env.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    testUserEmail,
		"password": "long-enough",
		"username": "someone",
	})
	requireFailure(t, rec, http.StatusConflict, failure.CodeDuplicateUser)
}

func TestAuth_LoginAndMe(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "NURSE@medfix.test",
		"password": testPassword,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	login := decode[loginResponse](t, rec)
	assert.Contains(t, login.Token, session.TokenPrefix)
	assert.True(t, login.ExpiresAt.After(time.Now()))
	assert.Equal(t, env.user.ID, login.User.ID)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, session.CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	rec = env.do(http.MethodGet, "/api/auth/me", "Bearer "+login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, env.user.ID, decode[storage.User](t, rec).ID)
}

func TestAuth_LoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)

	tests := map[string]map[string]string{
		"wrong password": {"email": testUserEmail, "password": "wrong-password"},
		"unknown email":  {"email": "nobody@medfix.test", "password": testPassword},
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/api/auth/login", "", body)
			res := requireFailure(t, rec, http.StatusUnauthorized, failure.CodeInvalidCreds)
			assert.Equal(t, "Invalid email or password", res.Error)
		})
	}

	rec := env.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": testUserEmail})
	requireFailure(t, rec, http.StatusBadRequest, failure.CodeValidationError)
}

func TestAuth_LoginRateLimit(t *testing.T) {
	env := newTestEnv(t, func(p *policy.Policy, _ *Dependencies) {
		p.Limits[policy.Login] = ratelimit.Config{MaxRequests: 2, Window: time.Minute}
	})

	body := map[string]string{"email": testUserEmail, "password": "wrong-password"}

	for range 2 {
		rec := env.do(http.MethodPost, "/api/auth/login", "", body)
		requireFailure(t, rec, http.StatusUnauthorized, failure.CodeInvalidCreds)
	}

	rec := env.do(http.MethodPost, "/api/auth/login", "", `not even json`)
	requireFailure(t, rec, http.StatusTooManyRequests, failure.CodeRateLimit)
}

func TestAuth_Logout(t *testing.T) {
	env := newTestEnv(t)

	requireFailure(t, env.do(http.MethodPost, "/api/auth/logout", "", nil), http.StatusUnauthorized, failure.CodeUnauthorized)

	rec := env.do(http.MethodPost, "/api/auth/logout", env.userAuth, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[successBody](t, rec).Success)

	rec = env.do(http.MethodGet, "/api/auth/me", env.userAuth, nil)
	requireFailure(t, rec, http.StatusUnauthorized, failure.CodeUnauthorized)
}

func TestAuth_MeWithoutSession(t *testing.T) {
	env := newTestEnv(t)

	requireFailure(t, env.do(http.MethodGet, "/api/auth/me", "", nil), http.StatusUnauthorized, failure.CodeUnauthorized)
	requireFailure(t, env.do(http.MethodGet, "/api/auth/me", "Bearer medfix_st_bogus", nil),
		http.StatusUnauthorized, failure.CodeUnauthorized)
}
