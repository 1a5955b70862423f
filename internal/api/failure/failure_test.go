package failure

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testIssues struct {
	issues []string
}

func (e *testIssues) Error() string         { return "schema rejected input" }
func (e *testIssues) ValidationIssues() any { return e.issues }

func TestNew_Defaults(t *testing.T) {
	f := New("boom")

	assert.Equal(t, "boom", f.Message())
	assert.Equal(t, http.StatusInternalServerError, f.Status())
	assert.Empty(t, f.Code())
	assert.Zero(t, f.RetryAfter())
}

func TestNew_EmptyMessageUsesStatusText(t *testing.T) {
	f := New("", WithStatus(http.StatusNotFound))

	assert.Equal(t, "Not Found", f.Message())
}

func TestNew_InvalidStatusFallsBackTo500(t *testing.T) {
	f := New("odd", WithStatus(42))

	assert.Equal(t, http.StatusInternalServerError, f.Status())
}

func TestNormalize(t *testing.T) {
	cause := errors.New("pq: connection refused")

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   Body
		expected   bool
	}{
		{
			name:       "known failure",
			err:        New("Rate limit exceeded", WithStatus(http.StatusTooManyRequests), WithCode(CodeRateLimit)),
			wantStatus: http.StatusTooManyRequests,
			wantBody:   Body{Error: "Rate limit exceeded", Code: CodeRateLimit},
			expected:   true,
		},
		{
			name:       "wrapped known failure",
			err:        fmt.Errorf("handler: %w", NotFound("Device not found")),
			wantStatus: http.StatusNotFound,
			wantBody:   Body{Error: "Device not found", Code: CodeNotFound},
			expected:   true,
		},
		{
			name:       "failure without code",
			err:        New("teapot", WithStatus(http.StatusTeapot)),
			wantStatus: http.StatusTeapot,
			wantBody:   Body{Error: "teapot"},
			expected:   true,
		},
		{
			name:       "validation issues",
			err:        &testIssues{issues: []string{"name: too short"}},
			wantStatus: http.StatusBadRequest,
			wantBody: Body{
				Error:   "Validation failed",
				Code:    CodeValidationError,
				Details: []string{"name: too short"},
			},
			expected: true,
		},
		{
			name:       "unexpected error",
			err:        cause,
			wantStatus: http.StatusInternalServerError,
			wantBody:   Body{Error: "Internal server error", Code: CodeInternalError},
		},
		{
			name:       "failure cause is not exposed",
			err:        New("Could not save", WithCause(cause)),
			wantStatus: http.StatusInternalServerError,
			wantBody:   Body{Error: "Could not save"},
			expected:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := Normalize(tt.err)

			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, tt.wantBody, resp.Body)
			assert.Equal(t, tt.expected, resp.Expected)
			assert.False(t, resp.Body.Success)
		})
	}
}

func TestWrite_UnexpectedErrorDoesNotLeak(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/devices", nil)

	Write(rec, req, logger, errors.New("secret stack detail"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotContains(t, rec.Body.String(), "secret stack detail")

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Internal server error", body["error"])
	assert.Equal(t, "INTERNAL_ERROR", body["code"])
	assert.NotContains(t, body, "details")
}

func TestWrite_RetryAfterHeader(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/devices", nil)

	Write(rec, req, logger, New("Rate limit exceeded",
		WithStatus(http.StatusTooManyRequests),
		WithCode(CodeRateLimit),
		WithRetryAfter(1500*time.Millisecond),
	))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
}
