// Package failure defines the typed failure raised by request pipeline steps and
// handlers, and its normalization into the JSON error contract.
package failure

import (
	"net/http"
	"time"
)

// Stable machine-readable codes returned in the "code" field of error responses.
const (
	CodeRateLimit        = "RATE_LIMIT"
	CodeInvalidJSON      = "INVALID_JSON"
	CodePayloadTooLarge  = "PAYLOAD_TOO_LARGE"
	CodeValidationError  = "VALIDATION_ERROR"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeInternalError    = "INTERNAL_ERROR"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeNotFound         = "NOT_FOUND"
	CodeDuplicateUser    = "DUPLICATE_USER"
	CodeDuplicateEntry   = "DUPLICATE_ENTRY"
	CodeInvalidCreds     = "INVALID_CREDENTIALS"
	CodeSelfDelete       = "SELF_DELETE"
	CodeUnavailable      = "SERVICE_UNAVAILABLE"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

type (
	// Failure is an expected request failure with a user-facing message, an HTTP
	// status and an optional code. A Failure is immutable once constructed.
	Failure struct {
		message    string
		status     int
		code       string
		retryAfter time.Duration
		cause      error
	}

	// Option configures a Failure at construction time.
	Option func(*Failure)
)

// New creates a Failure. The status defaults to 500 when no WithStatus option is
// given. An empty message is replaced by the status text.
//
// Example:
//
//	failure.New("Rate limit exceeded",
//	    failure.WithStatus(http.StatusTooManyRequests),
//	    failure.WithCode(failure.CodeRateLimit),
//	)
func New(message string, opts ...Option) *Failure {
	f := &Failure{
		message: message,
		status:  http.StatusInternalServerError,
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.status < 100 || f.status > 599 {
		f.status = http.StatusInternalServerError
	}

	if f.message == "" {
		f.message = http.StatusText(f.status)
	}

	return f
}

// WithStatus sets the HTTP status of the failure.
func WithStatus(status int) Option {
	return func(f *Failure) {
		f.status = status
	}
}

// WithCode sets the machine-readable code of the failure.
func WithCode(code string) Option {
	return func(f *Failure) {
		f.code = code
	}
}

// WithRetryAfter attaches a retry hint, emitted as a Retry-After header.
func WithRetryAfter(d time.Duration) Option {
	return func(f *Failure) {
		f.retryAfter = d
	}
}

// WithCause records the underlying error. The cause is logged but never
// serialized into the response.
func WithCause(err error) Option {
	return func(f *Failure) {
		f.cause = err
	}
}

// Error implements the error interface and returns the user-facing message.
func (f *Failure) Error() string {
	return f.message
}

// Unwrap returns the underlying cause, if any.
func (f *Failure) Unwrap() error {
	return f.cause
}

// Message returns the user-facing message.
func (f *Failure) Message() string { return f.message }

// Status returns the HTTP status.
func (f *Failure) Status() int { return f.status }

// Code returns the machine-readable code, or "" when none was set.
func (f *Failure) Code() string { return f.code }

// RetryAfter returns the retry hint, or zero when none was set.
func (f *Failure) RetryAfter() time.Duration { return f.retryAfter }

// BadRequest returns a 400 failure with the given code.
func BadRequest(message, code string, opts ...Option) *Failure {
	return New(message, append([]Option{WithStatus(http.StatusBadRequest), WithCode(code)}, opts...)...)
}

// Unauthorized returns the 401 failure used when no valid session is present.
func Unauthorized(opts ...Option) *Failure {
	return New("Unauthorized", append([]Option{WithStatus(http.StatusUnauthorized), WithCode(CodeUnauthorized)}, opts...)...)
}

// Forbidden returns the 403 failure used when the session lacks the admin role.
func Forbidden() *Failure {
	return New("Forbidden - Admin access required", WithStatus(http.StatusForbidden), WithCode(CodeForbidden))
}

// NotFound returns a 404 failure.
func NotFound(message string, opts ...Option) *Failure {
	return New(message, append([]Option{WithStatus(http.StatusNotFound), WithCode(CodeNotFound)}, opts...)...)
}

// Conflict returns a 409 failure with the given code.
func Conflict(message, code string, opts ...Option) *Failure {
	return New(message, append([]Option{WithStatus(http.StatusConflict), WithCode(code)}, opts...)...)
}
