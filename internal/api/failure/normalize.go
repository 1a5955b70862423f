package failure

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"
)

const (
	internalErrorMessage    = "Internal server error"
	validationFailedMessage = "Validation failed"
)

type (
	// Body is the JSON error contract returned for every failed request.
	Body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
		Code    string `json:"code,omitempty"`
		Details any    `json:"details,omitempty"`
	}

	// Response is a normalized failure ready to be written.
	Response struct {
		Status     int
		Body       Body
		RetryAfter time.Duration
		// Expected is false when the error was not a recognized failure type.
		Expected bool
	}

	// IssueReporter is implemented by schema validation errors. When such an
	// error reaches the boundary unconverted it is reported with its issues.
	IssueReporter interface {
		error
		ValidationIssues() any
	}
)

// Normalize maps any error onto the failure response contract.
//
// Mapping:
//   - *Failure (anywhere in the chain) → its message, status and code
//   - IssueReporter → 400 "Validation failed" with details and VALIDATION_ERROR
//   - anything else → 500 "Internal server error" with INTERNAL_ERROR
func Normalize(err error) Response {
	var f *Failure
	if errors.As(err, &f) {
		return Response{
			Status:     f.status,
			Body:       Body{Error: f.message, Code: f.code},
			RetryAfter: f.retryAfter,
			Expected:   true,
		}
	}

	var issues IssueReporter
	if errors.As(err, &issues) {
		return Response{
			Status: http.StatusBadRequest,
			Body: Body{
				Error:   validationFailedMessage,
				Code:    CodeValidationError,
				Details: issues.ValidationIssues(),
			},
			Expected: true,
		}
	}

	return Response{
		Status: http.StatusInternalServerError,
		Body:   Body{Error: internalErrorMessage, Code: CodeInternalError},
	}
}

// Write normalizes err, logs it and writes the JSON error response.
// Unexpected errors are logged at error level with their raw message, which is
// never sent to the caller.
func Write(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	resp := Normalize(err)

	attrs := []any{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status_code", resp.Status),
		slog.String("error", err.Error()),
	}

	var f *Failure
	if errors.As(err, &f) && f.cause != nil {
		attrs = append(attrs, slog.String("cause", f.cause.Error()))
	}

	switch {
	case !resp.Expected || resp.Status >= http.StatusInternalServerError:
		logger.Error("Request failed", attrs...)
	default:
		logger.Debug("Request rejected", append(attrs, slog.String("code", resp.Body.Code))...)
	}

	if resp.RetryAfter > 0 {
		seconds := int(math.Ceil(resp.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)

	if err := json.NewEncoder(w).Encode(resp.Body); err != nil {
		logger.Error("Failed to encode error response", slog.String("error", err.Error()))
	}
}
