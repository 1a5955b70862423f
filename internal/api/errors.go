package api

import (
	"errors"
	"net/http"

	"github.com/medfix-io/medfix/internal/api/failure"
	"github.com/medfix-io/medfix/internal/storage"
)

const (
	unavailableMessage = "Service temporarily unavailable"
	duplicateMessage   = "An entry with this name already exists"
	notFoundRoute      = "The requested resource was not found"
)

// storageFailure maps storage sentinel errors onto request failures. Errors
// that are not sentinels are returned unchanged and become 500s.
//
// Mapping:
//   - ErrNotFound → 404 "<what> not found"
//   - ErrDuplicate → 409 DUPLICATE_ENTRY
//   - ErrInvalidStatus, ErrInvalidRole, ErrTooLong → 400 VALIDATION_ERROR
//   - ErrUnavailable → 503 SERVICE_UNAVAILABLE
func storageFailure(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return failure.NotFound(what+" not found", failure.WithCause(err))
	case errors.Is(err, storage.ErrDuplicate):
		return failure.Conflict(duplicateMessage, failure.CodeDuplicateEntry, failure.WithCause(err))
	case errors.Is(err, storage.ErrInvalidStatus), errors.Is(err, storage.ErrInvalidRole),
		errors.Is(err, storage.ErrTooLong):
		return failure.BadRequest(err.Error(), failure.CodeValidationError, failure.WithCause(err))
	case errors.Is(err, storage.ErrUnavailable):
		return failure.New(unavailableMessage,
			failure.WithStatus(http.StatusServiceUnavailable),
			failure.WithCode(failure.CodeUnavailable),
			failure.WithCause(err),
		)
	default:
		return err
	}
}

// successBody is returned by deletes and logout.
type successBody struct {
	Success bool `json:"success"`
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
