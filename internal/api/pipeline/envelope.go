// Package pipeline composes named request steps (rate limiting, schema
// validation) in front of a terminal handler, with a single point where every
// failure becomes a normalized JSON response.
//
// A request moves through Received → (step applied)* → Handled | Failed. The
// first failing step ends the call: later steps and the handler never run.
package pipeline

import (
	"context"
	"maps"
	"net/http"

	"github.com/medfix-io/medfix/internal/validation"
)

// Envelope is the in-flight request threaded through the steps of one call.
// It is never shared between calls. Steps return a derived envelope rather
// than mutating the one they receive.
type Envelope struct {
	request   *http.Request
	validated map[validation.Source]any
	current   any
}

// NewEnvelope wraps r in a fresh envelope with no validated data.
func NewEnvelope(r *http.Request) *Envelope {
	return &Envelope{request: r}
}

// Request returns the underlying request.
func (e *Envelope) Request() *http.Request { return e.request }

// Context returns the request context.
func (e *Envelope) Context() context.Context { return e.request.Context() }

// ValidatedData returns the value attached by the most recent validation step,
// or nil when nothing has been validated.
func (e *Envelope) ValidatedData() any { return e.current }

// WithValidated returns a copy of e carrying v as the validated value for src.
func (e *Envelope) WithValidated(src validation.Source, v any) *Envelope {
	next := &Envelope{
		request:   e.request,
		validated: make(map[validation.Source]any, len(e.validated)+1),
		current:   v,
	}

	maps.Copy(next.validated, e.validated)
	next.validated[src] = v

	return next
}

// WithRequest returns a copy of e using r as the underlying request.
func (e *Envelope) WithRequest(r *http.Request) *Envelope {
	next := *e
	next.request = r

	return &next
}

// ValidatedAs returns the typed value attached for src.
func ValidatedAs[T any](e *Envelope, src validation.Source) (T, bool) {
	v, ok := e.validated[src].(T)

	return v, ok
}

// Body returns the validated request body.
func Body[T any](e *Envelope) (T, bool) {
	return ValidatedAs[T](e, validation.SourceBody)
}

// Query returns the validated query parameters.
func Query[T any](e *Envelope) (T, bool) {
	return ValidatedAs[T](e, validation.SourceQuery)
}

// Params returns the validated path parameters.
func Params[T any](e *Envelope) (T, bool) {
	return ValidatedAs[T](e, validation.SourceParams)
}
