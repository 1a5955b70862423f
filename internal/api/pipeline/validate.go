package pipeline

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/medfix-io/medfix/internal/api/failure"
	"github.com/medfix-io/medfix/internal/validation"
)

const (
	invalidDataMessage      = "Submitted data is invalid"
	invalidJSONMessage      = "Request body must be valid JSON"
	validationFailedMessage = "Validation failed"
	payloadTooLargeMessage  = "Request body too large"
)

type (
	validateStep struct {
		schema validation.Schema
		source validation.Source
		params []string
	}

	// ValidateOption configures a Validate step.
	ValidateOption func(*validateStep)
)

// FromQuery validates the URL query instead of the body. Each key maps to its
// last value.
func FromQuery() ValidateOption {
	return func(s *validateStep) {
		s.source = validation.SourceQuery
	}
}

// FromParams validates the named path parameters of the matched route pattern
// instead of the body. Parameters that are empty are left out of the object.
func FromParams(names ...string) ValidateOption {
	return func(s *validateStep) {
		s.source = validation.SourceParams
		s.params = names
	}
}

// Validate returns a step that validates one part of the request against
// schema and attaches the typed result to the envelope.
//
// Failures:
//   - body that is not valid JSON → 400 INVALID_JSON (schema not consulted)
//   - body over the size cap → 413 PAYLOAD_TOO_LARGE
//   - schema rejection → 400 VALIDATION_ERROR with a stable message
//   - any other validation error → 400 VALIDATION_FAILED
func Validate(schema validation.Schema, opts ...ValidateOption) Step {
	s := &validateStep{schema: schema, source: validation.SourceBody}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *validateStep) Name() string { return "validate:" + s.source.String() }

func (s *validateStep) Apply(env *Envelope) (*Envelope, error) {
	raw, err := s.extract(env.Request())
	if err != nil {
		return nil, err
	}

	value, err := s.schema.Validate(raw)
	if err != nil {
		var issues *validation.Issues
		if errors.As(err, &issues) {
			return nil, failure.BadRequest(invalidDataMessage, failure.CodeValidationError, failure.WithCause(err))
		}

		return nil, failure.BadRequest(validationFailedMessage, failure.CodeValidationFailed, failure.WithCause(err))
	}

	return env.WithValidated(s.source, value), nil
}

func (s *validateStep) extract(r *http.Request) (any, error) {
	switch s.source {
	case validation.SourceQuery:
		values := r.URL.Query()
		raw := make(map[string]any, len(values))

		for key, v := range values {
			if len(v) > 0 {
				raw[key] = v[len(v)-1]
			}
		}

		return raw, nil
	case validation.SourceParams:
		raw := make(map[string]any, len(s.params))

		for _, name := range s.params {
			if v := r.PathValue(name); v != "" {
				raw[name] = v
			}
		}

		return raw, nil
	default:
		return decodeBody(r)
	}
}

// decodeBody parses exactly one JSON value from the request body.
func decodeBody(r *http.Request) (any, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, failure.BadRequest(invalidJSONMessage, failure.CodeInvalidJSON)
	}

	dec := json.NewDecoder(r.Body)

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, bodyError(err)
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err != nil {
			return nil, bodyError(err)
		}

		return nil, failure.BadRequest(invalidJSONMessage, failure.CodeInvalidJSON)
	}

	return raw, nil
}

func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return failure.New(payloadTooLargeMessage,
			failure.WithStatus(http.StatusRequestEntityTooLarge),
			failure.WithCode(failure.CodePayloadTooLarge),
			failure.WithCause(err),
		)
	}

	return failure.BadRequest(invalidJSONMessage, failure.CodeInvalidJSON, failure.WithCause(err))
}
