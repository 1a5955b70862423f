package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// JSONSchema validates input against a resolved JSON Schema and decodes the
// accepted value into T. Fields of the input that T does not declare are
// dropped, so the typed value carries exactly the validated shape.
type JSONSchema[T any] struct {
	resolved *jsonschema.Resolved
}

// NewJSONSchema resolves schema once for repeated validation.
func NewJSONSchema[T any](schema *jsonschema.Schema) (*JSONSchema[T], error) {
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve schema: %w", err)
	}

	return &JSONSchema[T]{resolved: resolved}, nil
}

// InferJSONSchema derives the schema from the json tags of T.
func InferJSONSchema[T any]() (*JSONSchema[T], error) {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("failed to infer schema: %w", err)
	}

	return NewJSONSchema[T](schema)
}

// MustJSONSchema is like NewJSONSchema but panics on error. It is meant for
// package-level schema declarations.
func MustJSONSchema[T any](schema *jsonschema.Schema) *JSONSchema[T] {
	s, err := NewJSONSchema[T](schema)
	if err != nil {
		panic(err)
	}

	return s
}

// Validate implements Schema. On success the returned value has type T.
func (s *JSONSchema[T]) Validate(raw any) (any, error) {
	if err := s.resolved.Validate(raw); err != nil {
		return nil, &Issues{List: issuesFromError(err)}
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode validated input: %w", err)
	}

	var typed T
	if err := json.Unmarshal(data, &typed); err != nil {
		return nil, fmt.Errorf("failed to decode validated input: %w", err)
	}

	return typed, nil
}

func issuesFromError(err error) []Issue {
	var issues []Issue

	for line := range strings.SplitSeq(err.Error(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			issues = append(issues, Issue{Message: line})
		}
	}

	if len(issues) == 0 {
		issues = append(issues, Issue{Message: "input does not match schema"})
	}

	return issues
}

// Ptr returns a pointer to v, for schema fields such as MinLength.
func Ptr[T any](v T) *T {
	return &v
}
