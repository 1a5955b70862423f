// Package validation defines the pluggable schema capability used by request
// pipelines, and a JSON Schema implementation of it.
package validation

import (
	"fmt"
	"strings"
)

// Source selects which part of a request is validated.
type Source int

const (
	// SourceBody validates the JSON request body.
	SourceBody Source = iota
	// SourceQuery validates the URL query parameters.
	SourceQuery
	// SourceParams validates named path parameters.
	SourceParams
)

// String returns the lowercase name of the source.
func (s Source) String() string {
	switch s {
	case SourceBody:
		return "body"
	case SourceQuery:
		return "query"
	case SourceParams:
		return "params"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

type (
	// Schema validates a decoded JSON value and returns its typed form.
	//
	// When raw does not conform, Validate returns *Issues. Any other error means
	// validation itself could not be carried out.
	Schema interface {
		Validate(raw any) (any, error)
	}

	// SchemaFunc adapts a function to the Schema interface.
	SchemaFunc func(raw any) (any, error)

	// Issue is one reason input was rejected.
	Issue struct {
		Path    string `json:"path,omitempty"`
		Message string `json:"message"`
	}

	// Issues is the error returned by a Schema for non-conforming input.
	Issues struct {
		List []Issue
	}
)

// Validate implements Schema.
func (f SchemaFunc) Validate(raw any) (any, error) {
	return f(raw)
}

// Error joins the issue messages.
func (e *Issues) Error() string {
	parts := make([]string, 0, len(e.List))

	for _, issue := range e.List {
		if issue.Path != "" {
			parts = append(parts, issue.Path+": "+issue.Message)
		} else {
			parts = append(parts, issue.Message)
		}
	}

	return "validation issues: " + strings.Join(parts, "; ")
}

// ValidationIssues returns the issue list for error responses.
func (e *Issues) ValidationIssues() any {
	return e.List
}
