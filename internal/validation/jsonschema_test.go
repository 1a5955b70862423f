package validation

import (
	"errors"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedInput struct {
	Name string `json:"name"`
}

func nameSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:     "object",
		Required: []string{"name"},
		Properties: map[string]*jsonschema.Schema{
			"name": {Type: "string", MinLength: Ptr(1)},
		},
	}
}

func TestJSONSchema_RejectsMissingField(t *testing.T) {
	schema, err := NewJSONSchema[namedInput](nameSchema())
	require.NoError(t, err)

	_, err = schema.Validate(map[string]any{})
	require.Error(t, err)

	var issues *Issues
	require.ErrorAs(t, err, &issues)
	assert.NotEmpty(t, issues.List)
	assert.Equal(t, issues.List, issues.ValidationIssues())
}

func TestJSONSchema_RejectsEmptyName(t *testing.T) {
	schema, err := NewJSONSchema[namedInput](nameSchema())
	require.NoError(t, err)

	_, err = schema.Validate(map[string]any{"name": ""})

	var issues *Issues
	assert.ErrorAs(t, err, &issues)
}

func TestJSONSchema_AcceptsAndTypes(t *testing.T) {
	schema, err := NewJSONSchema[namedInput](nameSchema())
	require.NoError(t, err)

	got, err := schema.Validate(map[string]any{"name": "X", "extra": true})
	require.NoError(t, err)

	typed, ok := got.(namedInput)
	require.True(t, ok)
	assert.Equal(t, "X", typed.Name)
}

func TestJSONSchema_RejectsWrongType(t *testing.T) {
	schema, err := NewJSONSchema[namedInput](nameSchema())
	require.NoError(t, err)

	_, err = schema.Validate([]any{"name"})

	var issues *Issues
	assert.ErrorAs(t, err, &issues)
}

func TestSchemaFunc(t *testing.T) {
	rejected := errors.New("nope")
	schema := SchemaFunc(func(any) (any, error) { return nil, rejected })

	_, err := schema.Validate(nil)
	assert.ErrorIs(t, err, rejected)
}

func TestIssues_Error(t *testing.T) {
	err := &Issues{List: []Issue{
		{Path: "/name", Message: "too short"},
		{Message: "missing unit"},
	}}

	assert.Equal(t, "validation issues: /name: too short; missing unit", err.Error())
}

func TestSource_String(t *testing.T) {
	assert.Equal(t, "body", SourceBody.String())
	assert.Equal(t, "query", SourceQuery.String())
	assert.Equal(t, "params", SourceParams.String())
}
