package api

import (
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/medfix-io/medfix/internal/storage"
	"github.com/medfix-io/medfix/internal/validation"
)

const (
	uuidPattern     = `^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`
	emailPattern    = `^[^@\s]+@[^@\s]+\.[^@\s]+$`
	usernamePattern = `^[a-zA-Z0-9_]+$`

	// Upper bounds follow the column widths in migrations/.
	maxNameLength          = 100
	maxApplicantNameLength = 255
	maxEmailLength         = 255
	minDamageDescription   = 10
	maxDamageDescription   = 1000
	maxImageURLLength      = 500
	minPasswordLength      = 8
	minUsernameLength      = 3
	maxUsernameLength      = 50
	maxRegisterUsername    = 20
)

type (
	idParams struct {
		ID string `json:"id"`
	}

	catalogInput struct {
		Name string `json:"name"`
	}

	listRequestsQuery struct {
		Status string `json:"status,omitempty"`
		Unit   string `json:"unit,omitempty"`
	}

	createRequestInput struct {
		Name              string `json:"name"`
		Unit              string `json:"unit"`
		DeviceName        string `json:"deviceName"`
		DamageDescription string `json:"damageDescription"`
		ImageURL          string `json:"imageUrl,omitempty"`
	}

	updateRequestInput struct {
		ApplicantName     *string `json:"applicantName,omitempty"`
		Unit              *string `json:"unit,omitempty"`
		DeviceName        *string `json:"deviceName,omitempty"`
		DamageDescription *string `json:"damageDescription,omitempty"`
		ImageURL          *string `json:"imageUrl,omitempty"`
		Status            *string `json:"status,omitempty"`
	}

	createUserInput struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Username string `json:"username"`
		Role     string `json:"role,omitempty"`
	}

	updateUserInput struct {
		Email    *string `json:"email,omitempty"`
		Username *string `json:"username,omitempty"`
		Role     *string `json:"role,omitempty"`
		Password *string `json:"password,omitempty"`
	}

	registerInput struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Username string `json:"username"`
	}

	loginInput struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
)

//nolint: gochecknoglobals // schemas are resolved once at startup
var (
	idParamsSchema = validation.MustJSONSchema[idParams](&jsonschema.Schema{
		Type:     "object",
		Required: []string{"id"},
		Properties: map[string]*jsonschema.Schema{
			"id": {Type: "string", Pattern: uuidPattern},
		},
	})

	catalogSchema = validation.MustJSONSchema[catalogInput](&jsonschema.Schema{
		Type:     "object",
		Required: []string{"name"},
		Properties: map[string]*jsonschema.Schema{
			"name": nameProperty(),
		},
	})

	listRequestsSchema = validation.MustJSONSchema[listRequestsQuery](&jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"status": statusProperty(),
			"unit":   nameProperty(),
		},
	})

	createRequestSchema = validation.MustJSONSchema[createRequestInput](&jsonschema.Schema{
		Type:     "object",
		Required: []string{"name", "unit", "deviceName", "damageDescription"},
		Properties: map[string]*jsonschema.Schema{
			"name":              applicantNameProperty(),
			"unit":              nameProperty(),
			"deviceName":        nameProperty(),
			"damageDescription": damageDescriptionProperty(),
			"imageUrl":          imageURLProperty(),
		},
	})

	updateRequestSchema = validation.MustJSONSchema[updateRequestInput](&jsonschema.Schema{
		Type:          "object",
		MinProperties: validation.Ptr(1),
		Properties: map[string]*jsonschema.Schema{
			"applicantName":     applicantNameProperty(),
			"unit":              nameProperty(),
			"deviceName":        nameProperty(),
			"damageDescription": damageDescriptionProperty(),
			"imageUrl":          imageURLProperty(),
			"status":            statusProperty(),
		},
	})

	createUserSchema = validation.MustJSONSchema[createUserInput](&jsonschema.Schema{
		Type:     "object",
		Required: []string{"email", "password", "username"},
		Properties: map[string]*jsonschema.Schema{
			"email":    emailProperty(),
			"password": passwordProperty(),
			"username": usernameProperty(),
			"role":     roleProperty(),
		},
	})

	updateUserSchema = validation.MustJSONSchema[updateUserInput](&jsonschema.Schema{
		Type:          "object",
		MinProperties: validation.Ptr(1),
		Properties: map[string]*jsonschema.Schema{
			"email":    emailProperty(),
			"password": passwordProperty(),
			"username": usernameProperty(),
			"role":     roleProperty(),
		},
	})

	registerSchema = validation.MustJSONSchema[registerInput](&jsonschema.Schema{
		Type:     "object",
		Required: []string{"email", "password", "username"},
		Properties: map[string]*jsonschema.Schema{
			"email":    emailProperty(),
			"password": passwordProperty(),
			"username": {
				Type:      "string",
				MinLength: validation.Ptr(minUsernameLength),
				MaxLength: validation.Ptr(maxRegisterUsername),
				Pattern:   usernamePattern,
			},
		},
	})

	loginSchema = inferred[loginInput]()
)

func nameProperty() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:      "string",
		MinLength: validation.Ptr(1),
		MaxLength: validation.Ptr(maxNameLength),
	}
}

func applicantNameProperty() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:      "string",
		MinLength: validation.Ptr(1),
		MaxLength: validation.Ptr(maxApplicantNameLength),
	}
}

func damageDescriptionProperty() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:      "string",
		MinLength: validation.Ptr(minDamageDescription),
		MaxLength: validation.Ptr(maxDamageDescription),
	}
}

func imageURLProperty() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", MaxLength: validation.Ptr(maxImageURLLength)}
}

func usernameProperty() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:      "string",
		MinLength: validation.Ptr(minUsernameLength),
		MaxLength: validation.Ptr(maxUsernameLength),
	}
}

func emailProperty() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Pattern: emailPattern, MaxLength: validation.Ptr(maxEmailLength)}
}

func passwordProperty() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", MinLength: validation.Ptr(minPasswordLength)}
}

func statusProperty() *jsonschema.Schema {
	statuses := storage.Statuses()
	enum := make([]any, len(statuses))

	for i, s := range statuses {
		enum[i] = string(s)
	}

	return &jsonschema.Schema{Type: "string", Enum: enum}
}

func roleProperty() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Enum: []any{string(storage.RoleAdmin), string(storage.RoleUser)}}
}

// inferred derives a schema from the json tags of T and panics on error.
func inferred[T any]() *validation.JSONSchema[T] {
	s, err := validation.InferJSONSchema[T]()
	if err != nil {
		panic(err)
	}

	return s
}
