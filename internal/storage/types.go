// Package storage provides the medfix domain records, their store interfaces,
// and in-memory and PostgreSQL implementations.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a record violates a uniqueness rule.
	ErrDuplicate = errors.New("duplicate record")
	// ErrInvalidStatus is returned for a status outside the request lifecycle.
	ErrInvalidStatus = errors.New("invalid request status")
	// ErrInvalidRole is returned for a role other than admin or user.
	ErrInvalidRole = errors.New("invalid role")
	// ErrTooLong is returned when a value exceeds its column width.
	ErrTooLong = errors.New("value too long")
	// ErrUnavailable is returned when the backing database cannot be reached.
	ErrUnavailable = errors.New("storage unavailable")
)

// Role is a user's authorization level.
type Role string

// Roles.
const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Status is the lifecycle state of a maintenance request.
type Status string

// Request statuses.
const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every request status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusPending, StatusApproved, StatusInProgress, StatusCompleted, StatusCancelled}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range Statuses() {
		if s == known {
			return true
		}
	}

	return false
}

// CatalogKind selects one of the two name catalogs.
type CatalogKind string

// Catalogs.
const (
	CatalogDevices CatalogKind = "devices"
	CatalogUnits   CatalogKind = "units"
)

type (
	// User is an account. PasswordHash never leaves the server.
	User struct {
		ID           string    `json:"id"`
		Email        string    `json:"email"`
		Username     string    `json:"username"`
		PasswordHash string    `json:"-"`
		Role         Role      `json:"role"`
		CreatedAt    time.Time `json:"createdAt"`
		UpdatedAt    time.Time `json:"updatedAt"`
	}

	// UserPatch holds the fields of a partial user update. Nil means unchanged.
	UserPatch struct {
		Email        *string
		Username     *string
		PasswordHash *string
		Role         *Role
	}

	// CatalogItem is a named device or unit.
	CatalogItem struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		DateAdded time.Time `json:"dateAdded"`
	}

	// Request is a maintenance request for a damaged device.
	Request struct {
		ID                string    `json:"id"`
		RequesterID       string    `json:"requesterId,omitempty"`
		ApplicantName     string    `json:"applicantName"`
		Unit              string    `json:"unit"`
		DeviceName        string    `json:"deviceName"`
		DamageDescription string    `json:"damageDescription"`
		PhotoURL          string    `json:"photoUrl,omitempty"`
		ApplicantDate     time.Time `json:"applicantDate"`
		Status            Status    `json:"status"`
		CreatedAt         time.Time `json:"createdAt"`
		UpdatedAt         time.Time `json:"updatedAt"`
	}

	// RequestPatch holds the fields of a partial request update. Nil means unchanged.
	RequestPatch struct {
		ApplicantName     *string
		Unit              *string
		DeviceName        *string
		DamageDescription *string
		PhotoURL          *string
		Status            *Status
	}

	// RequestFilter narrows List. Empty fields match everything.
	RequestFilter struct {
		Status      Status
		Unit        string
		RequesterID string
	}

	// SessionRecord is a stored session. Only the token hash is kept.
	SessionRecord struct {
		TokenHash string
		UserID    string
		CreatedAt time.Time
		ExpiresAt time.Time
	}
)

type (
	// UserStore persists accounts. Email lookups are case-insensitive.
	UserStore interface {
		Create(ctx context.Context, user *User) (*User, error)
		Get(ctx context.Context, id string) (*User, error)
		GetByEmail(ctx context.Context, email string) (*User, error)
		List(ctx context.Context) ([]*User, error)
		Update(ctx context.Context, id string, patch UserPatch) (*User, error)
		Delete(ctx context.Context, id string) error
	}

	// CatalogStore persists one catalog of unique names, listed by name.
	CatalogStore interface {
		List(ctx context.Context) ([]*CatalogItem, error)
		Create(ctx context.Context, name string) (*CatalogItem, error)
		Rename(ctx context.Context, id, name string) (*CatalogItem, error)
		Delete(ctx context.Context, id string) error
	}

	// RequestStore persists maintenance requests, listed newest first.
	RequestStore interface {
		Create(ctx context.Context, req *Request) (*Request, error)
		Get(ctx context.Context, id string) (*Request, error)
		List(ctx context.Context, filter RequestFilter) ([]*Request, error)
		Update(ctx context.Context, id string, patch RequestPatch) (*Request, error)
		Delete(ctx context.Context, id string) error
		CountByStatus(ctx context.Context) (map[Status]int, error)
	}

	// SessionStore persists sessions by token hash.
	SessionStore interface {
		Save(ctx context.Context, rec SessionRecord) error
		Find(ctx context.Context, tokenHash string) (*SessionRecord, error)
		Delete(ctx context.Context, tokenHash string) error
		DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	}
)

// Stores bundles one implementation of every store.
type Stores struct {
	Users    UserStore
	Devices  CatalogStore
	Units    CatalogStore
	Requests RequestStore
	Sessions SessionStore
}
