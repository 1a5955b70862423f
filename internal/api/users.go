package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/medfix-io/medfix/internal/api/failure"
	"github.com/medfix-io/medfix/internal/api/pipeline"
	"github.com/medfix-io/medfix/internal/session"
	"github.com/medfix-io/medfix/internal/storage"
)

const (
	userNoun             = "User"
	duplicateUserMessage = "User with this email or username already exists"
	selfDeleteMessage    = "You cannot delete your own account"
)

// userHandler serves account administration. Every route requires an admin.
type userHandler struct {
	store    storage.UserStore
	sessions session.Provider
}

func (h *userHandler) list(env *pipeline.Envelope) (*pipeline.Response, error) {
	if _, err := session.RequireAdmin(h.sessions, env.Request()); err != nil {
		return nil, err
	}

	users, err := h.store.List(env.Context())
	if err != nil {
		return nil, userFailure(err)
	}

	return pipeline.OK(users), nil
}

func (h *userHandler) create(env *pipeline.Envelope) (*pipeline.Response, error) {
	if _, err := session.RequireAdmin(h.sessions, env.Request()); err != nil {
		return nil, err
	}

	in, _ := pipeline.Body[createUserInput](env)

	role := storage.RoleUser
	if in.Role != "" {
		role = storage.Role(in.Role)
	}

	user, err := createUser(env, h.store, in.Email, in.Username, in.Password, role)
	if err != nil {
		return nil, err
	}

	return pipeline.Created(user), nil
}

func (h *userHandler) update(env *pipeline.Envelope) (*pipeline.Response, error) {
	if _, err := session.RequireAdmin(h.sessions, env.Request()); err != nil {
		return nil, err
	}

	p, _ := pipeline.Params[idParams](env)
	in, _ := pipeline.Body[updateUserInput](env)

	patch := storage.UserPatch{Username: in.Username}

	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		patch.Email = &email
	}

	if in.Role != nil {
		role := storage.Role(*in.Role)
		patch.Role = &role
	}

	if in.Password != nil {
		hash, err := storage.HashPassword(*in.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}

		patch.PasswordHash = &hash
	}

	user, err := h.store.Update(env.Context(), p.ID, patch)
	if err != nil {
		return nil, userFailure(err)
	}

	return pipeline.OK(user), nil
}

func (h *userHandler) remove(env *pipeline.Envelope) (*pipeline.Response, error) {
	s, err := session.RequireAdmin(h.sessions, env.Request())
	if err != nil {
		return nil, err
	}

	p, _ := pipeline.Params[idParams](env)

	if strings.EqualFold(p.ID, s.User.ID) {
		return nil, failure.BadRequest(selfDeleteMessage, failure.CodeSelfDelete)
	}

	if err := h.store.Delete(env.Context(), p.ID); err != nil {
		return nil, userFailure(err)
	}

	return pipeline.OK(successBody{Success: true}), nil
}

// createUser hashes password and stores a new account. It backs both admin
// creation and self-registration.
func createUser(
	env *pipeline.Envelope,
	store storage.UserStore,
	email, username, password string,
	role storage.Role,
) (*storage.User, error) {
	hash, err := storage.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := store.Create(env.Context(), &storage.User{
		Email:        normalizeEmail(email),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		return nil, userFailure(err)
	}

	return user, nil
}

// userFailure is storageFailure with the account-specific duplicate code.
func userFailure(err error) error {
	if errors.Is(err, storage.ErrDuplicate) {
		return failure.Conflict(duplicateUserMessage, failure.CodeDuplicateUser, failure.WithCause(err))
	}

	return storageFailure(err, userNoun)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
