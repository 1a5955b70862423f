package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	_ UserStore    = (*MemoryUserStore)(nil)
	_ CatalogStore = (*MemoryCatalogStore)(nil)
	_ RequestStore = (*MemoryRequestStore)(nil)
	_ SessionStore = (*MemorySessionStore)(nil)
)

// NewMemoryStores returns a fresh in-memory implementation of every store.
func NewMemoryStores() *Stores {
	return &Stores{
		Users:    NewMemoryUserStore(),
		Devices:  NewMemoryCatalogStore(),
		Units:    NewMemoryCatalogStore(),
		Requests: NewMemoryRequestStore(),
		Sessions: NewMemorySessionStore(),
	}
}

// MemoryUserStore provides thread-safe in-memory storage for users.
// Records are copied in and out so callers cannot mutate stored state.
type MemoryUserStore struct {
	users map[string]*User
	mutex sync.RWMutex
}

// NewMemoryUserStore creates an empty user store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]*User)}
}

// Create stores user with a new id. Email (case-insensitive) and username must be unique.
func (s *MemoryUserStore) Create(_ context.Context, user *User) (*User, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.checkUnique("", user.Email, user.Username); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	stored := *user
	stored.ID = uuid.NewString()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.users[stored.ID] = &stored

	out := stored

	return &out, nil
}

// Get returns the user with id.
func (s *MemoryUserStore) Get(_ context.Context, id string) (*User, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}

	out := *user

	return &out, nil
}

// GetByEmail returns the user whose email matches case-insensitively.
func (s *MemoryUserStore) GetByEmail(_ context.Context, email string) (*User, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			out := *user

			return &out, nil
		}
	}

	return nil, fmt.Errorf("user with email: %w", ErrNotFound)
}

// List returns every user ordered by creation time.
func (s *MemoryUserStore) List(_ context.Context) ([]*User, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	result := make([]*User, 0, len(s.users))
	for _, user := range s.users {
		out := *user
		result = append(result, &out)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}

		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

// Update applies patch to the user with id.
func (s *MemoryUserStore) Update(_ context.Context, id string, patch UserPatch) (*User, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}

	email, username := user.Email, user.Username
	if patch.Email != nil {
		email = *patch.Email
	}

	if patch.Username != nil {
		username = *patch.Username
	}

	if err := s.checkUnique(id, email, username); err != nil {
		return nil, err
	}

	updated := *user
	updated.Email = email
	updated.Username = username

	if patch.PasswordHash != nil {
		updated.PasswordHash = *patch.PasswordHash
	}

	if patch.Role != nil {
		updated.Role = *patch.Role
	}

	updated.UpdatedAt = time.Now().UTC()
	s.users[id] = &updated

	out := updated

	return &out, nil
}

// Delete removes the user with id.
func (s *MemoryUserStore) Delete(_ context.Context, id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.users[id]; !ok {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}

	delete(s.users, id)

	return nil
}

// checkUnique reports a duplicate email or username held by a user other than id.
// Caller must hold the write lock.
func (s *MemoryUserStore) checkUnique(id, email, username string) error {
	for _, other := range s.users {
		if other.ID == id {
			continue
		}

		if strings.EqualFold(other.Email, email) {
			return fmt.Errorf("email %q: %w", email, ErrDuplicate)
		}

		if other.Username == username {
			return fmt.Errorf("username %q: %w", username, ErrDuplicate)
		}
	}

	return nil
}

// MemoryCatalogStore provides thread-safe in-memory storage for one catalog.
type MemoryCatalogStore struct {
	items map[string]*CatalogItem
	mutex sync.RWMutex
}

// NewMemoryCatalogStore creates an empty catalog.
func NewMemoryCatalogStore() *MemoryCatalogStore {
	return &MemoryCatalogStore{items: make(map[string]*CatalogItem)}
}

// List returns every item ordered by name.
func (s *MemoryCatalogStore) List(_ context.Context) ([]*CatalogItem, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	result := make([]*CatalogItem, 0, len(s.items))
	for _, item := range s.items {
		out := *item
		result = append(result, &out)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })

	return result, nil
}

// Create adds an item named name, dated today.
func (s *MemoryCatalogStore) Create(_ context.Context, name string) (*CatalogItem, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.checkUnique("", name); err != nil {
		return nil, err
	}

	item := &CatalogItem{ID: uuid.NewString(), Name: name, DateAdded: today()}
	s.items[item.ID] = item

	out := *item

	return &out, nil
}

// Rename changes the name of the item with id.
func (s *MemoryCatalogStore) Rename(_ context.Context, id, name string) (*CatalogItem, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	item, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("catalog item %s: %w", id, ErrNotFound)
	}

	if err := s.checkUnique(id, name); err != nil {
		return nil, err
	}

	renamed := *item
	renamed.Name = name
	s.items[id] = &renamed

	out := renamed

	return &out, nil
}

// Delete removes the item with id.
func (s *MemoryCatalogStore) Delete(_ context.Context, id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("catalog item %s: %w", id, ErrNotFound)
	}

	delete(s.items, id)

	return nil
}

func (s *MemoryCatalogStore) checkUnique(id, name string) error {
	for _, other := range s.items {
		if other.ID != id && other.Name == name {
			return fmt.Errorf("name %q: %w", name, ErrDuplicate)
		}
	}

	return nil
}

// MemoryRequestStore provides thread-safe in-memory storage for maintenance requests.
type MemoryRequestStore struct {
	requests map[string]*Request
	mutex    sync.RWMutex
}

// NewMemoryRequestStore creates an empty request store.
func NewMemoryRequestStore() *MemoryRequestStore {
	return &MemoryRequestStore{requests: make(map[string]*Request)}
}

// Create stores req with a new id. A zero status becomes pending and a zero
// applicant date becomes today.
func (s *MemoryRequestStore) Create(_ context.Context, req *Request) (*Request, error) {
	stored := *req

	if stored.Status == "" {
		stored.Status = StatusPending
	}

	if !stored.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, stored.Status)
	}

	if stored.ApplicantDate.IsZero() {
		stored.ApplicantDate = today()
	}

	now := time.Now().UTC()
	stored.ID = uuid.NewString()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	s.mutex.Lock()
	s.requests[stored.ID] = &stored
	s.mutex.Unlock()

	out := stored

	return &out, nil
}

// Get returns the request with id.
func (s *MemoryRequestStore) Get(_ context.Context, id string) (*Request, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}

	out := *req

	return &out, nil
}

// List returns the requests matching filter, newest first.
func (s *MemoryRequestStore) List(_ context.Context, filter RequestFilter) ([]*Request, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	result := make([]*Request, 0, len(s.requests))

	for _, req := range s.requests {
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}

		if filter.Unit != "" && req.Unit != filter.Unit {
			continue
		}

		if filter.RequesterID != "" && req.RequesterID != filter.RequesterID {
			continue
		}

		out := *req
		result = append(result, &out)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}

		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

// Update applies patch to the request with id.
func (s *MemoryRequestStore) Update(_ context.Context, id string, patch RequestPatch) (*Request, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *patch.Status)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}

	updated := *req
	setIf(&updated.ApplicantName, patch.ApplicantName)
	setIf(&updated.Unit, patch.Unit)
	setIf(&updated.DeviceName, patch.DeviceName)
	setIf(&updated.DamageDescription, patch.DamageDescription)
	setIf(&updated.PhotoURL, patch.PhotoURL)
	setIf(&updated.Status, patch.Status)
	updated.UpdatedAt = time.Now().UTC()

	s.requests[id] = &updated

	out := updated

	return &out, nil
}

// Delete removes the request with id.
func (s *MemoryRequestStore) Delete(_ context.Context, id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.requests[id]; !ok {
		return fmt.Errorf("request %s: %w", id, ErrNotFound)
	}

	delete(s.requests, id)

	return nil
}

// CountByStatus returns a count for every status, including zero counts.
func (s *MemoryRequestStore) CountByStatus(_ context.Context) (map[Status]int, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	counts := zeroCounts()
	for _, req := range s.requests {
		counts[req.Status]++
	}

	return counts, nil
}

// NewMemoryStoresWithCleanup is NewMemoryStores with expired sessions purged
// every cleanupInterval. Stop the purge with Stores.Close.
func NewMemoryStoresWithCleanup(cleanupInterval time.Duration, logger *slog.Logger) (*Stores, error) {
	sessions, err := NewMemorySessionStoreWithCleanup(cleanupInterval, logger)
	if err != nil {
		return nil, err
	}

	stores := NewMemoryStores()
	stores.Sessions = sessions

	return stores, nil
}

// MemorySessionStore provides thread-safe in-memory storage for sessions.
type MemorySessionStore struct {
	sessions map[string]SessionRecord
	mutex    sync.RWMutex
	sweeper  *sessionSweeper
}

// NewMemorySessionStore creates an empty session store without background cleanup.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]SessionRecord)}
}

// NewMemorySessionStoreWithCleanup creates an empty session store that purges
// expired sessions every cleanupInterval until Close.
func NewMemorySessionStoreWithCleanup(cleanupInterval time.Duration, logger *slog.Logger) (*MemorySessionStore, error) {
	if cleanupInterval <= 0 {
		return nil, ErrInvalidCleanupInterval
	}

	if logger == nil {
		logger = slog.Default()
	}

	s := NewMemorySessionStore()
	s.sweeper = startSessionSweeper(s.DeleteExpired, cleanupInterval, logger)

	return s, nil
}

// Close stops the cleanup goroutine, if any. Safe to call more than once.
func (s *MemorySessionStore) Close() error {
	if s.sweeper == nil {
		return nil
	}

	return s.sweeper.Close()
}

// Save stores rec, replacing any session with the same token hash.
func (s *MemorySessionStore) Save(_ context.Context, rec SessionRecord) error {
	s.mutex.Lock()
	s.sessions[rec.TokenHash] = rec
	s.mutex.Unlock()

	return nil
}

// Find returns the session for tokenHash. Expiry is checked by the caller.
func (s *MemorySessionStore) Find(_ context.Context, tokenHash string) (*SessionRecord, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	rec, ok := s.sessions[tokenHash]
	if !ok {
		return nil, fmt.Errorf("session: %w", ErrNotFound)
	}

	return &rec, nil
}

// Delete removes the session for tokenHash. Deleting an unknown session is not an error.
func (s *MemorySessionStore) Delete(_ context.Context, tokenHash string) error {
	s.mutex.Lock()
	delete(s.sessions, tokenHash)
	s.mutex.Unlock()

	return nil
}

// DeleteExpired removes every session that expired at or before now.
func (s *MemorySessionStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var deleted int64

	for hash, rec := range s.sessions {
		if !rec.ExpiresAt.After(now) {
			delete(s.sessions, hash)
			deleted++
		}
	}

	return deleted, nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func zeroCounts() map[Status]int {
	counts := make(map[Status]int, len(Statuses()))
	for _, status := range Statuses() {
		counts[status] = 0
	}

	return counts
}

func today() time.Time {
	now := time.Now().UTC()

	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
