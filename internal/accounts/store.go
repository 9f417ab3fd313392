// Package accounts manages user profiles. The role is the only authoritative
// field; everything else on a profile is derived through the permissions package.
package accounts

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"checkin/internal/model"
)

var (
	ErrNotFound    = errors.New("user not found")
	ErrForbidden   = errors.New("not allowed to manage users")
	ErrInvalidRole = errors.New("invalid role")
)

// Store persists user profiles.
type Store interface {
	Get(ctx context.Context, id string) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	Save(ctx context.Context, u model.User) error
	List(ctx context.Context) ([]model.User, error)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]model.User
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]model.User)}
}

// Get returns the user with id.
func (s *MemoryStore) Get(_ context.Context, id string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

// GetByEmail returns the user with email, ignoring case.
func (s *MemoryStore) GetByEmail(_ context.Context, email string) (model.User, error) {
	email = NormalizeEmail(email)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if NormalizeEmail(u.Email) == email {
			return u, nil
		}
	}
	return model.User{}, ErrNotFound
}

// Save inserts or replaces u.
func (s *MemoryStore) Save(_ context.Context, u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

// List returns every user ordered by email.
func (s *MemoryStore) List(context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
