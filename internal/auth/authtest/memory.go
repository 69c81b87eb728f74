// Package authtest provides an in-memory user repository for tests.
package authtest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/trackwise/trackwise/internal/auth"
)

// Users is an in-memory auth.UserRepository. Err, when set, is returned by
// every method.
type Users struct {
	mu     sync.Mutex
	users  []auth.User
	nextID int64

	Err error
}

// NewUsers creates an empty repository.
func NewUsers() *Users {
	return &Users{nextID: 1}
}

// Create implements auth.UserRepository.
func (m *Users) Create(_ context.Context, u *auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return auth.ErrDuplicateEmail
		}
	}
	u.ID = m.nextID
	m.nextID++
	u.CreatedAt = time.Now().UTC()
	m.users = append(m.users, *u)
	return nil
}

// GetByID implements auth.UserRepository.
func (m *Users) GetByID(_ context.Context, id int64) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, u := range m.users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

// GetByEmail implements auth.UserRepository.
func (m *Users) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

// FindByKeyPrefix implements auth.UserRepository.
func (m *Users) FindByKeyPrefix(_ context.Context, prefix string) ([]auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := []auth.User{}
	for _, u := range m.users {
		if u.APIKeyPrefix == prefix && u.Active() {
			out = append(out, u)
		}
	}
	return out, nil
}

// List implements auth.UserRepository.
func (m *Users) List(_ context.Context) ([]auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]auth.User, len(m.users))
	copy(out, m.users)
	return out, nil
}

// Revoke implements auth.UserRepository.
func (m *Users) Revoke(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for i := range m.users {
		if m.users[i].ID != id {
			continue
		}
		if !m.users[i].Active() {
			return auth.ErrUserRevoked
		}
		now := time.Now().UTC()
		m.users[i].RevokedAt = &now
		m.users[i].TokenVersion++
		return nil
	}
	return auth.ErrUserNotFound
}

// RotateAPIKey implements auth.UserRepository.
func (m *Users) RotateAPIKey(_ context.Context, id int64, prefix, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for i := range m.users {
		if m.users[i].ID == id && m.users[i].Active() {
			m.users[i].APIKeyPrefix = prefix
			m.users[i].APIKeyHash = hash
			return nil
		}
	}
	return auth.ErrUserNotFound
}

// CountAll implements auth.UserRepository.
func (m *Users) CountAll(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	return len(m.users), nil
}
