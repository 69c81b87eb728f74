package auth

import (
	"context"
	"errors"
)

// ErrUserNotFound is returned when a user record is not found.
var ErrUserNotFound = errors.New("user not found")

// ErrUserRevoked is returned when attempting to operate on a revoked user.
var ErrUserRevoked = errors.New("user is revoked")

// ErrDuplicateEmail is returned when a user with the same email already exists.
var ErrDuplicateEmail = errors.New("email already registered")

// UserRepository provides operations on the users table.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	FindByKeyPrefix(ctx context.Context, prefix string) ([]User, error)
	List(ctx context.Context) ([]User, error)
	Revoke(ctx context.Context, id int64) error
	RotateAPIKey(ctx context.Context, id int64, prefix, hash string) error
	CountAll(ctx context.Context) (int, error)
}
