package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// KeyPrefix is prepended to every generated API key.
const KeyPrefix = "tw_"

const keyLookupLen = 8

// ErrInvalidKey is returned when the provided API key does not match any active user.
var ErrInvalidKey = errors.New("invalid or revoked API key")

// ErrInvalidLogin is returned when an email/password pair does not match an active user.
var ErrInvalidLogin = errors.New("invalid email or password")

// Service provides authentication operations over the user store.
type Service struct {
	userRepo   UserRepository
	bcryptCost int
}

// NewService creates a new auth Service.
func NewService(userRepo UserRepository, bcryptCost int) *Service {
	return &Service{
		userRepo:   userRepo,
		bcryptCost: bcryptCost,
	}
}

// Users exposes the underlying repository.
func (s *Service) Users() UserRepository {
	return s.userRepo
}

// GenerateKey creates a new API key. Returns the raw key, its lookup prefix
// (first 8 chars) and the bcrypt hash. The raw key is: 32 random bytes ->
// base64url -> prepend "tw_".
func (s *Service) GenerateKey() (rawKey, prefix, hash string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", "", fmt.Errorf("generating random bytes: %w", err)
	}

	rawKey = KeyPrefix + base64.RawURLEncoding.EncodeToString(b)
	prefix = rawKey[:keyLookupLen]

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(rawKey), s.bcryptCost)
	if err != nil {
		return "", "", "", fmt.Errorf("hashing key: %w", err)
	}
	hash = string(hashBytes)

	return rawKey, prefix, hash, nil
}

// HashPassword returns the bcrypt hash of a password.
func (s *Service) HashPassword(password string) (string, error) {
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hashBytes), nil
}

// AuthenticateKey resolves a raw API key to its user. It extracts the prefix,
// looks up candidates, and bcrypt-compares each one.
func (s *Service) AuthenticateKey(ctx context.Context, rawKey string) (*User, error) {
	if len(rawKey) < keyLookupLen {
		return nil, ErrInvalidKey
	}

	candidates, err := s.userRepo.FindByKeyPrefix(ctx, rawKey[:keyLookupLen])
	if err != nil {
		return nil, fmt.Errorf("finding users by prefix: %w", err)
	}

	for i := range candidates {
		u := &candidates[i]
		if bcrypt.CompareHashAndPassword([]byte(u.APIKeyHash), []byte(rawKey)) == nil {
			return u, nil
		}
	}

	return nil, ErrInvalidKey
}

// Login checks an email/password pair against the user store.
func (s *Service) Login(ctx context.Context, email, password string) (*User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrInvalidLogin
	}

	u, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidLogin
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}

	if !u.Active() || u.PasswordHash == "" {
		return nil, ErrInvalidLogin
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidLogin
	}

	return u, nil
}

// CreateUser stores a new user with a freshly generated API key and returns
// the raw key, which is never retrievable afterwards.
func (s *Service) CreateUser(ctx context.Context, email, password string, twoFactor bool) (*User, string, error) {
	rawKey, prefix, hash, err := s.GenerateKey()
	if err != nil {
		return nil, "", err
	}

	u := &User{
		Email:            strings.TrimSpace(email),
		TwoFactorEnabled: twoFactor,
		APIKeyPrefix:     prefix,
		APIKeyHash:       hash,
	}
	if password != "" {
		u.PasswordHash, err = s.HashPassword(password)
		if err != nil {
			return nil, "", err
		}
	}

	if err := s.userRepo.Create(ctx, u); err != nil {
		return nil, "", err
	}

	return u, rawKey, nil
}

// RotateKey issues a new API key for a user, invalidating the old one.
func (s *Service) RotateKey(ctx context.Context, userID int64) (string, error) {
	rawKey, prefix, hash, err := s.GenerateKey()
	if err != nil {
		return "", err
	}
	if err := s.userRepo.RotateAPIKey(ctx, userID, prefix, hash); err != nil {
		return "", err
	}
	return rawKey, nil
}

// BootstrapAdmin creates the initial user if the users table is empty.
// Returns the user and its raw API key (only displayed once). If users
// already exist, returns nil and an empty key.
func (s *Service) BootstrapAdmin(ctx context.Context, email string) (*User, string, error) {
	count, err := s.userRepo.CountAll(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("counting users: %w", err)
	}

	if count > 0 {
		return nil, "", nil
	}

	u, rawKey, err := s.CreateUser(ctx, email, "", false)
	if err != nil {
		return nil, "", fmt.Errorf("creating admin: %w", err)
	}

	slog.Info("Admin API key created", "email", u.Email, "key", rawKey)

	return u, rawKey, nil
}
