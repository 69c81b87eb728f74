package auth

import (
	"time"
)

// User represents a row in the users table.
type User struct {
	ID               int64
	Email            string
	PasswordHash     string
	TwoFactorEnabled bool
	APIKeyPrefix     string
	APIKeyHash       string
	TokenVersion     int
	CreatedAt        time.Time
	RevokedAt        *time.Time
}

// Active reports whether the user has not been revoked.
func (u *User) Active() bool {
	return u.RevokedAt == nil
}

// Credential sources recorded on an Identity.
const (
	SourceSession = "session"
	SourceBearer  = "bearer"
	SourceAPIKey  = "apikey"
)

// Identity is the acting user resolved for a single request. It is a
// projection of a User and is never persisted on its own.
type Identity struct {
	UserID           int64  `json:"userId"`
	Email            string `json:"email"`
	TwoFactorEnabled bool   `json:"twoFactorEnabled"`

	// SecondFactorPending is set when the presented token was issued before
	// the second factor was verified.
	SecondFactorPending bool `json:"secondFactorPending,omitempty"`

	// Source names the strategy that produced the identity.
	Source string `json:"source,omitempty"`
}

// IdentityOf projects a User into an Identity.
func IdentityOf(u *User, source string) *Identity {
	return &Identity{
		UserID:           u.ID,
		Email:            u.Email,
		TwoFactorEnabled: u.TwoFactorEnabled,
		Source:           source,
	}
}
