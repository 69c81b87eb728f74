package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the bearer token claims. Subject carries the numeric user id.
type Claims struct {
	Email               string `json:"email"`
	TwoFactorEnabled    bool   `json:"tfe,omitempty"`
	SecondFactorPending bool   `json:"tfa,omitempty"`
	Version             int    `json:"ver"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// TokenIssuer signs and verifies HS256 bearer tokens with a shared secret.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption configures a TokenIssuer.
type TokenOption func(*TokenIssuer)

// WithClock overrides the time source.
func WithClock(fn func() time.Time) TokenOption {
	return func(t *TokenIssuer) {
		if fn != nil {
			t.now = fn
		}
	}
}

// NewTokenIssuer creates a TokenIssuer. The secret must not be empty.
func NewTokenIssuer(secret, issuer string, ttl time.Duration, opts ...TokenOption) (*TokenIssuer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("token secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be greater than zero")
	}
	t := &TokenIssuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Issue signs a token for the user. secondFactorPending marks tokens handed
// out before the second factor was verified.
func (t *TokenIssuer) Issue(u *User, secondFactorPending bool) (string, time.Time, error) {
	now := t.now().UTC()
	expiresAt := now.Add(t.ttl)

	claims := Claims{
		Email:               u.Email,
		TwoFactorEnabled:    u.TwoFactorEnabled,
		SecondFactorPending: secondFactorPending,
		Version:             u.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks the signature, algorithm, issuer and expiry of a token.
// Every failure is reported as ErrInvalidCredential.
func (t *TokenIssuer) Verify(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidCredential
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(t.now),
	)

	var claims Claims
	parsed, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidCredential
	}
	if _, err := claims.UserID(); err != nil {
		return nil, ErrInvalidCredential
	}
	return &claims, nil
}
