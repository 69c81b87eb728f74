package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackwise/trackwise/internal/auth"
)

const tokenSecret = "unit-test-secret"

func TestNewTokenIssuer_Validation(t *testing.T) {
	_, err := auth.NewTokenIssuer("  ", "trackwise", time.Minute)
	assert.Error(t, err)

	_, err = auth.NewTokenIssuer(tokenSecret, "trackwise", 0)
	assert.Error(t, err)
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer, err := auth.NewTokenIssuer(tokenSecret, "trackwise", 15*time.Minute)
	require.NoError(t, err)
	u := &auth.User{ID: 42, Email: "ann@example.com", TwoFactorEnabled: true, TokenVersion: 3}

	tok, expiresAt, err := issuer.Issue(u, true)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	claims, err := issuer.Verify(tok)
	require.NoError(t, err)

	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, "ann@example.com", claims.Email)
	assert.True(t, claims.TwoFactorEnabled)
	assert.True(t, claims.SecondFactorPending)
	assert.Equal(t, 3, claims.Version)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenIssuer_VerifyRejects(t *testing.T) {
	issuer, err := auth.NewTokenIssuer(tokenSecret, "trackwise", time.Minute)
	require.NoError(t, err)
	u := &auth.User{ID: 1, Email: "ann@example.com"}

	otherSecret, err := auth.NewTokenIssuer("other-secret", "trackwise", time.Minute)
	require.NoError(t, err)
	otherIssuer, err := auth.NewTokenIssuer(tokenSecret, "someone-else", time.Minute)
	require.NoError(t, err)
	past, err := auth.NewTokenIssuer(tokenSecret, "trackwise", time.Minute,
		auth.WithClock(func() time.Time { return time.Now().Add(-time.Hour) }))
	require.NoError(t, err)

	good, _, err := issuer.Issue(u, false)
	require.NoError(t, err)

	sign := func(i *auth.TokenIssuer) string {
		tok, _, err := i.Issue(u, false)
		require.NoError(t, err)
		return tok
	}

	forOther, _, err := issuer.Issue(&auth.User{ID: 2, Email: "bob@example.com"}, false)
	require.NoError(t, err)
	goodParts := strings.Split(good, ".")
	otherParts := strings.Split(forOther, ".")
	tampered := otherParts[0] + "." + otherParts[1] + "." + goodParts[2]

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:    "trackwise",
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "trackwise",
		Subject:   "not-a-number",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte(tokenSecret))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:  "trackwise",
		Subject: "1",
	}).SignedString([]byte(tokenSecret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt"},
		{"wrong secret", sign(otherSecret)},
		{"wrong issuer", sign(otherIssuer)},
		{"expired", sign(past)},
		{"payload swapped", tampered},
		{"alg none", noneAlg},
		{"non numeric subject", badSubject},
		{"no expiry", noExpiry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.Verify(tt.token)
			assert.ErrorIs(t, err, auth.ErrInvalidCredential)
		})
	}
}
