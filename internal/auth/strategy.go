package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/trackwise/trackwise/internal/metrics"
)

var (
	// ErrNoCredential means the strategy's credential form is absent from the request.
	ErrNoCredential = errors.New("no credential presented")

	// ErrInvalidCredential means a credential was presented but did not validate.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrUnauthenticated is returned by the Resolver when no strategy succeeded.
	ErrUnauthenticated = errors.New("authentication failed")
)

// Strategy resolves an Identity from one credential form.
//
// Resolve returns ErrNoCredential when the form is absent, ErrInvalidCredential
// when it is present but rejected, and any other error for infrastructure failures.
type Strategy interface {
	Name() string
	Resolve(r *http.Request) (*Identity, error)
}

// Resolver tries strategies in order; the first success wins.
type Resolver struct {
	strategies []Strategy
}

// NewResolver creates a Resolver over the given strategies, tried in order.
func NewResolver(strategies ...Strategy) *Resolver {
	return &Resolver{strategies: strategies}
}

// Resolve returns the acting Identity. A rejected credential does not stop
// the chain; later strategies are still attempted. When nothing succeeds the
// result is ErrUnauthenticated, unless a strategy hit an infrastructure error,
// in which case that error is returned wrapped so callers fail closed.
func (res *Resolver) Resolve(r *http.Request) (*Identity, error) {
	var infraErr error

	for _, s := range res.strategies {
		identity, err := s.Resolve(r)
		switch {
		case err == nil && identity != nil:
			metrics.ObserveAuth(s.Name(), "success")
			if identity.Source == "" {
				identity.Source = s.Name()
			}
			return identity, nil
		case err == nil, errors.Is(err, ErrNoCredential):
			continue
		case errors.Is(err, ErrInvalidCredential):
			metrics.ObserveAuth(s.Name(), "rejected")
		default:
			metrics.ObserveAuth(s.Name(), "error")
			if infraErr == nil {
				infraErr = fmt.Errorf("%s strategy: %w", s.Name(), err)
			}
		}
	}

	if infraErr != nil {
		return nil, infraErr
	}
	return nil, ErrUnauthenticated
}

// authorizationCredential splits an Authorization header into scheme and value.
func authorizationCredential(r *http.Request) (scheme, value string) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", ""
	}
	scheme, value, found := strings.Cut(header, " ")
	if !found {
		return "", ""
	}
	return strings.ToLower(scheme), strings.TrimSpace(value)
}

// BearerStrategy verifies `Authorization: Bearer <jwt>` tokens.
type BearerStrategy struct {
	tokens *TokenIssuer
	users  UserRepository
}

// NewBearerStrategy creates a BearerStrategy. When users is non-nil every
// token is also checked against the store: the user must exist, not be
// revoked, and the token version must match. With users nil the decoded
// claims are trusted until expiry.
func NewBearerStrategy(tokens *TokenIssuer, users UserRepository) *BearerStrategy {
	return &BearerStrategy{tokens: tokens, users: users}
}

// Name implements Strategy.
func (s *BearerStrategy) Name() string { return SourceBearer }

// Resolve implements Strategy.
func (s *BearerStrategy) Resolve(r *http.Request) (*Identity, error) {
	scheme, value := authorizationCredential(r)
	if scheme != "bearer" || value == "" {
		return nil, ErrNoCredential
	}
	// Bearer-shaped API keys are left to the API key strategy.
	if strings.HasPrefix(value, KeyPrefix) {
		return nil, ErrNoCredential
	}

	claims, err := s.tokens.Verify(value)
	if err != nil {
		return nil, ErrInvalidCredential
	}
	userID, _ := claims.UserID() // validated by Verify

	identity := &Identity{
		UserID:              userID,
		Email:               claims.Email,
		TwoFactorEnabled:    claims.TwoFactorEnabled,
		SecondFactorPending: claims.SecondFactorPending,
		Source:              SourceBearer,
	}

	if s.users != nil {
		if err := s.checkUser(r.Context(), userID, claims.Version); err != nil {
			return nil, err
		}
	}

	return identity, nil
}

func (s *BearerStrategy) checkUser(ctx context.Context, userID int64, version int) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrInvalidCredential
		}
		return err
	}
	if !u.Active() || u.TokenVersion != version {
		return ErrInvalidCredential
	}
	return nil
}

// APIKeyStrategy resolves `Authorization: ApiKey <key>`, `X-API-Key: <key>`
// and bearer-shaped keys (`Authorization: Bearer tw_...`).
type APIKeyStrategy struct {
	svc *Service
}

// NewAPIKeyStrategy creates an APIKeyStrategy.
func NewAPIKeyStrategy(svc *Service) *APIKeyStrategy {
	return &APIKeyStrategy{svc: svc}
}

// Name implements Strategy.
func (s *APIKeyStrategy) Name() string { return SourceAPIKey }

// Resolve implements Strategy.
func (s *APIKeyStrategy) Resolve(r *http.Request) (*Identity, error) {
	rawKey := apiKeyFromRequest(r)
	if rawKey == "" {
		return nil, ErrNoCredential
	}

	u, err := s.svc.AuthenticateKey(r.Context(), rawKey)
	if err != nil {
		if errors.Is(err, ErrInvalidKey) {
			return nil, ErrInvalidCredential
		}
		return nil, err
	}

	return IdentityOf(u, SourceAPIKey), nil
}

func apiKeyFromRequest(r *http.Request) string {
	scheme, value := authorizationCredential(r)
	switch {
	case scheme == "apikey" && value != "":
		return value
	case scheme == "bearer" && strings.HasPrefix(value, KeyPrefix):
		return value
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}
