// Package session carries the request-scoped session object and its
// server-side storage.
package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/trackwise/trackwise/internal/auth"
)

// ErrNotFound is returned by a Store when the session id is unknown or expired.
var ErrNotFound = errors.New("session not found")

// Session is the request-scoped session object. ID is empty when the request
// carried no valid session cookie. Identity is set either from the stored
// session or by the authorization chain once any strategy has resolved one.
type Session struct {
	ID       string
	Identity *auth.Identity
}

// Store persists session identities server-side.
type Store interface {
	Load(ctx context.Context, id string) (*auth.Identity, error)
	Save(ctx context.Context, id string, identity *auth.Identity, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

type contextKey struct{}

// FromContext returns the session attached by Middleware, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(contextKey{}).(*Session)
	return s
}

// WithSession attaches a session to the context.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// Manager loads sessions from cookies and starts or ends them.
type Manager struct {
	store      Store
	cookieName string
	ttl        time.Duration
	secure     bool
}

// NewManager creates a Manager.
func NewManager(store Store, cookieName string, ttl time.Duration, secure bool) *Manager {
	return &Manager{
		store:      store,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
	}
}

// Middleware attaches a Session to every request. A stored session is loaded
// when the cookie is present; a store failure is logged and the request goes
// on with an empty session so that other credentials can still be tried.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := &Session{}

		if c, err := r.Cookie(m.cookieName); err == nil && c.Value != "" {
			identity, err := m.store.Load(r.Context(), c.Value)
			switch {
			case err == nil:
				identity.Source = auth.SourceSession
				s.ID = c.Value
				s.Identity = identity
			case errors.Is(err, ErrNotFound):
			default:
				slog.Error("failed to load session", "error", err)
			}
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
	})
}

// Start persists a new session for the identity and sets the cookie.
func (m *Manager) Start(ctx context.Context, w http.ResponseWriter, identity *auth.Identity) error {
	id := uuid.NewString()
	if err := m.store.Save(ctx, id, identity, m.ttl); err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})

	if s := FromContext(ctx); s != nil {
		s.ID = id
		s.Identity = identity
	}
	return nil
}

// End deletes the current session, if any, and clears the cookie.
func (m *Manager) End(ctx context.Context, w http.ResponseWriter) error {
	s := FromContext(ctx)
	if s != nil && s.ID != "" {
		if err := m.store.Delete(ctx, s.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		s.ID = ""
		s.Identity = nil
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Strategy resolves the identity already carried by a stored session. It is
// returned unconditionally, without re-validation against the user store.
type Strategy struct{}

// Name implements auth.Strategy.
func (Strategy) Name() string { return auth.SourceSession }

// Resolve implements auth.Strategy.
func (Strategy) Resolve(r *http.Request) (*auth.Identity, error) {
	s := FromContext(r.Context())
	if s == nil || s.ID == "" || s.Identity == nil {
		return nil, auth.ErrNoCredential
	}
	return s.Identity, nil
}
