package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/trackwise/trackwise/internal/api/response"
	"github.com/trackwise/trackwise/internal/auth"
	"github.com/trackwise/trackwise/internal/notify"
	"github.com/trackwise/trackwise/internal/rbac"
	"github.com/trackwise/trackwise/internal/session"
)

// --- Fakes ---

type published struct {
	topic string
	event notify.ProjectEvent
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, _ := payload.(notify.ProjectEvent)
	p.events = append(p.events, published{topic: topic, event: e})
	return nil
}

func (p *recordingPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.topic)
	}
	return out
}

type mapSessions struct {
	mu   sync.Mutex
	data map[string]auth.Identity
}

func newMapSessions() *mapSessions {
	return &mapSessions{data: make(map[string]auth.Identity)}
}

func (m *mapSessions) Load(_ context.Context, id string) (*auth.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.data[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return &identity, nil
}

func (m *mapSessions) Save(_ context.Context, id string, identity *auth.Identity, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[id] = *identity
	return nil
}

func (m *mapSessions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[id]; !ok {
		return session.ErrNotFound
	}
	delete(m.data, id)
	return nil
}

func (m *mapSessions) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// --- Helpers ---

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *response.Error `json:"error"`
	Meta  response.Meta   `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	env := decodeEnvelope(t, rec)
	require.Nil(t, env.Error)
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func mustCatalog(t *testing.T) *rbac.Catalog {
	t.Helper()
	c, err := rbac.DefaultCatalog()
	require.NoError(t, err)
	return c
}
