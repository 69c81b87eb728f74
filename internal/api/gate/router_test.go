package gate_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackwise/trackwise/internal/api/gate"
	"github.com/trackwise/trackwise/internal/auth"
	"github.com/trackwise/trackwise/internal/project"
	"github.com/trackwise/trackwise/internal/rbac"
)

type stubResolver struct{ identity *auth.Identity }

func (s stubResolver) Resolve(*http.Request) (*auth.Identity, error) {
	if s.identity == nil {
		return nil, auth.ErrUnauthenticated
	}
	return s.identity, nil
}

type stubGuard struct{}

func (stubGuard) Authorize(_ context.Context, userID, projectID int64) (*project.Project, error) {
	return &project.Project{ID: projectID, OwnerID: userID}, nil
}

type denyGuard struct{}

func (denyGuard) Authorize(context.Context, int64, int64) (*project.Project, error) {
	return nil, project.ErrForbidden
}

type stubGrants struct{}

func (stubGrants) Grants(context.Context, int64, int64) (*rbac.Grants, error) {
	return &rbac.Grants{}, nil
}

func newStubRouter(identity *auth.Identity) (*gate.Router, *chi.Mux) {
	mux := chi.NewRouter()
	return gate.NewRouter(mux, gate.NewChain(stubResolver{identity}, stubGuard{}, stubGrants{})), mux
}

func noop(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }

func TestRouter_RejectsInconsistentPolicies(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		pattern string
		policy  gate.Policy
	}{
		{"public with roles", http.MethodGet, "/x", gate.Policy{Public: true, Roles: []string{"Admin"}}},
		{"public with capability", http.MethodGet, "/x", gate.Policy{Public: true, Capability: "task:read"}},
		{"public project route", http.MethodGet, "/projects/{projectId}", gate.Policy{Public: true}},
		{"path project read from body", http.MethodPost, "/projects/{projectId}/x", gate.Policy{ProjectParam: gate.BodyParam("projectId")}},
		{"path param missing from pattern", http.MethodGet, "/things/{id}", gate.Policy{ProjectParam: gate.PathParam("projectId")}},
		{"body param on GET", http.MethodGet, "/search", gate.Policy{ProjectParam: gate.BodyParam("projectId")}},
		{"body param without name", http.MethodPost, "/search", gate.Policy{ProjectParam: gate.BodyParam("")}},
		{"malformed capability", http.MethodGet, "/x", gate.Policy{Capability: "task"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newStubRouter(nil)
			assert.Panics(t, func() { r.Handle(tt.method, tt.pattern, tt.policy, noop) })
			assert.Empty(t, r.Routes())
		})
	}
}

func TestRouter_InfersPathScope(t *testing.T) {
	r, _ := newStubRouter(nil)

	r.Get("/projects/{projectId}/tasks", gate.Policy{}, noop)

	routes := r.Routes()
	require.Len(t, routes, 1)
	assert.True(t, routes[0].Scoped())
	assert.Equal(t, gate.PathParam("projectId"), routes[0].Policy.ProjectParam)
}

func TestRouter_InfersScopeFromRegexpParam(t *testing.T) {
	mux := chi.NewRouter()
	r := gate.NewRouter(mux, gate.NewChain(stubResolver{&auth.Identity{UserID: 3}}, denyGuard{}, stubGrants{}))
	ran := false
	r.Get("/projects/{projectId:[0-9]+}/tasks", gate.Policy{}, func(w http.ResponseWriter, _ *http.Request) {
		ran = true
	})
	r.Get("/boards/{boardProject:[0-9]{1,6}}", gate.Policy{ProjectParam: gate.PathParam("boardProject")}, noop)

	routes := r.Routes()
	require.Len(t, routes, 2)
	assert.True(t, routes[0].Scoped())
	assert.Equal(t, gate.PathParam("projectId"), routes[0].Policy.ProjectParam)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/projects/7/tasks", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, ran)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boards/12", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_RegexpParamsCompileStrictly(t *testing.T) {
	r, _ := newStubRouter(nil)

	assert.Panics(t, func() {
		r.Get("/projects/{projectId:[0-9]+}", gate.Policy{Public: true}, noop)
	})
	assert.Panics(t, func() {
		r.Post("/projects/{projectId:[0-9]+}/x", gate.Policy{ProjectParam: gate.BodyParam("projectId")}, noop)
	})
	assert.Panics(t, func() {
		r.Get("/things/{projectIdx}", gate.Policy{ProjectParam: gate.PathParam("projectId")}, noop)
	})
}

func TestRouter_CustomPathParam(t *testing.T) {
	r, mux := newStubRouter(&auth.Identity{UserID: 3})
	var seen int64
	r.Get("/boards/{boardProject}", gate.Policy{ProjectParam: gate.PathParam("boardProject")}, func(w http.ResponseWriter, req *http.Request) {
		seen = gate.ProjectFrom(req.Context()).ID
	})

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boards/12", nil))

	assert.Equal(t, int64(12), seen)
}

func TestRouter_RegistersAllMethods(t *testing.T) {
	r, mux := newStubRouter(&auth.Identity{UserID: 1})
	r.Get("/r", gate.Policy{}, noop)
	r.Post("/r", gate.Policy{}, noop)
	r.Put("/r", gate.Policy{}, noop)
	r.Patch("/r", gate.Policy{}, noop)
	r.Delete("/r", gate.Policy{}, noop)

	for _, m := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(m, "/r", nil))
		assert.Equal(t, http.StatusNoContent, w.Code, m)
	}
	assert.Len(t, r.Routes(), 5)
}

func TestRouter_WithRunsMiddlewareOutsideChain(t *testing.T) {
	r, mux := newStubRouter(nil)
	blocked := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
	r.With(blocked).Get("/limited", gate.Policy{}, noop)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/limited", nil))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Len(t, r.Routes(), 1, "routes registered through With share the table")
}

func TestRouter_Validate(t *testing.T) {
	catalog := mustCatalog(t)

	r, _ := newStubRouter(nil)
	r.Get("/a", gate.Policy{Roles: []string{rbac.RoleAdmin}}, noop)
	r.Get("/b", gate.Policy{Roles: []string{rbac.RoleDeveloper, "Janitor"}}, noop)

	err := r.Validate(catalog)

	require.Error(t, err)
	assert.Contains(t, err.Error(), `GET /b requires unknown role "Janitor"`)
	assert.NotContains(t, err.Error(), "/a")
}

func TestRouter_ValidateCapabilities(t *testing.T) {
	catalog := mustCatalog(t)

	r, _ := newStubRouter(nil)
	r.Post("/reports/query", gate.Policy{Capability: "report:read"}, noop)
	r.Post("/reports/typo", gate.Policy{Capability: "report:raed"}, noop)

	err := r.Validate(catalog)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "POST /reports/typo requires capability report:raed that no role grants")
	assert.NotContains(t, err.Error(), "/reports/query")
}

func TestStage_String(t *testing.T) {
	assert.Equal(t, "unauthenticated", gate.StageUnauthenticated.String())
	assert.Equal(t, "project_scoped", gate.StageProjectScoped.String())
	assert.Equal(t, "role_checked", gate.StageRoleChecked.String())
	assert.Equal(t, "rejected", gate.StageRejected.String())
	assert.Equal(t, "unknown", gate.Stage(42).String())
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, gate.IdentityFrom(ctx))
	assert.Nil(t, gate.ProjectFrom(ctx))
	assert.Nil(t, gate.GrantsFrom(ctx))
	assert.Equal(t, gate.StageUnauthenticated, gate.StageFrom(ctx))

	ctx = gate.WithIdentity(ctx, &auth.Identity{UserID: 5})
	assert.Equal(t, gate.StageAuthenticated, gate.StageFrom(ctx))
	ctx = gate.WithProject(ctx, &project.Project{ID: 9})

	assert.Equal(t, int64(5), gate.IdentityFrom(ctx).UserID)
	assert.Equal(t, int64(9), gate.ProjectFrom(ctx).ID)
	assert.Equal(t, gate.StageProjectScoped, gate.StageFrom(ctx))
}
