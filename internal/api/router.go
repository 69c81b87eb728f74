package api

import (
	"fmt"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/go-chi/chi/v5"

	"github.com/trackwise/trackwise/internal/api/gate"
	"github.com/trackwise/trackwise/internal/api/handler"
	"github.com/trackwise/trackwise/internal/api/middleware"
	"github.com/trackwise/trackwise/internal/auth"
	"github.com/trackwise/trackwise/internal/metrics"
	"github.com/trackwise/trackwise/internal/notify"
	"github.com/trackwise/trackwise/internal/project"
	"github.com/trackwise/trackwise/internal/rbac"
	"github.com/trackwise/trackwise/internal/session"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	DBPinger    handler.Pinger
	CachePinger handler.Pinger
	Version     string

	Chain    *gate.Chain
	Sessions *session.Manager

	AuthService *auth.Service
	Tokens      *auth.TokenIssuer
	Roles       rbac.Store
	Catalog     *rbac.Catalog
	Projects    project.Repository
	Publisher   notify.Publisher

	LoginLimiter   *middleware.RateLimiter
	RequestTimeout time.Duration
}

// NewRouter creates and configures a Chi router with all middleware and
// routes. Every route is registered through the authorization gate; an error
// is returned when a route names a role missing from the catalog.
func NewRouter(deps RouterDeps) (*chi.Mux, error) {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(chimiddleware.Logger)
	r.Use(metrics.Instrument)
	if deps.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(deps.RequestTimeout))
	}
	r.Use(deps.Sessions.Middleware)

	routes := gate.NewRouter(r, deps.Chain)
	public := gate.Policy{Public: true}
	authenticated := gate.Policy{}
	admin := gate.Policy{Roles: []string{rbac.RoleAdmin}}
	manager := gate.Policy{Roles: []string{rbac.RoleAdmin, rbac.RoleProjectManager}}

	healthHandler := handler.NewHealthHandler(deps.DBPinger, deps.CachePinger, deps.Version)
	routes.Get("/health", public, healthHandler.ServeHTTP)
	routes.Get("/metrics", public, metrics.Handler().ServeHTTP)

	authHandler := handler.NewAuthHandler(deps.AuthService, deps.Tokens, deps.Sessions, deps.Roles)
	login := routes
	if deps.LoginLimiter != nil {
		login = routes.With(deps.LoginLimiter.Middleware)
	}
	login.Post("/auth/login", public, authHandler.Login)
	routes.Post("/auth/logout", gate.Policy{AllowPendingSecondFactor: true}, authHandler.Logout)
	routes.Get("/me", gate.Policy{AllowPendingSecondFactor: true}, authHandler.Me)

	userHandler := handler.NewUserHandler(deps.AuthService, deps.Roles, deps.Catalog)
	routes.Post("/users", admin, userHandler.Create)
	routes.Get("/users", admin, userHandler.List)
	routes.Delete("/users/{id}", admin, userHandler.Revoke)
	routes.Post("/users/{id}/api-key", admin, userHandler.RotateKey)

	projectHandler := handler.NewProjectHandler(deps.Projects, deps.Catalog, deps.Publisher)
	routes.Post("/projects", authenticated, projectHandler.Create)
	routes.Get("/projects", authenticated, projectHandler.List)
	routes.Get("/projects/{projectId}", authenticated, projectHandler.Get)
	routes.Delete("/projects/{projectId}", admin, projectHandler.Delete)

	grantsHandler := handler.NewGrantsHandler(deps.Roles)
	routes.Get("/projects/{projectId}/grants", authenticated, grantsHandler.Get)

	memberHandler := handler.NewMemberHandler(deps.Projects, deps.Catalog, deps.Publisher)
	routes.Post("/projects/{projectId}/members", manager, memberHandler.Add)
	routes.Put("/projects/{projectId}/members/{userId}/roles", manager, memberHandler.SetRoles)
	routes.Patch("/projects/{projectId}/members/{userId}", manager, memberHandler.SetActive)
	routes.Delete("/projects/{projectId}/members/{userId}", manager, memberHandler.Remove)

	reportHandler := handler.NewReportHandler()
	routes.Get("/reports/project/{projectId}", gate.Policy{Roles: []string{rbac.RoleDeveloper}}, reportHandler.Project)
	routes.Post("/reports/query", gate.Policy{
		Capability:   "report:read",
		ProjectParam: gate.BodyParam(gate.DefaultProjectParam),
	}, reportHandler.Query)

	roleHandler := handler.NewRoleHandler(deps.Roles)
	routes.Get("/roles", authenticated, roleHandler.List)
	routes.Get("/roles/{roleId}/permissions", authenticated, roleHandler.Permissions)

	if err := routes.Validate(deps.Catalog); err != nil {
		return nil, fmt.Errorf("route policies: %w", err)
	}

	return r, nil
}
