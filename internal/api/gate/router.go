package gate

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/trackwise/trackwise/internal/rbac"
)

type routeTable struct {
	routes []Route
}

// Router registers routes on a chi router, each behind the Chain. There is
// no way to register a handler without a Policy.
type Router struct {
	mux   chi.Router
	chain *Chain
	table *routeTable
}

// NewRouter creates a Router over mux.
func NewRouter(mux chi.Router, chain *Chain) *Router {
	return &Router{mux: mux, chain: chain, table: &routeTable{}}
}

// With returns a Router whose routes also run the given middlewares, outside
// the authorization chain.
func (rt *Router) With(middlewares ...func(http.Handler) http.Handler) *Router {
	return &Router{mux: rt.mux.With(middlewares...), chain: rt.chain, table: rt.table}
}

// Handle registers h for method and pattern. It panics when the policy is
// inconsistent with the pattern, so a misdeclared route never starts serving.
func (rt *Router) Handle(method, pattern string, policy Policy, h http.HandlerFunc) {
	route, err := compile(method, pattern, policy)
	if err != nil {
		panic(fmt.Sprintf("gate: %s %s: %v", method, pattern, err))
	}
	rt.table.routes = append(rt.table.routes, route)
	rt.mux.Method(method, pattern, rt.chain.Wrap(route, h))
}

// Get registers a GET route.
func (rt *Router) Get(pattern string, policy Policy, h http.HandlerFunc) {
	rt.Handle(http.MethodGet, pattern, policy, h)
}

// Post registers a POST route.
func (rt *Router) Post(pattern string, policy Policy, h http.HandlerFunc) {
	rt.Handle(http.MethodPost, pattern, policy, h)
}

// Put registers a PUT route.
func (rt *Router) Put(pattern string, policy Policy, h http.HandlerFunc) {
	rt.Handle(http.MethodPut, pattern, policy, h)
}

// Patch registers a PATCH route.
func (rt *Router) Patch(pattern string, policy Policy, h http.HandlerFunc) {
	rt.Handle(http.MethodPatch, pattern, policy, h)
}

// Delete registers a DELETE route.
func (rt *Router) Delete(pattern string, policy Policy, h http.HandlerFunc) {
	rt.Handle(http.MethodDelete, pattern, policy, h)
}

// Routes returns every registered route in registration order.
func (rt *Router) Routes() []Route {
	out := make([]Route, len(rt.table.routes))
	copy(out, rt.table.routes)
	return out
}

// Validate checks that every role named by a route exists in the catalog and
// that every required capability is carried by at least one catalog role.
func (rt *Router) Validate(catalog *rbac.Catalog) error {
	var errs []error
	for _, r := range rt.table.routes {
		for _, name := range catalog.Unknown(r.Policy.Roles) {
			errs = append(errs, fmt.Errorf("%s %s requires unknown role %q", r.Method, r.Pattern, name))
		}
		if c := r.requirement.Capability; c != nil && !catalog.Covers(*c) {
			errs = append(errs, fmt.Errorf("%s %s requires capability %s that no role grants", r.Method, r.Pattern, c))
		}
	}
	return errors.Join(errs...)
}
