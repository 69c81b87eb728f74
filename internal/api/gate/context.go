package gate

import (
	"context"

	"github.com/trackwise/trackwise/internal/auth"
	"github.com/trackwise/trackwise/internal/project"
	"github.com/trackwise/trackwise/internal/rbac"
)

// Stage is the position of a request in the authorization chain.
type Stage int

const (
	StageUnauthenticated Stage = iota
	StageAuthenticated
	StageProjectScoped
	StageRoleChecked
	StageHandled
	StageRejected
)

func (s Stage) String() string {
	switch s {
	case StageUnauthenticated:
		return "unauthenticated"
	case StageAuthenticated:
		return "authenticated"
	case StageProjectScoped:
		return "project_scoped"
	case StageRoleChecked:
		return "role_checked"
	case StageHandled:
		return "handled"
	case StageRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// state is the per-request record shared by the chain and the handler.
type state struct {
	stage    Stage
	identity *auth.Identity
	project  *project.Project
	grants   *rbac.Grants
}

type stateKey struct{}

func stateFrom(ctx context.Context) *state {
	st, _ := ctx.Value(stateKey{}).(*state)
	return st
}

func withState(ctx context.Context) (context.Context, *state) {
	if st := stateFrom(ctx); st != nil {
		return ctx, st
	}
	st := &state{stage: StageUnauthenticated}
	return context.WithValue(ctx, stateKey{}, st), st
}

// IdentityFrom returns the identity resolved for the request, or nil on
// public routes.
func IdentityFrom(ctx context.Context) *auth.Identity {
	if st := stateFrom(ctx); st != nil {
		return st.identity
	}
	return nil
}

// ProjectFrom returns the project the request was scoped to, or nil.
func ProjectFrom(ctx context.Context) *project.Project {
	if st := stateFrom(ctx); st != nil {
		return st.project
	}
	return nil
}

// GrantsFrom returns the grants loaded by the role check. It is nil when the
// route declared no requirement or the caller owns the scoped project.
func GrantsFrom(ctx context.Context) *rbac.Grants {
	if st := stateFrom(ctx); st != nil {
		return st.grants
	}
	return nil
}

// StageFrom returns how far the request got through the chain.
func StageFrom(ctx context.Context) Stage {
	if st := stateFrom(ctx); st != nil {
		return st.stage
	}
	return StageUnauthenticated
}

// WithIdentity returns a context carrying an authenticated identity, as if
// the chain had resolved it. Handlers invoked outside the router use it.
func WithIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	ctx, st := withState(ctx)
	st.identity = identity
	st.stage = StageAuthenticated
	return ctx
}

// WithProject returns a context scoped to p.
func WithProject(ctx context.Context, p *project.Project) context.Context {
	ctx, st := withState(ctx)
	st.project = p
	st.stage = StageProjectScoped
	return ctx
}

// WithGrants returns a context carrying grants, as if the role check had
// loaded them.
func WithGrants(ctx context.Context, g *rbac.Grants) context.Context {
	ctx, st := withState(ctx)
	st.grants = g
	return ctx
}
