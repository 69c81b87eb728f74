package gate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/trackwise/trackwise/internal/api/middleware"
	"github.com/trackwise/trackwise/internal/api/response"
	"github.com/trackwise/trackwise/internal/api/validation"
	"github.com/trackwise/trackwise/internal/auth"
	"github.com/trackwise/trackwise/internal/metrics"
	"github.com/trackwise/trackwise/internal/project"
	"github.com/trackwise/trackwise/internal/rbac"
	"github.com/trackwise/trackwise/internal/session"
)

// Rejection messages. Every 401 and 403 uses one of these, whatever the
// reason underneath.
const (
	MsgAuthenticationFailed = "Authentication failed"
	MsgSecondFactorRequired = "Second factor required"
	MsgForbidden            = "Forbidden"
	MsgInternal             = "Internal server error"
)

const maxScopedBodyBytes = 1 << 20

var errBodyTooLarge = errors.New("request body too large")

// IdentityResolver resolves the acting identity of a request.
type IdentityResolver interface {
	Resolve(r *http.Request) (*auth.Identity, error)
}

// ProjectAuthorizer grants or refuses access to a project.
type ProjectAuthorizer interface {
	Authorize(ctx context.Context, userID, projectID int64) (*project.Project, error)
}

// GrantLoader loads the roles and capabilities a user holds in a project.
type GrantLoader interface {
	Grants(ctx context.Context, userID, projectID int64) (*rbac.Grants, error)
}

// Chain is the ordered authorization pipeline.
type Chain struct {
	resolver IdentityResolver
	guard    ProjectAuthorizer
	grants   GrantLoader
}

// NewChain creates a Chain.
func NewChain(resolver IdentityResolver, guard ProjectAuthorizer, grants GrantLoader) *Chain {
	return &Chain{resolver: resolver, guard: guard, grants: grants}
}

// Wrap returns next guarded by the route's policy.
func (c *Chain) Wrap(rt Route, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, st := withState(r.Context())
		r = r.WithContext(ctx)

		if rt.Policy.Public {
			st.stage = StageHandled
			next.ServeHTTP(w, r)
			return
		}

		if !c.authenticate(w, r, st, rt) {
			return
		}

		if rt.Scoped() {
			var ok bool
			if r, ok = c.scope(w, r, st, rt); !ok {
				return
			}
		}

		if !rt.requirement.Empty() {
			if !c.checkRoles(w, r, st, rt) {
				return
			}
		}

		st.stage = StageHandled
		next.ServeHTTP(w, r)
	})
}

func (c *Chain) authenticate(w http.ResponseWriter, r *http.Request, st *state, rt Route) bool {
	identity, err := c.resolver.Resolve(r)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			reject(w, r, st, http.StatusUnauthorized, MsgAuthenticationFailed)
			return false
		}
		fail(w, r, st, err)
		return false
	}

	if identity.SecondFactorPending && !rt.Policy.AllowPendingSecondFactor {
		reject(w, r, st, http.StatusUnauthorized, MsgSecondFactorRequired)
		return false
	}

	if s := session.FromContext(r.Context()); s != nil && s.Identity == nil {
		s.Identity = identity
	}

	st.identity = identity
	st.stage = StageAuthenticated
	return true
}

func (c *Chain) scope(w http.ResponseWriter, r *http.Request, st *state, rt Route) (*http.Request, bool) {
	pp := rt.Policy.ProjectParam
	requestID := middleware.GetRequestID(r.Context())

	var raw string
	switch pp.In {
	case InPath:
		raw = chi.URLParam(r, pp.Name)
	case InBody:
		field, restored, err := bodyField(r, pp.Name)
		if errors.Is(err, errBodyTooLarge) {
			markRejected(r, st, http.StatusRequestEntityTooLarge)
			response.Err(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body is too large", requestID)
			return r, false
		}
		if err != nil {
			markRejected(r, st, http.StatusBadRequest)
			response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
			return r, false
		}
		r = restored
		raw = field
	}

	projectID, fieldErrs := validation.ParseID(pp.Name, raw)
	if len(fieldErrs) > 0 {
		markRejected(r, st, http.StatusBadRequest)
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrs, requestID)
		return r, false
	}

	p, err := c.guard.Authorize(r.Context(), st.identity.UserID, projectID)
	if err != nil {
		if errors.Is(err, project.ErrForbidden) {
			reject(w, r, st, http.StatusForbidden, MsgForbidden)
			return r, false
		}
		fail(w, r, st, err)
		return r, false
	}

	st.project = p
	st.stage = StageProjectScoped
	return r, true
}

func (c *Chain) checkRoles(w http.ResponseWriter, r *http.Request, st *state, rt Route) bool {
	userID := st.identity.UserID

	// Owners hold every project-scoped permission on their own project.
	if st.project != nil && st.project.IsOwner(userID) {
		st.stage = StageRoleChecked
		return true
	}

	projectID := rbac.NoProject
	if st.project != nil {
		projectID = st.project.ID
	}

	g, err := c.grants.Grants(r.Context(), userID, projectID)
	if err != nil {
		fail(w, r, st, err)
		return false
	}
	if !g.Satisfies(rt.requirement) {
		reject(w, r, st, http.StatusForbidden, MsgForbidden)
		return false
	}

	st.grants = g
	st.stage = StageRoleChecked
	return true
}

// bodyField reads the top-level field name from a JSON object body and
// returns a request whose body can be read again by the handler. A missing
// field yields "".
func bodyField(r *http.Request, name string) (string, *http.Request, error) {
	buf, err := io.ReadAll(io.LimitReader(r.Body, maxScopedBodyBytes+1))
	if err != nil {
		return "", r, err
	}
	if len(buf) > maxScopedBodyBytes {
		return "", r, errBodyTooLarge
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(buf))

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(buf, &fields); err != nil {
		return "", r, err
	}

	raw, ok := fields[name]
	if !ok {
		return "", r, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), r, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, r, nil
	}
	return string(raw), r, nil
}

func markRejected(r *http.Request, st *state, status int) {
	slog.Info("request rejected",
		"stage", st.stage.String(),
		"status", status,
		"method", r.Method,
		"path", r.URL.Path,
		"requestId", middleware.GetRequestID(r.Context()),
	)
	metrics.ObserveRejection(st.stage.String(), status)
	st.stage = StageRejected
}

func reject(w http.ResponseWriter, r *http.Request, st *state, status int, message string) {
	markRejected(r, st, status)
	response.Reject(w, status, message)
}

// fail answers an infrastructure failure. The request is never let through
// and the cause only reaches the log.
func fail(w http.ResponseWriter, r *http.Request, st *state, err error) {
	slog.Error("authorization chain failed",
		"stage", st.stage.String(),
		"error", err,
		"requestId", middleware.GetRequestID(r.Context()),
	)
	metrics.ObserveRejection(st.stage.String(), http.StatusInternalServerError)
	st.stage = StageRejected
	response.Reject(w, http.StatusInternalServerError, MsgInternal)
}
