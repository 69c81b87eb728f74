// Package gate runs every route through one ordered authorization chain:
// authenticate, then scope to a project, then check roles. Routes declare
// what they need with a Policy when they are registered.
package gate

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/trackwise/trackwise/internal/rbac"
)

// DefaultProjectParam is the path parameter and body field holding a project id.
const DefaultProjectParam = "projectId"

// ParamLocation says where a project id is read from.
type ParamLocation int

const (
	// Unscoped routes have no project.
	Unscoped ParamLocation = iota
	InPath
	InBody
)

// ProjectParam names the request parameter carrying the project id.
type ProjectParam struct {
	In   ParamLocation
	Name string
}

// PathParam reads the project id from the chi URL parameter name.
func PathParam(name string) ProjectParam {
	return ProjectParam{In: InPath, Name: name}
}

// BodyParam reads the project id from the top-level JSON body field name.
func BodyParam(name string) ProjectParam {
	return ProjectParam{In: InBody, Name: name}
}

// Policy is the access declaration of one route.
type Policy struct {
	// Public routes skip the chain entirely.
	Public bool
	// Roles is an any-of set.
	Roles []string
	// Capability in entity:action form, e.g. "report:read".
	Capability string
	// ProjectParam is inferred as PathParam("projectId") when the pattern
	// contains {projectId}.
	ProjectParam ProjectParam
	// AllowPendingSecondFactor lets identities that still owe a second
	// factor through. Only the routes completing the login flow set it.
	AllowPendingSecondFactor bool
}

// Route is a registered route with its compiled policy.
type Route struct {
	Method  string
	Pattern string
	Policy  Policy

	requirement rbac.Requirement
}

// Scoped reports whether the route is project-scoped.
func (r Route) Scoped() bool {
	return r.Policy.ProjectParam.In != Unscoped
}

// compile checks the policy against its pattern and fills in inferred parts.
func compile(method, pattern string, p Policy) (Route, error) {
	rt := Route{Method: method, Pattern: pattern, Policy: p}
	params := patternParams(pattern)
	pathHasProject := params[DefaultProjectParam]

	if p.Public {
		if len(p.Roles) > 0 || p.Capability != "" || p.ProjectParam.In != Unscoped || pathHasProject {
			return rt, errors.New("public route cannot declare roles, capabilities or a project scope")
		}
		return rt, nil
	}

	if pathHasProject {
		switch p.ProjectParam.In {
		case Unscoped:
			rt.Policy.ProjectParam = PathParam(DefaultProjectParam)
		case InBody:
			return rt, fmt.Errorf("pattern carries {%s} but policy reads it from the body", DefaultProjectParam)
		}
	}

	pp := rt.Policy.ProjectParam
	switch pp.In {
	case InPath:
		if pp.Name == "" || !params[pp.Name] {
			return rt, fmt.Errorf("project parameter {%s} is not in the pattern", pp.Name)
		}
	case InBody:
		if pp.Name == "" {
			return rt, errors.New("body project parameter needs a field name")
		}
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodDelete {
			return rt, fmt.Errorf("%s requests have no body to read the project id from", method)
		}
	}

	rt.requirement.Roles = p.Roles
	if p.Capability != "" {
		c, err := rbac.ParseCapability(p.Capability)
		if err != nil {
			return rt, err
		}
		rt.requirement.Capability = &c
	}

	return rt, nil
}

// patternParams returns the names of the chi URL parameters in pattern.
// Both {name} and {name:regexp} are recognised; a regexp may itself contain
// balanced braces.
func patternParams(pattern string) map[string]bool {
	names := map[string]bool{}
	depth, start := 0, 0
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '{':
			if depth == 0 {
				start = i + 1
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				name, _, _ := strings.Cut(pattern[start:i], ":")
				names[strings.TrimSpace(name)] = true
			}
		}
	}
	return names
}
