package rbac

import (
	"fmt"
	"strings"
)

// Role names referenced directly by code.
const (
	RoleAdmin          = "Admin"
	RoleProjectManager = "ProjectManager"
	RoleDeveloper      = "Developer"
)

// NoProject is passed as project id for lookups outside any project.
const NoProject int64 = 0

// Wildcard matches any entity or action in a capability.
const Wildcard = "*"

// Role is a named capability bundle from the global catalog.
type Role struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Permission is a (role, entity, action) rule, optionally limited to one project.
type Permission struct {
	ID        int64  `json:"id"`
	RoleID    int64  `json:"roleId"`
	Entity    string `json:"entity"`
	Action    string `json:"action"`
	ProjectID *int64 `json:"projectId,omitempty"`
}

// Capability is an (entity, action) pair.
type Capability struct {
	Entity string
	Action string
}

// ParseCapability parses "entity:action".
func ParseCapability(s string) (Capability, error) {
	entity, action, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || entity == "" || action == "" || strings.Contains(action, ":") {
		return Capability{}, fmt.Errorf("capability %q must have the form entity:action", s)
	}
	return Capability{Entity: strings.ToLower(entity), Action: strings.ToLower(action)}, nil
}

// MustCapability is ParseCapability that panics on malformed input. Intended
// for route declarations.
func MustCapability(s string) Capability {
	c, err := ParseCapability(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Capability) String() string {
	return c.Entity + ":" + c.Action
}

// Covers reports whether c grants want, honouring wildcards on either part.
func (c Capability) Covers(want Capability) bool {
	return (c.Entity == Wildcard || c.Entity == want.Entity) &&
		(c.Action == Wildcard || c.Action == want.Action)
}
