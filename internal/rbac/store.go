package rbac

import (
	"context"
	"errors"
)

// ErrRoleNotFound is returned when a role does not exist.
var ErrRoleNotFound = errors.New("role not found")

// Store holds roles, permissions and role assignments.
//
// Global assignments live in user_roles; project-scoped role sets live on the
// project membership rows and are read here for ListRolesForUser and Grants.
type Store interface {
	// ListRolesForUser returns the union of global and project-scoped role names.
	ListRolesForUser(ctx context.Context, userID, projectID int64) ([]string, error)
	HasAnyRole(ctx context.Context, userID, projectID int64, required []string) (bool, error)
	// ListPermissions returns a role's permissions ordered by entity, action, id.
	ListPermissions(ctx context.Context, roleID int64) ([]Permission, error)
	// Grants loads roles and their expanded capabilities for one user and project.
	Grants(ctx context.Context, userID, projectID int64) (*Grants, error)

	ListRoles(ctx context.Context) ([]Role, error)
	GetRoleByName(ctx context.Context, name string) (*Role, error)
	InsertRoleIfAbsent(ctx context.Context, name, description string) (*Role, bool, error)
	InsertPermissionIfAbsent(ctx context.Context, p *Permission) error
	// SeedRole inserts a missing role together with its permissions as one
	// unit. Nothing is written when any insert fails; an existing role is
	// returned untouched with inserted false.
	SeedRole(ctx context.Context, name, description string, perms []Capability) (role *Role, inserted bool, err error)

	AssignGlobalRole(ctx context.Context, userID, roleID int64) error
	RevokeGlobalRole(ctx context.Context, userID, roleID int64) error
}
