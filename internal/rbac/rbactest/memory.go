// Package rbactest provides an in-memory role store for tests.
package rbactest

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/trackwise/trackwise/internal/project"
	"github.com/trackwise/trackwise/internal/rbac"
)

// Store is an in-memory rbac.Store. Project-scoped roles are read from the
// membership rows of Projects, when set, the same way the SQL store reads
// the project_members relation.
type Store struct {
	mu          sync.Mutex
	roles       []rbac.Role
	permissions []rbac.Permission
	global      map[int64]map[int64]bool
	nextRoleID  int64
	nextPermID  int64

	Projects project.Repository
	Err      error
	// FailPermission, when set, is consulted before each permission SeedRole
	// writes; a non-nil result aborts the role.
	FailPermission func(role string, c rbac.Capability) error
}

// NewStore creates an empty Store.
func NewStore(projects project.Repository) *Store {
	return &Store{
		global:     make(map[int64]map[int64]bool),
		nextRoleID: 1,
		nextPermID: 1,
		Projects:   projects,
	}
}

// Seeded creates a Store seeded with the default catalog.
func Seeded(projects project.Repository) (*Store, error) {
	s := NewStore(projects)
	c, err := rbac.DefaultCatalog()
	if err != nil {
		return nil, err
	}
	if _, err := rbac.Seed(context.Background(), s, c); err != nil {
		return nil, err
	}
	return s, nil
}

// ListRolesForUser implements rbac.Store.
func (s *Store) ListRolesForUser(ctx context.Context, userID, projectID int64) ([]string, error) {
	if s.Err != nil {
		return nil, s.Err
	}

	held := map[string]bool{}
	s.mu.Lock()
	for roleID := range s.global[userID] {
		for _, r := range s.roles {
			if r.ID == roleID {
				held[r.Name] = true
			}
		}
	}
	s.mu.Unlock()

	if s.Projects != nil && projectID != rbac.NoProject {
		p, err := s.Projects.GetWithMembers(ctx, projectID)
		switch {
		case err == nil:
			if m, ok := p.Member(userID); ok {
				for _, name := range m.Roles {
					held[name] = true
				}
			}
		case errors.Is(err, project.ErrProjectNotFound):
		default:
			return nil, err
		}
	}

	names := make([]string, 0, len(held))
	for n := range held {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// HasAnyRole implements rbac.Store.
func (s *Store) HasAnyRole(ctx context.Context, userID, projectID int64, required []string) (bool, error) {
	names, err := s.ListRolesForUser(ctx, userID, projectID)
	if err != nil {
		return false, err
	}
	g := rbac.Grants{Roles: names}
	return g.HasAnyRole(required), nil
}

// ListPermissions implements rbac.Store.
func (s *Store) ListPermissions(_ context.Context, roleID int64) ([]rbac.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := []rbac.Permission{}
	for _, p := range s.permissions {
		if p.RoleID == roleID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Entity != out[j].Entity {
			return out[i].Entity < out[j].Entity
		}
		if out[i].Action != out[j].Action {
			return out[i].Action < out[j].Action
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Grants implements rbac.Store.
func (s *Store) Grants(ctx context.Context, userID, projectID int64) (*rbac.Grants, error) {
	names, err := s.ListRolesForUser(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	g := &rbac.Grants{Roles: names, Capabilities: []rbac.Capability{}}
	seen := map[rbac.Capability]bool{}
	for _, name := range names {
		for _, r := range s.roles {
			if r.Name != name {
				continue
			}
			for _, p := range s.permissions {
				if p.RoleID != r.ID || (p.ProjectID != nil && *p.ProjectID != projectID) {
					continue
				}
				c := rbac.Capability{Entity: p.Entity, Action: p.Action}
				if !seen[c] {
					seen[c] = true
					g.Capabilities = append(g.Capabilities, c)
				}
			}
		}
	}
	return g, nil
}

// ListRoles implements rbac.Store.
func (s *Store) ListRoles(_ context.Context) ([]rbac.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]rbac.Role, len(s.roles))
	copy(out, s.roles)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetRoleByName implements rbac.Store.
func (s *Store) GetRoleByName(_ context.Context, name string) (*rbac.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, r := range s.roles {
		if r.Name == name {
			return &r, nil
		}
	}
	return nil, rbac.ErrRoleNotFound
}

// InsertRoleIfAbsent implements rbac.Store.
func (s *Store) InsertRoleIfAbsent(_ context.Context, name, description string) (*rbac.Role, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, false, s.Err
	}
	for _, r := range s.roles {
		if r.Name == name {
			return &r, false, nil
		}
	}
	r := rbac.Role{ID: s.nextRoleID, Name: name, Description: description}
	s.nextRoleID++
	s.roles = append(s.roles, r)
	return &r, true, nil
}

// InsertPermissionIfAbsent implements rbac.Store.
func (s *Store) InsertPermissionIfAbsent(_ context.Context, p *rbac.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, existing := range s.permissions {
		if existing.RoleID == p.RoleID && existing.Entity == p.Entity && existing.Action == p.Action &&
			sameProject(existing.ProjectID, p.ProjectID) {
			return nil
		}
	}
	p.ID = s.nextPermID
	s.nextPermID++
	s.permissions = append(s.permissions, *p)
	return nil
}

// SeedRole implements rbac.Store.
func (s *Store) SeedRole(_ context.Context, name, description string, perms []rbac.Capability) (*rbac.Role, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, false, s.Err
	}
	for _, r := range s.roles {
		if r.Name == name {
			return &r, false, nil
		}
	}

	r := rbac.Role{ID: s.nextRoleID, Name: name, Description: description}
	staged := make([]rbac.Permission, 0, len(perms))
	for i, c := range perms {
		if s.FailPermission != nil {
			if err := s.FailPermission(name, c); err != nil {
				return nil, false, err
			}
		}
		staged = append(staged, rbac.Permission{
			ID:     s.nextPermID + int64(i),
			RoleID: r.ID,
			Entity: c.Entity,
			Action: c.Action,
		})
	}

	s.nextRoleID++
	s.nextPermID += int64(len(staged))
	s.roles = append(s.roles, r)
	s.permissions = append(s.permissions, staged...)
	return &r, true, nil
}

// AssignGlobalRole implements rbac.Store.
func (s *Store) AssignGlobalRole(_ context.Context, userID, roleID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if s.global[userID] == nil {
		s.global[userID] = map[int64]bool{}
	}
	s.global[userID][roleID] = true
	return nil
}

// RevokeGlobalRole implements rbac.Store.
func (s *Store) RevokeGlobalRole(_ context.Context, userID, roleID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	delete(s.global[userID], roleID)
	return nil
}

// AssignByName assigns a global role by name. Used to arrange fixtures.
func (s *Store) AssignByName(ctx context.Context, userID int64, name string) error {
	r, err := s.GetRoleByName(ctx, name)
	if err != nil {
		return err
	}
	return s.AssignGlobalRole(ctx, userID, r.ID)
}

func sameProject(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
