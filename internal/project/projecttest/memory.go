// Package projecttest provides an in-memory project repository for tests.
package projecttest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/trackwise/trackwise/internal/project"
)

// Projects is an in-memory project.Repository. Err, when set, is returned
// by every method. KnownUser, when set, is consulted on member inserts.
type Projects struct {
	mu       sync.Mutex
	projects map[int64]*project.Project
	nextID   int64

	Err       error
	KnownUser func(userID int64) bool
}

// NewProjects creates an empty repository.
func NewProjects() *Projects {
	return &Projects{projects: make(map[int64]*project.Project), nextID: 1}
}

// Put stores p as is, keeping its ID. Used to arrange fixtures.
func (m *Projects) Put(p project.Project) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = clone(&p)
	if p.ID >= m.nextID {
		m.nextID = p.ID + 1
	}
}

// Create implements project.Repository.
func (m *Projects) Create(_ context.Context, p *project.Project, ownerRoles []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if m.KnownUser != nil && !m.KnownUser(p.OwnerID) {
		return project.ErrUnknownUser
	}
	now := time.Now().UTC()
	p.ID = m.nextID
	m.nextID++
	p.CreatedAt = now
	p.Members = []project.Member{{UserID: p.OwnerID, Active: true, Roles: append([]string{}, ownerRoles...), CreatedAt: now}}
	m.projects[p.ID] = clone(p)
	return nil
}

// GetWithMembers implements project.Repository.
func (m *Projects) GetWithMembers(_ context.Context, id int64) (*project.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	p, ok := m.projects[id]
	if !ok {
		return nil, project.ErrProjectNotFound
	}
	return clone(p), nil
}

// ListForUser implements project.Repository.
func (m *Projects) ListForUser(_ context.Context, userID int64) ([]project.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := []project.Project{}
	for _, p := range m.projects {
		if _, member := p.Member(userID); p.IsOwner(userID) || member {
			c := clone(p)
			c.Members = nil
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Delete implements project.Repository.
func (m *Projects) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.projects[id]; !ok {
		return project.ErrProjectNotFound
	}
	delete(m.projects, id)
	return nil
}

// AddMember implements project.Repository.
func (m *Projects) AddMember(_ context.Context, projectID int64, member *project.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	p, ok := m.projects[projectID]
	if !ok {
		return project.ErrProjectNotFound
	}
	if m.KnownUser != nil && !m.KnownUser(member.UserID) {
		return project.ErrUnknownUser
	}
	if _, exists := p.Member(member.UserID); exists {
		return project.ErrDuplicateMember
	}
	member.CreatedAt = time.Now().UTC()
	if member.Roles == nil {
		member.Roles = []string{}
	}
	p.Members = append(p.Members, *member)
	return nil
}

// SetMemberRoles implements project.Repository.
func (m *Projects) SetMemberRoles(_ context.Context, projectID, userID int64, roles []string) error {
	return m.update(projectID, userID, func(mem *project.Member) {
		mem.Roles = append([]string{}, roles...)
	})
}

// SetMemberActive implements project.Repository.
func (m *Projects) SetMemberActive(_ context.Context, projectID, userID int64, active bool) error {
	return m.update(projectID, userID, func(mem *project.Member) {
		mem.Active = active
	})
}

// RemoveMember implements project.Repository.
func (m *Projects) RemoveMember(_ context.Context, projectID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	p, ok := m.projects[projectID]
	if !ok {
		return project.ErrMemberNotFound
	}
	for i := range p.Members {
		if p.Members[i].UserID == userID {
			p.Members = append(p.Members[:i], p.Members[i+1:]...)
			return nil
		}
	}
	return project.ErrMemberNotFound
}

func (m *Projects) update(projectID, userID int64, fn func(*project.Member)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	p, ok := m.projects[projectID]
	if !ok {
		return project.ErrMemberNotFound
	}
	mem, ok := p.Member(userID)
	if !ok {
		return project.ErrMemberNotFound
	}
	fn(mem)
	return nil
}

func clone(p *project.Project) *project.Project {
	c := *p
	c.Members = make([]project.Member, len(p.Members))
	for i, mem := range p.Members {
		mem.Roles = append([]string{}, mem.Roles...)
		c.Members[i] = mem
	}
	return &c
}
