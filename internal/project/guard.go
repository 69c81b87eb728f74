package project

import (
	"context"
	"errors"
	"fmt"
)

// ErrForbidden is returned by the Guard when the user may not act on the
// project. A missing project yields the same error.
var ErrForbidden = errors.New("project access forbidden")

// Guard decides whether a user may act within a project.
type Guard struct {
	repo         Repository
	denyInactive bool
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// DenyInactiveMembers makes the guard refuse members whose row is inactive.
func DenyInactiveMembers(deny bool) GuardOption {
	return func(g *Guard) { g.denyInactive = deny }
}

// NewGuard creates a Guard over the project repository.
func NewGuard(repo Repository, opts ...GuardOption) *Guard {
	g := &Guard{repo: repo}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authorize returns the project when userID is its owner or has a membership
// row. By default the row's active flag is not consulted.
func (g *Guard) Authorize(ctx context.Context, userID, projectID int64) (*Project, error) {
	p, err := g.repo.GetWithMembers(ctx, projectID)
	if err != nil {
		if errors.Is(err, ErrProjectNotFound) {
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("loading project %d: %w", projectID, err)
	}

	if p.IsOwner(userID) {
		return p, nil
	}

	m, ok := p.Member(userID)
	if !ok {
		return nil, ErrForbidden
	}
	if g.denyInactive && !m.Active {
		return nil, ErrForbidden
	}

	return p, nil
}
