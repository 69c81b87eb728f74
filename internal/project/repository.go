package project

import (
	"context"
	"errors"
)

// ErrProjectNotFound is returned when a project record is not found.
var ErrProjectNotFound = errors.New("project not found")

// ErrMemberNotFound is returned when a membership row is not found.
var ErrMemberNotFound = errors.New("member not found")

// ErrDuplicateMember is returned when the user is already a member.
var ErrDuplicateMember = errors.New("user is already a member")

// ErrUnknownUser is returned when a referenced user does not exist.
var ErrUnknownUser = errors.New("user does not exist")

// Repository provides operations on projects and their members.
type Repository interface {
	Create(ctx context.Context, p *Project, ownerRoles []string) error
	GetWithMembers(ctx context.Context, id int64) (*Project, error)
	ListForUser(ctx context.Context, userID int64) ([]Project, error)
	Delete(ctx context.Context, id int64) error

	AddMember(ctx context.Context, projectID int64, m *Member) error
	SetMemberRoles(ctx context.Context, projectID, userID int64, roles []string) error
	SetMemberActive(ctx context.Context, projectID, userID int64, active bool) error
	RemoveMember(ctx context.Context, projectID, userID int64) error
}
