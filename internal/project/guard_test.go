package project_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackwise/trackwise/internal/project"
	"github.com/trackwise/trackwise/internal/project/projecttest"
)

const (
	ownerID    int64 = 1
	memberID   int64 = 2
	inactiveID int64 = 3
	strangerID int64 = 4
)

func seededProjects() *projecttest.Projects {
	repo := projecttest.NewProjects()
	repo.Put(project.Project{
		ID: 7, Name: "Apollo", OwnerID: ownerID,
		Members: []project.Member{
			{UserID: memberID, Active: true, Roles: []string{"Developer"}},
			{UserID: inactiveID, Active: false},
		},
	})
	return repo
}

func TestGuard_Authorize(t *testing.T) {
	tests := []struct {
		name         string
		userID       int64
		projectID    int64
		denyInactive bool
		wantErr      error
	}{
		{"owner without membership row", ownerID, 7, false, nil},
		{"active member", memberID, 7, false, nil},
		{"inactive member allowed by default", inactiveID, 7, false, nil},
		{"inactive member denied when configured", inactiveID, 7, true, project.ErrForbidden},
		{"owner unaffected by inactive rule", ownerID, 7, true, nil},
		{"stranger", strangerID, 7, false, project.ErrForbidden},
		{"missing project", memberID, 999, false, project.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := project.NewGuard(seededProjects(), project.DenyInactiveMembers(tt.denyInactive))

			p, err := g.Authorize(context.Background(), tt.userID, tt.projectID)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.projectID, p.ID)
		})
	}
}

func TestGuard_MissingAndForeignProjectsLookTheSame(t *testing.T) {
	g := project.NewGuard(seededProjects())

	_, errExisting := g.Authorize(context.Background(), strangerID, 7)
	_, errMissing := g.Authorize(context.Background(), strangerID, 999)

	assert.Equal(t, errExisting, errMissing)
}

func TestGuard_StoreErrorIsNotForbidden(t *testing.T) {
	repo := seededProjects()
	repo.Err = errors.New("connection refused")
	g := project.NewGuard(repo)

	_, err := g.Authorize(context.Background(), memberID, 7)

	require.Error(t, err)
	assert.NotErrorIs(t, err, project.ErrForbidden)
	assert.ErrorIs(t, err, repo.Err)
}

func TestProject_Helpers(t *testing.T) {
	p := project.Project{OwnerID: ownerID, Members: []project.Member{{UserID: memberID, Roles: []string{"Viewer"}}}}

	assert.True(t, p.IsOwner(ownerID))
	assert.False(t, p.IsOwner(memberID))

	m, ok := p.Member(memberID)
	require.True(t, ok)
	m.Roles = []string{"Developer"}
	assert.Equal(t, []string{"Developer"}, p.Members[0].Roles, "Member returns the row in place")

	_, ok = p.Member(strangerID)
	assert.False(t, ok)
}
