package project

import (
	"time"
)

// Project represents a row in the projects table together with its members.
// OwnerID is set at creation and never changes.
type Project struct {
	ID        int64
	Name      string
	OwnerID   int64
	CreatedAt time.Time
	Members   []Member
}

// Member is a row of the project_members relation. It carries both the
// membership itself (Active) and the roles the user holds in the project.
type Member struct {
	UserID    int64
	Active    bool
	Roles     []string
	CreatedAt time.Time
}

// IsOwner reports whether userID is the recorded owner.
func (p *Project) IsOwner(userID int64) bool {
	return p.OwnerID == userID
}

// Member returns the membership row of userID, if any.
func (p *Project) Member(userID int64) (*Member, bool) {
	for i := range p.Members {
		if p.Members[i].UserID == userID {
			return &p.Members[i], true
		}
	}
	return nil, false
}
