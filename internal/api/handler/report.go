package handler

import (
	"net/http"
	"sort"

	"github.com/trackwise/trackwise/internal/api/gate"
	"github.com/trackwise/trackwise/internal/api/middleware"
	"github.com/trackwise/trackwise/internal/api/response"
	"github.com/trackwise/trackwise/internal/project"
)

type roleCount struct {
	Role    string `json:"role"`
	Members int    `json:"members"`
}

type membershipReport struct {
	ProjectID       int64       `json:"projectId"`
	Name            string      `json:"name"`
	OwnerID         int64       `json:"ownerId"`
	Members         int         `json:"members"`
	ActiveMembers   int         `json:"activeMembers"`
	InactiveMembers int         `json:"inactiveMembers"`
	Roles           []roleCount `json:"roles"`
}

// ReportHandler serves membership reports for the scoped project.
type ReportHandler struct{}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler() *ReportHandler {
	return &ReportHandler{}
}

// Project handles GET /reports/project/{projectId}.
func (h *ReportHandler) Project(w http.ResponseWriter, r *http.Request) {
	p := gate.ProjectFrom(r.Context())
	response.Success(w, http.StatusOK, summarize(p), middleware.GetRequestID(r.Context()))
}

// Query handles POST /reports/query. The project comes from the body field
// that the chain scoped the request with.
func (h *ReportHandler) Query(w http.ResponseWriter, r *http.Request) {
	p := gate.ProjectFrom(r.Context())
	response.Success(w, http.StatusOK, summarize(p), middleware.GetRequestID(r.Context()))
}

func summarize(p *project.Project) membershipReport {
	rep := membershipReport{
		ProjectID: p.ID,
		Name:      p.Name,
		OwnerID:   p.OwnerID,
		Members:   len(p.Members),
		Roles:     []roleCount{},
	}

	counts := make(map[string]int)
	for _, m := range p.Members {
		if m.Active {
			rep.ActiveMembers++
		} else {
			rep.InactiveMembers++
		}
		for _, role := range m.Roles {
			counts[role]++
		}
	}

	for role, n := range counts {
		rep.Roles = append(rep.Roles, roleCount{Role: role, Members: n})
	}
	sort.Slice(rep.Roles, func(i, j int) bool { return rep.Roles[i].Role < rep.Roles[j].Role })

	return rep
}
