package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/trackwise/trackwise/internal/api/gate"
	"github.com/trackwise/trackwise/internal/api/middleware"
	"github.com/trackwise/trackwise/internal/api/response"
	"github.com/trackwise/trackwise/internal/api/validation"
	"github.com/trackwise/trackwise/internal/notify"
	"github.com/trackwise/trackwise/internal/project"
	"github.com/trackwise/trackwise/internal/rbac"
)

type createProjectRequest struct {
	Name string `json:"name"`
}

type memberResponse struct {
	UserID    int64    `json:"userId"`
	Active    bool     `json:"active"`
	Roles     []string `json:"roles"`
	CreatedAt string   `json:"createdAt"`
}

type projectResponse struct {
	ID        int64            `json:"id"`
	Name      string           `json:"name"`
	OwnerID   int64            `json:"ownerId"`
	CreatedAt string           `json:"createdAt"`
	Members   []memberResponse `json:"members,omitempty"`
}

func toMemberResponse(m project.Member) memberResponse {
	roles := m.Roles
	if roles == nil {
		roles = []string{}
	}
	return memberResponse{
		UserID:    m.UserID,
		Active:    m.Active,
		Roles:     roles,
		CreatedAt: formatTime(m.CreatedAt),
	}
}

func toProjectResponse(p *project.Project, withMembers bool) projectResponse {
	resp := projectResponse{
		ID:        p.ID,
		Name:      p.Name,
		OwnerID:   p.OwnerID,
		CreatedAt: formatTime(p.CreatedAt),
	}
	if withMembers {
		resp.Members = make([]memberResponse, 0, len(p.Members))
		for _, m := range p.Members {
			resp.Members = append(resp.Members, toMemberResponse(m))
		}
	}
	return resp
}

// ProjectHandler handles project endpoints.
type ProjectHandler struct {
	projects  project.Repository
	catalog   *rbac.Catalog
	publisher notify.Publisher
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(projects project.Repository, catalog *rbac.Catalog, publisher notify.Publisher) *ProjectHandler {
	return &ProjectHandler{
		projects:  projects,
		catalog:   catalog,
		publisher: publisher,
	}
}

// Create handles POST /projects. The caller becomes the owner.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	caller := gate.IdentityFrom(r.Context())

	var req createProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if validationFailed(w, r, validation.ValidateCreateProjectRequest(validation.CreateProjectRequest{Name: req.Name})) {
		return
	}

	p := &project.Project{
		Name:    strings.TrimSpace(req.Name),
		OwnerID: caller.UserID,
	}
	if err := h.projects.Create(r.Context(), p, h.catalog.DefaultRoles()); err != nil {
		slog.Error("failed to create project", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create project", requestID)
		return
	}

	slog.Info("project created", "id", p.ID, "ownerId", p.OwnerID, "requestId", requestID)
	response.Success(w, http.StatusCreated, toProjectResponse(p, true), requestID)
}

// List handles GET /projects.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	caller := gate.IdentityFrom(r.Context())

	projects, err := h.projects.ListForUser(r.Context(), caller.UserID)
	if err != nil {
		slog.Error("failed to list projects", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list projects", requestID)
		return
	}

	items := make([]projectResponse, 0, len(projects))
	for i := range projects {
		items = append(items, toProjectResponse(&projects[i], false))
	}

	response.Success(w, http.StatusOK, items, requestID)
}

// Get handles GET /projects/{projectId}. The project was loaded by the guard.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	p := gate.ProjectFrom(r.Context())
	response.Success(w, http.StatusOK, toProjectResponse(p, true), middleware.GetRequestID(r.Context()))
}

// Delete handles DELETE /projects/{projectId}.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	p := gate.ProjectFrom(r.Context())

	if err := h.projects.Delete(r.Context(), p.ID); err != nil {
		if errors.Is(err, project.ErrProjectNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Project not found", requestID)
			return
		}
		slog.Error("failed to delete project", "error", err, "id", p.ID, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete project", requestID)
		return
	}

	notify.ProjectChanged(r.Context(), h.publisher, notify.TopicProjectDeleted, notify.ProjectEvent{
		ProjectID: p.ID,
		ActorID:   gate.IdentityFrom(r.Context()).UserID,
	})

	slog.Info("project deleted", "id", p.ID, "requestId", requestID)
	response.NoContent(w)
}
