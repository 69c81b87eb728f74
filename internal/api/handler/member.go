package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/trackwise/trackwise/internal/api/gate"
	"github.com/trackwise/trackwise/internal/api/middleware"
	"github.com/trackwise/trackwise/internal/api/response"
	"github.com/trackwise/trackwise/internal/api/validation"
	"github.com/trackwise/trackwise/internal/notify"
	"github.com/trackwise/trackwise/internal/project"
	"github.com/trackwise/trackwise/internal/rbac"
)

type addMemberRequest struct {
	UserID int64    `json:"userId"`
	Roles  []string `json:"roles"`
}

type setRolesRequest struct {
	Roles []string `json:"roles"`
}

type setActiveRequest struct {
	Active *bool `json:"active"`
}

// MemberHandler manages membership rows of the scoped project.
type MemberHandler struct {
	projects  project.Repository
	catalog   *rbac.Catalog
	publisher notify.Publisher
}

// NewMemberHandler creates a new MemberHandler.
func NewMemberHandler(projects project.Repository, catalog *rbac.Catalog, publisher notify.Publisher) *MemberHandler {
	return &MemberHandler{
		projects:  projects,
		catalog:   catalog,
		publisher: publisher,
	}
}

// Add handles POST /projects/{projectId}/members. Without roles in the body
// the default member roles are assigned.
func (h *MemberHandler) Add(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	p := gate.ProjectFrom(r.Context())

	var req addMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if validationFailed(w, r, validation.ValidateAddMemberRequest(validation.AddMemberRequest{
		UserID: req.UserID,
		Roles:  req.Roles,
	}, h.catalog)) {
		return
	}

	roles := req.Roles
	if len(roles) == 0 {
		roles = h.catalog.DefaultRoles()
	}
	if !h.mayGrant(w, r, p, roles) {
		return
	}

	m := &project.Member{UserID: req.UserID, Active: true, Roles: roles}
	if err := h.projects.AddMember(r.Context(), p.ID, m); err != nil {
		switch {
		case errors.Is(err, project.ErrDuplicateMember):
			response.Err(w, http.StatusConflict, "DUPLICATE_MEMBER", "User is already a member of this project", requestID)
		case errors.Is(err, project.ErrUnknownUser):
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "User not found", requestID)
		case errors.Is(err, project.ErrProjectNotFound):
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Project not found", requestID)
		default:
			slog.Error("failed to add member", "error", err, "projectId", p.ID, "requestId", requestID)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to add member", requestID)
		}
		return
	}

	notify.ProjectChanged(r.Context(), h.publisher, notify.TopicMemberAdded, notify.ProjectEvent{
		ProjectID: p.ID,
		UserID:    m.UserID,
		ActorID:   gate.IdentityFrom(r.Context()).UserID,
	})

	response.Success(w, http.StatusCreated, toMemberResponse(*m), requestID)
}

// SetRoles handles PUT /projects/{projectId}/members/{userId}/roles.
func (h *MemberHandler) SetRoles(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	p := gate.ProjectFrom(r.Context())

	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}

	var req setRolesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if validationFailed(w, r, validation.ValidateRoles(req.Roles, h.catalog)) {
		return
	}
	if !h.mayGrant(w, r, p, req.Roles) {
		return
	}

	if err := h.projects.SetMemberRoles(r.Context(), p.ID, userID, req.Roles); err != nil {
		h.updateFailed(w, err, "failed to set member roles", p.ID, requestID)
		return
	}

	roles := req.Roles
	if roles == nil {
		roles = []string{}
	}
	response.Success(w, http.StatusOK, setRolesRequest{Roles: roles}, requestID)
}

// SetActive handles PATCH /projects/{projectId}/members/{userId}.
func (h *MemberHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	p := gate.ProjectFrom(r.Context())

	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}

	var req setActiveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Active == nil {
		validationFailed(w, r, []validation.FieldError{{Field: "active", Message: "active is required"}})
		return
	}
	if !*req.Active && p.IsOwner(userID) {
		response.Err(w, http.StatusConflict, "OWNER_MEMBERSHIP", "The project owner cannot be deactivated", requestID)
		return
	}

	if err := h.projects.SetMemberActive(r.Context(), p.ID, userID, *req.Active); err != nil {
		h.updateFailed(w, err, "failed to set member active flag", p.ID, requestID)
		return
	}

	response.Success(w, http.StatusOK, req, requestID)
}

// Remove handles DELETE /projects/{projectId}/members/{userId}.
func (h *MemberHandler) Remove(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	p := gate.ProjectFrom(r.Context())

	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	if p.IsOwner(userID) {
		response.Err(w, http.StatusConflict, "OWNER_MEMBERSHIP", "The project owner cannot be removed", requestID)
		return
	}

	if err := h.projects.RemoveMember(r.Context(), p.ID, userID); err != nil {
		h.updateFailed(w, err, "failed to remove member", p.ID, requestID)
		return
	}

	notify.ProjectChanged(r.Context(), h.publisher, notify.TopicMemberRemoved, notify.ProjectEvent{
		ProjectID: p.ID,
		UserID:    userID,
		ActorID:   gate.IdentityFrom(r.Context()).UserID,
	})

	response.NoContent(w)
}

// mayGrant refuses role sets the caller could not hold themselves. The owner
// may hand out any role; everyone else only roles whose permissions their
// own grants cover.
func (h *MemberHandler) mayGrant(w http.ResponseWriter, r *http.Request, p *project.Project, roles []string) bool {
	caller := gate.IdentityFrom(r.Context())
	if caller != nil && p.IsOwner(caller.UserID) {
		return true
	}

	g := gate.GrantsFrom(r.Context())
	denied := h.catalog.NotGrantable(g, roles)
	if caller != nil && g != nil && len(denied) == 0 {
		return true
	}

	slog.Info("role assignment refused",
		"projectId", p.ID,
		"roles", denied,
		"requestId", middleware.GetRequestID(r.Context()),
	)
	response.Reject(w, http.StatusForbidden, gate.MsgForbidden)
	return false
}

func (h *MemberHandler) updateFailed(w http.ResponseWriter, err error, msg string, projectID int64, requestID string) {
	if errors.Is(err, project.ErrMemberNotFound) {
		response.Err(w, http.StatusNotFound, "NOT_FOUND", "Member not found", requestID)
		return
	}
	slog.Error(msg, "error", err, "projectId", projectID, "requestId", requestID)
	response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update member", requestID)
}
