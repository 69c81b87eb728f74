package handler

import (
	"log/slog"
	"net/http"

	"github.com/trackwise/trackwise/internal/api/middleware"
	"github.com/trackwise/trackwise/internal/api/response"
	"github.com/trackwise/trackwise/internal/rbac"
)

// RoleHandler exposes the role catalog.
type RoleHandler struct {
	roles rbac.Store
}

// NewRoleHandler creates a new RoleHandler.
func NewRoleHandler(roles rbac.Store) *RoleHandler {
	return &RoleHandler{roles: roles}
}

// List handles GET /roles.
func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	roles, err := h.roles.ListRoles(r.Context())
	if err != nil {
		slog.Error("failed to list roles", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list roles", requestID)
		return
	}
	if roles == nil {
		roles = []rbac.Role{}
	}

	response.Success(w, http.StatusOK, roles, requestID)
}

// Permissions handles GET /roles/{roleId}/permissions.
func (h *RoleHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	roleID, ok := pathID(w, r, "roleId")
	if !ok {
		return
	}

	roles, err := h.roles.ListRoles(r.Context())
	if err != nil {
		slog.Error("failed to list roles", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list permissions", requestID)
		return
	}
	found := false
	for _, role := range roles {
		if role.ID == roleID {
			found = true
			break
		}
	}
	if !found {
		response.Err(w, http.StatusNotFound, "NOT_FOUND", "Role not found", requestID)
		return
	}

	perms, err := h.roles.ListPermissions(r.Context(), roleID)
	if err != nil {
		slog.Error("failed to list permissions", "error", err, "roleId", roleID, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list permissions", requestID)
		return
	}
	if perms == nil {
		perms = []rbac.Permission{}
	}

	response.Success(w, http.StatusOK, perms, requestID)
}
