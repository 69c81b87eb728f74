package handler

import (
	"log/slog"
	"net/http"

	"github.com/trackwise/trackwise/internal/api/gate"
	"github.com/trackwise/trackwise/internal/api/middleware"
	"github.com/trackwise/trackwise/internal/api/response"
)

type grantsResponse struct {
	ProjectID    int64    `json:"projectId"`
	Owner        bool     `json:"owner"`
	Roles        []string `json:"roles"`
	Capabilities []string `json:"capabilities"`
}

// GrantsHandler reports what the caller holds in the scoped project.
type GrantsHandler struct {
	grants gate.GrantLoader
}

// NewGrantsHandler creates a new GrantsHandler.
func NewGrantsHandler(grants gate.GrantLoader) *GrantsHandler {
	return &GrantsHandler{grants: grants}
}

// Get handles GET /projects/{projectId}/grants.
func (h *GrantsHandler) Get(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	caller := gate.IdentityFrom(r.Context())
	p := gate.ProjectFrom(r.Context())

	g := gate.GrantsFrom(r.Context())
	if g == nil {
		var err error
		g, err = h.grants.Grants(r.Context(), caller.UserID, p.ID)
		if err != nil {
			slog.Error("failed to load grants", "error", err, "projectId", p.ID, "requestId", requestID)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load grants", requestID)
			return
		}
	}

	resp := grantsResponse{
		ProjectID:    p.ID,
		Owner:        p.IsOwner(caller.UserID),
		Roles:        g.Roles,
		Capabilities: make([]string, 0, len(g.Capabilities)),
	}
	if resp.Roles == nil {
		resp.Roles = []string{}
	}
	for _, c := range g.Capabilities {
		resp.Capabilities = append(resp.Capabilities, c.String())
	}

	response.Success(w, http.StatusOK, resp, requestID)
}
