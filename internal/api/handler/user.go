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
	"github.com/trackwise/trackwise/internal/auth"
	"github.com/trackwise/trackwise/internal/rbac"
)

type createUserRequest struct {
	Email            string   `json:"email"`
	Password         string   `json:"password"`
	TwoFactorEnabled bool     `json:"twoFactorEnabled"`
	Roles            []string `json:"roles"`
}

type userResponse struct {
	ID               int64   `json:"id"`
	Email            string  `json:"email"`
	TwoFactorEnabled bool    `json:"twoFactorEnabled"`
	APIKeyPrefix     string  `json:"apiKeyPrefix"`
	CreatedAt        string  `json:"createdAt"`
	RevokedAt        *string `json:"revokedAt,omitempty"`
}

type userWithKeyResponse struct {
	userResponse
	Roles  []string `json:"roles"`
	APIKey string   `json:"apiKey"`
}

type apiKeyResponse struct {
	APIKey string `json:"apiKey"`
}

func toUserResponse(u *auth.User) userResponse {
	resp := userResponse{
		ID:               u.ID,
		Email:            u.Email,
		TwoFactorEnabled: u.TwoFactorEnabled,
		APIKeyPrefix:     u.APIKeyPrefix,
		CreatedAt:        formatTime(u.CreatedAt),
	}
	if u.RevokedAt != nil {
		revoked := formatTime(*u.RevokedAt)
		resp.RevokedAt = &revoked
	}
	return resp
}

// UserHandler handles user administration endpoints.
type UserHandler struct {
	authService *auth.Service
	roles       rbac.Store
	catalog     *rbac.Catalog
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(authService *auth.Service, roles rbac.Store, catalog *rbac.Catalog) *UserHandler {
	return &UserHandler{
		authService: authService,
		roles:       roles,
		catalog:     catalog,
	}
}

// Create handles POST /users. The raw API key is only returned here.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	fieldErrors := validation.ValidateCreateUserRequest(validation.CreateUserRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	fieldErrors = append(fieldErrors, validation.ValidateRoles(req.Roles, h.catalog)...)
	if validationFailed(w, r, fieldErrors) {
		return
	}

	u, rawKey, err := h.authService.CreateUser(r.Context(), strings.TrimSpace(req.Email), req.Password, req.TwoFactorEnabled)
	if err != nil {
		if errors.Is(err, auth.ErrDuplicateEmail) {
			response.Err(w, http.StatusConflict, "DUPLICATE_EMAIL", "A user with this email already exists", requestID)
			return
		}
		slog.Error("failed to create user", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create user", requestID)
		return
	}

	for _, name := range req.Roles {
		role, err := h.roles.GetRoleByName(r.Context(), name)
		if err == nil {
			err = h.roles.AssignGlobalRole(r.Context(), u.ID, role.ID)
		}
		if err != nil {
			slog.Error("failed to assign role", "error", err, "role", name, "userId", u.ID, "requestId", requestID)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to assign roles", requestID)
			return
		}
	}

	roles := req.Roles
	if roles == nil {
		roles = []string{}
	}
	response.Success(w, http.StatusCreated, userWithKeyResponse{
		userResponse: toUserResponse(u),
		Roles:        roles,
		APIKey:       rawKey,
	}, requestID)
}

// List handles GET /users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	users, err := h.authService.Users().List(r.Context())
	if err != nil {
		slog.Error("failed to list users", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list users", requestID)
		return
	}

	items := make([]userResponse, 0, len(users))
	for i := range users {
		items = append(items, toUserResponse(&users[i]))
	}

	response.Success(w, http.StatusOK, items, requestID)
}

// Revoke handles DELETE /users/{id}. Revocation is idempotent and also
// invalidates outstanding bearer tokens.
func (h *UserHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if id == gate.IdentityFrom(r.Context()).UserID {
		response.Err(w, http.StatusConflict, "SELF_REVOKE", "Cannot revoke your own user", requestID)
		return
	}

	if err := h.authService.Users().Revoke(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, auth.ErrUserNotFound):
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "User not found", requestID)
		case errors.Is(err, auth.ErrUserRevoked):
			response.NoContent(w)
		default:
			slog.Error("failed to revoke user", "error", err, "id", id, "requestId", requestID)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to revoke user", requestID)
		}
		return
	}

	slog.Info("user revoked", "id", id, "requestId", requestID)
	response.NoContent(w)
}

// RotateKey handles POST /users/{id}/api-key.
func (h *UserHandler) RotateKey(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	rawKey, err := h.authService.RotateKey(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "User not found", requestID)
			return
		}
		slog.Error("failed to rotate api key", "error", err, "id", id, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to rotate API key", requestID)
		return
	}

	response.Success(w, http.StatusOK, apiKeyResponse{APIKey: rawKey}, requestID)
}
