package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/trackwise/trackwise/internal/api/gate"
	"github.com/trackwise/trackwise/internal/api/middleware"
	"github.com/trackwise/trackwise/internal/api/response"
	"github.com/trackwise/trackwise/internal/api/validation"
	"github.com/trackwise/trackwise/internal/auth"
	"github.com/trackwise/trackwise/internal/rbac"
	"github.com/trackwise/trackwise/internal/session"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expiresAt"`
	User      userResponse `json:"user"`
}

type meResponse struct {
	UserID              int64    `json:"userId"`
	Email               string   `json:"email"`
	TwoFactorEnabled    bool     `json:"twoFactorEnabled"`
	SecondFactorPending bool     `json:"secondFactorPending"`
	Source              string   `json:"source"`
	Roles               []string `json:"roles"`
}

// AuthHandler handles login, logout and the current identity.
type AuthHandler struct {
	authService *auth.Service
	tokens      *auth.TokenIssuer
	sessions    *session.Manager
	roles       rbac.Store
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *auth.Service, tokens *auth.TokenIssuer, sessions *session.Manager, roles rbac.Store) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		tokens:      tokens,
		sessions:    sessions,
		roles:       roles,
	}
}

// Login handles POST /auth/login. A successful login starts a server-side
// session and also returns a bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if validationFailed(w, r, validation.ValidateLoginRequest(validation.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	})) {
		return
	}

	u, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidLogin) {
			response.Reject(w, http.StatusUnauthorized, gate.MsgAuthenticationFailed)
			return
		}
		slog.Error("failed to log in", "error", err, "requestId", requestID)
		response.Reject(w, http.StatusInternalServerError, gate.MsgInternal)
		return
	}

	token, expiresAt, err := h.tokens.Issue(u, false)
	if err != nil {
		slog.Error("failed to issue token", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to log in", requestID)
		return
	}

	if err := h.sessions.Start(r.Context(), w, auth.IdentityOf(u, auth.SourceSession)); err != nil {
		slog.Error("failed to start session", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to log in", requestID)
		return
	}

	slog.Info("user logged in", "userId", u.ID, "requestId", requestID)
	response.Success(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: formatTime(expiresAt),
		User:      toUserResponse(u),
	}, requestID)
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.End(r.Context(), w); err != nil {
		requestID := middleware.GetRequestID(r.Context())
		slog.Error("failed to end session", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to log out", requestID)
		return
	}
	response.NoContent(w)
}

// Me handles GET /me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	identity := gate.IdentityFrom(r.Context())

	roles, err := h.roles.ListRolesForUser(r.Context(), identity.UserID, rbac.NoProject)
	if err != nil {
		slog.Error("failed to list roles", "error", err, "userId", identity.UserID, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load identity", requestID)
		return
	}

	response.Success(w, http.StatusOK, meResponse{
		UserID:              identity.UserID,
		Email:               identity.Email,
		TwoFactorEnabled:    identity.TwoFactorEnabled,
		SecondFactorPending: identity.SecondFactorPending,
		Source:              identity.Source,
		Roles:               roles,
	}, requestID)
}
