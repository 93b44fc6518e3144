// Package handlers contains the HTTP handler implementations for the
// HydraChat API. Each handler defines the service contracts it needs locally
// and receives implementations through its constructor.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"hydrachat/internal/auth"
	"hydrachat/internal/core"
	"hydrachat/internal/types"
)

// AuthService is the account and session contract the auth handler needs.
type AuthService interface {
	Signup(ctx context.Context, email, password string) (*auth.Token, error)
	Login(ctx context.Context, email, password string) (*auth.Token, error)
	Logout(ctx context.Context, token string) error
}

// SignupRequest is the request body for POST /v1/auth/signup.
type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginRequest is the request body for POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse carries a freshly issued session token.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthHandler handles signup, login, and logout.
type AuthHandler struct {
	service   AuthService
	validator *core.Validator
	logger    *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc AuthService, v *core.Validator, l *slog.Logger) *AuthHandler {
	if l == nil {
		l = slog.Default()
	}
	return &AuthHandler{service: svc, validator: v, logger: l}
}

// RegisterRoutes mounts the auth endpoints. Signup and login are public
// paths; logout requires a valid session.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/signup", h.Signup)
	r.Post("/auth/login", h.Login)
	r.Post("/auth/logout", h.Logout)
}

// Signup handles POST /v1/auth/signup. A successful signup also logs the user
// in; the response carries a live session token.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	token, err := h.service.Signup(r.Context(), req.Email, req.Password)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: TokenResponse{
		Token:     token.Value,
		ExpiresAt: token.ExpiresAt,
	}})
}

// Login handles POST /v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: TokenResponse{
		Token:     token.Value,
		ExpiresAt: token.ExpiresAt,
	}})
}

// Logout handles POST /v1/auth/logout. The session to revoke is the one that
// authenticated this request.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	if err := h.service.Logout(r.Context(), token); err != nil {
		core.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
