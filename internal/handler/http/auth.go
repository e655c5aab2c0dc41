package http

import (
	"log/slog"
	"net/http"

	"github.com/vidtube/backend/internal/domain"
	"github.com/vidtube/backend/internal/service"
	apperrors "github.com/vidtube/backend/pkg/errors"
	"github.com/vidtube/backend/pkg/httputil"
	"github.com/vidtube/backend/pkg/middleware"
)

// AuthHandler handles registration and the session lifecycle.
type AuthHandler struct {
	users          *service.UserService
	tokens         *service.TokenService
	cookies        CookieConfig
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(users *service.UserService, tokens *service.TokenService, cookies CookieConfig, maxUploadBytes int64, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		users:          users,
		tokens:         tokens,
		cookies:        cookies,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// --- Request DTOs ---

// LoginRequest is the JSON body for login. Either username or email is needed.
type LoginRequest struct {
	Username string `json:"username" validate:"omitempty,max=100"`
	Email    string `json:"email" validate:"omitempty,max=254"`
	Password string `json:"password"`
}

// RefreshTokenRequest is the optional JSON body for token refresh when the
// refresh token cookie is absent.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ChangePasswordRequest is the JSON body for a password change.
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// --- Response types ---

// LoginResponse carries the user and both tokens for clients that cannot
// read cookies.
type LoginResponse struct {
	User         *domain.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

// --- Handlers ---

// Register handles POST /api/v1/users/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	form, err := parseMultipart(w, r, h.maxUploadBytes)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	defer func() { _ = form.RemoveAll() }()

	user, err := h.users.Register(r.Context(), service.RegisterInput{
		Username:   formValue(form, "username"),
		Email:      formValue(form, "email"),
		FullName:   formValue(form, "fullName"),
		Password:   formValue(form, "password"),
		Avatar:     formFile(form, "avatar"),
		CoverImage: formFile(form, "coverImage"),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusCreated, user, "User registered successfully")
}

// Login handles POST /api/v1/users/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	user, pair, err := h.users.Login(r.Context(), service.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.cookies.setTokens(w, pair)
	httputil.WriteSuccess(w, http.StatusOK, LoginResponse{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, "User logged in successfully")
}

// RefreshToken handles POST /api/v1/users/refresh-token
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var token string
	if c, err := r.Cookie(RefreshTokenCookie); err == nil && c.Value != "" {
		token = c.Value
	} else {
		var req RefreshTokenRequest
		if err := decodeJSON(w, r, &req); err != nil {
			httputil.WriteValidationError(w, r, err)
			return
		}
		token = req.RefreshToken
	}

	pair, err := h.tokens.RotateRefreshToken(r.Context(), token)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.cookies.setTokens(w, pair)
	httputil.WriteSuccess(w, http.StatusOK, pair, "Access token refreshed")
}

// Logout handles POST /api/v1/users/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Logout(r.Context(), middleware.UserIDFromContext(r.Context())); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.cookies.clearTokens(w)
	httputil.WriteSuccess(w, http.StatusOK, struct{}{}, "User logged out")
}

// ChangePassword handles POST /api/v1/users/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		httputil.WriteError(w, r, apperrors.Unauthorized("unauthorized request"), h.logger)
		return
	}

	if err := h.users.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, struct{}{}, "Password changed successfully")
}
