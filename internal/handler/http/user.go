package http

import (
	"log/slog"
	"net/http"

	"github.com/vidtube/backend/internal/service"
	apperrors "github.com/vidtube/backend/pkg/errors"
	"github.com/vidtube/backend/pkg/httputil"
	"github.com/vidtube/backend/pkg/middleware"
)

// UserHandler handles the account endpoints of the signed-in user.
type UserHandler struct {
	users          *service.UserService
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewUserHandler creates a new user HTTP handler.
func NewUserHandler(users *service.UserService, maxUploadBytes int64, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, maxUploadBytes: maxUploadBytes, logger: logger}
}

// UpdateAccountRequest is the JSON body for updating account details.
type UpdateAccountRequest struct {
	FullName *string `json:"fullName" validate:"omitempty,max=100"`
	Email    *string `json:"email" validate:"omitempty,max=254"`
}

// GetCurrentUser handles GET /api/v1/users/current-user
func (h *UserHandler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if user == nil {
		httputil.WriteError(w, r, apperrors.Unauthorized("unauthorized request"), h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, user, "Current user fetched successfully")
}

// UpdateAccount handles PATCH /api/v1/users/update-account
func (h *UserHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req UpdateAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	user, err := h.users.UpdateAccount(r.Context(), middleware.UserIDFromContext(r.Context()), service.UpdateAccountInput{
		FullName: req.FullName,
		Email:    req.Email,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, user, "Account details updated successfully")
}

// UpdateAvatar handles PATCH /api/v1/users/avatar
func (h *UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	form, err := parseMultipart(w, r, h.maxUploadBytes)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	defer func() { _ = form.RemoveAll() }()

	user, err := h.users.UpdateAvatar(r.Context(), middleware.UserIDFromContext(r.Context()), formFile(form, "avatar"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, user, "Avatar updated successfully")
}

// UpdateCoverImage handles PATCH /api/v1/users/cover-image
func (h *UserHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	form, err := parseMultipart(w, r, h.maxUploadBytes)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	defer func() { _ = form.RemoveAll() }()

	user, err := h.users.UpdateCoverImage(r.Context(), middleware.UserIDFromContext(r.Context()), formFile(form, "coverImage"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, user, "Cover image updated successfully")
}
