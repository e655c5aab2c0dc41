package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vidtube/backend/internal/service"
	"github.com/vidtube/backend/pkg/httputil"
	"github.com/vidtube/backend/pkg/middleware"
)

// ChannelHandler serves channel profiles, subscriptions and watch history.
type ChannelHandler struct {
	channels *service.ChannelService
	logger   *slog.Logger
}

// NewChannelHandler creates a new channel HTTP handler.
func NewChannelHandler(channels *service.ChannelService, logger *slog.Logger) *ChannelHandler {
	return &ChannelHandler{channels: channels, logger: logger}
}

// GetChannelProfile handles GET /api/v1/users/c/{username}
func (h *ChannelHandler) GetChannelProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.channels.GetChannelProfile(r.Context(),
		middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "username"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, profile, "User channel fetched successfully")
}

// Subscribe handles POST /api/v1/users/c/{username}/subscribe
func (h *ChannelHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	sub, err := h.channels.Subscribe(r.Context(),
		middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "username"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusCreated, sub, "Subscribed successfully")
}

// GetWatchHistory handles GET /api/v1/users/history
func (h *ChannelHandler) GetWatchHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.channels.GetWatchHistory(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, history, "Watch history fetched successfully")
}
