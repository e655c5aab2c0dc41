package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vidtube/backend/internal/service"
	"github.com/vidtube/backend/pkg/health"
	"github.com/vidtube/backend/pkg/middleware"
)

// Services are the application services behind the HTTP API.
type Services struct {
	Users    *service.UserService
	Tokens   *service.TokenService
	Channels *service.ChannelService
}

// RouterConfig holds the transport settings of the API.
type RouterConfig struct {
	ServiceName       string
	CORS              middleware.CORSConfig
	CookieSecure      bool
	MaxUploadBytes    int64
	PprofAllowedCIDRs []string

	// MediaHandler, when set, serves locally hosted uploads under /media/.
	MediaHandler http.Handler

	// RateLimiter guards the unauthenticated auth endpoints. Nil disables it.
	RateLimiter *middleware.RateLimiter
}

// NewRouter creates a chi router with all vidtube routes registered.
func NewRouter(svc Services, healthHandler *health.Handler, cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.CORS(cfg.CORS))

	// Operational endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())
	middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)
	if cfg.MediaHandler != nil {
		r.Method(http.MethodGet, "/media/*", cfg.MediaHandler)
	}

	cookies := CookieConfig{
		Secure:        cfg.CookieSecure,
		AccessMaxAge:  svc.Tokens.AccessExpiry(),
		RefreshMaxAge: svc.Tokens.RefreshExpiry(),
	}
	authHandler := NewAuthHandler(svc.Users, svc.Tokens, cookies, cfg.MaxUploadBytes, logger)
	userHandler := NewUserHandler(svc.Users, cfg.MaxUploadBytes, logger)
	channelHandler := NewChannelHandler(svc.Channels, logger)

	limit := func(resource string) func(http.Handler) http.Handler {
		if cfg.RateLimiter == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return cfg.RateLimiter.Middleware(resource)
	}

	r.Route("/api/v1/users", func(r chi.Router) {
		r.Use(middleware.NoStore)

		// Public
		r.With(limit("register")).Post("/register", authHandler.Register)
		r.With(limit("login"), ContentTypeJSON).Post("/login", authHandler.Login)
		r.With(limit("refresh"), ContentTypeJSON).Post("/refresh-token", authHandler.RefreshToken)

		// Authenticated
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(Authenticate(svc.Tokens)))

			r.Post("/logout", authHandler.Logout)
			r.With(ContentTypeJSON).Post("/change-password", authHandler.ChangePassword)

			r.Get("/current-user", userHandler.GetCurrentUser)
			r.With(ContentTypeJSON).Patch("/update-account", userHandler.UpdateAccount)
			r.Patch("/avatar", userHandler.UpdateAvatar)
			r.Patch("/cover-image", userHandler.UpdateCoverImage)

			r.Get("/c/{username}", channelHandler.GetChannelProfile)
			r.Post("/c/{username}/subscribe", channelHandler.Subscribe)
			r.Get("/history", channelHandler.GetWatchHistory)
		})
	})

	return r
}
