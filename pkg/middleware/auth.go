package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	apperrors "github.com/vidtube/backend/pkg/errors"
	"github.com/vidtube/backend/pkg/httputil"
	"github.com/vidtube/backend/pkg/logger"
)

type contextKeyType string

const claimsKey contextKeyType = "claims"

// AccessTokenCookie is the cookie consulted before the Authorization header.
const AccessTokenCookie = "accessToken"

// Claims is the identity the auth middleware attaches to the request.
// Principal carries the resolved account (already stripped of secrets).
type Claims struct {
	UserID    string
	Email     string
	Username  string
	FullName  string
	Principal any
}

// TokenValidator validates an access token and returns the resolved identity.
// Errors that are not *apperrors.AppError are reported as 401.
type TokenValidator func(ctx context.Context, token string) (*Claims, error)

// Auth middleware resolves the caller from the accessToken cookie or, failing
// that, an "Authorization: Bearer" header. Requests without a valid token get
// a 401 envelope and never reach next.
func Auth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				authFailuresTotal.WithLabelValues("missing").Inc()
				httputil.WriteError(w, r, apperrors.Unauthorized("unauthorized request"), nil)
				return
			}

			claims, err := validate(r.Context(), token)
			if err != nil {
				authFailuresTotal.WithLabelValues("rejected").Inc()
				var appErr *apperrors.AppError
				if !errors.As(err, &appErr) {
					err = apperrors.Unauthorized("invalid access token")
				}
				httputil.WriteError(w, r, err, nil)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = logger.WithUserID(ctx, claims.UserID)
			recordSpanUser(ctx, claims.UserID)
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("user_id", claims.UserID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenFromRequest returns the access token from the accessToken cookie, or
// from a Bearer Authorization header when the cookie is absent or empty.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}

	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// ClaimsFromContext returns the identity set by Auth, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	if c, ok := ctx.Value(claimsKey).(*Claims); ok {
		return c
	}
	return nil
}

// UserIDFromContext extracts the authenticated user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if c := ClaimsFromContext(ctx); c != nil {
		return c.UserID
	}
	return ""
}

// WithClaims returns a copy of ctx carrying c. Intended for tests and
// internal callers that authenticate by other means.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}
