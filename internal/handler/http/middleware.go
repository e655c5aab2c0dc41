package http

import (
	"context"
	"mime"
	"net/http"

	"github.com/vidtube/backend/internal/domain"
	"github.com/vidtube/backend/internal/service"
	apperrors "github.com/vidtube/backend/pkg/errors"
	"github.com/vidtube/backend/pkg/httputil"
	"github.com/vidtube/backend/pkg/middleware"
)

// Authenticate adapts the token service to the auth middleware. The resolved
// user, already sanitized, travels as the claims principal.
func Authenticate(tokens *service.TokenService) middleware.TokenValidator {
	return func(ctx context.Context, token string) (*middleware.Claims, error) {
		user, err := tokens.VerifyAccessToken(ctx, token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{
			UserID:    user.ID,
			Email:     user.Email,
			Username:  user.Username,
			FullName:  user.FullName,
			Principal: user,
		}, nil
	}
}

// currentUser returns the user resolved by the auth middleware.
func currentUser(r *http.Request) *domain.User {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		return nil
	}
	user, _ := claims.Principal.(*domain.User)
	return user
}

// ContentTypeJSON rejects requests that carry a body in anything but JSON.
// Bodiless requests pass, so the refresh token can come from a cookie alone.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength != 0 && r.Body != nil && r.Body != http.NoBody {
			mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil || mt != "application/json" {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.ErrorResponse{
					StatusCode: http.StatusUnsupportedMediaType,
					Message:    "Content-Type must be application/json",
					Errors:     []apperrors.FieldError{},
					Code:       "UNSUPPORTED_MEDIA_TYPE",
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
