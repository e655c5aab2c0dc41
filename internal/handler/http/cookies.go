package http

import (
	"net/http"
	"time"

	"github.com/vidtube/backend/internal/domain"
	"github.com/vidtube/backend/pkg/middleware"
)

// RefreshTokenCookie carries the refresh token. The access token cookie name
// is shared with the auth middleware.
const RefreshTokenCookie = "refreshToken"

// CookieConfig controls the session cookies.
type CookieConfig struct {
	// Secure should only be disabled for local plain-HTTP development.
	Secure        bool
	AccessMaxAge  time.Duration
	RefreshMaxAge time.Duration
}

func (c CookieConfig) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (c CookieConfig) setTokens(w http.ResponseWriter, pair *domain.TokenPair) {
	http.SetCookie(w, c.cookie(middleware.AccessTokenCookie, pair.AccessToken, c.AccessMaxAge))
	http.SetCookie(w, c.cookie(RefreshTokenCookie, pair.RefreshToken, c.RefreshMaxAge))
}

func (c CookieConfig) clearTokens(w http.ResponseWriter) {
	for _, name := range []string{middleware.AccessTokenCookie, RefreshTokenCookie} {
		ck := c.cookie(name, "", 0)
		ck.MaxAge = -1
		http.SetCookie(w, ck)
	}
}
