package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/vidtube/backend/pkg/errors"
	"github.com/vidtube/backend/pkg/httputil"
)

// FailPolicy decides what happens when the limiter store is unreachable.
type FailPolicy int

const (
	// FailOpen lets the request through.
	FailOpen FailPolicy = iota
	// FailClosed answers 503.
	FailClosed
)

// RateLimiter is a fixed-window request counter backed by Redis.
type RateLimiter struct {
	rdb    redis.Cmdable
	limit  int
	window time.Duration
	policy FailPolicy
	logger *slog.Logger
}

// NewRateLimiter creates a limiter allowing limit requests per window.
func NewRateLimiter(rdb redis.Cmdable, limit int, window time.Duration, policy FailPolicy, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{rdb: rdb, limit: limit, window: window, policy: policy, logger: logger}
}

// Allow counts one hit for id against resource. It returns whether the hit is
// within the limit and how many hits remain in the current window.
func (rl *RateLimiter) Allow(ctx context.Context, resource, id string) (bool, int, error) {
	key := fmt.Sprintf("rl:%s:%s", resource, id)

	count64, err := rl.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if count64 == 1 {
		if err := rl.rdb.Expire(ctx, key, rl.window).Err(); err != nil {
			return false, 0, fmt.Errorf("rate limit %s: expire: %w", key, err)
		}
	}

	count := int(count64)
	remaining := rl.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= rl.limit, remaining, nil
}

// Middleware enforces the limit per client IP for the named resource.
func (rl *RateLimiter) Middleware(resource string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, remaining, err := rl.Allow(r.Context(), resource, "ip:"+clientIP(r))
			if err != nil {
				if rl.policy == FailClosed {
					rateLimitedTotal.WithLabelValues(resource, "unavailable").Inc()
					rl.logger.WarnContext(r.Context(), "rate limiter unavailable, rejecting",
						slog.String("resource", resource),
						slog.String("error", err.Error()),
					)
					httputil.WriteJSON(w, http.StatusServiceUnavailable, httputil.ErrorResponse{
						StatusCode: http.StatusServiceUnavailable,
						Message:    "rate limit unavailable",
						Errors:     []apperrors.FieldError{},
						Code:       "SERVICE_UNAVAILABLE",
					})
					return
				}
				rateLimitedTotal.WithLabelValues(resource, "fail_open").Inc()
				rl.logger.WarnContext(r.Context(), "rate limiter unavailable, allowing",
					slog.String("resource", resource),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !allowed {
				rateLimitedTotal.WithLabelValues(resource, "rejected").Inc()
				w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
				httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.ErrorResponse{
					StatusCode: http.StatusTooManyRequests,
					Message:    "rate limit exceeded",
					Errors:     []apperrors.FieldError{},
					Code:       "RATE_LIMITED",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
