package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/domain"
	"github.com/vidtube/backend/internal/repository"
	apperrors "github.com/vidtube/backend/pkg/errors"
)

const (
	msgTokenGeneration     = "something went wrong while generating tokens"
	msgUnauthorizedRequest = "unauthorized request"
	msgInvalidAccessToken  = "invalid access token"
	msgInvalidRefreshToken = "invalid refresh token"
	msgRefreshTokenUsed    = "refresh token is expired or used"
)

// TokenService issues, verifies and rotates access/refresh token pairs.
// The refresh token of the latest issuance is the only one stored per user.
type TokenService struct {
	users  repository.UserRepository
	jwt    *auth.JWTManager
	logger *slog.Logger
}

// NewTokenService creates a new token service.
func NewTokenService(users repository.UserRepository, jwt *auth.JWTManager, logger *slog.Logger) *TokenService {
	return &TokenService{users: users, jwt: jwt, logger: logger}
}

// AccessExpiry returns the access token lifetime.
func (s *TokenService) AccessExpiry() time.Duration { return s.jwt.AccessExpiry() }

// RefreshExpiry returns the refresh token lifetime.
func (s *TokenService) RefreshExpiry() time.Duration { return s.jwt.RefreshExpiry() }

// IssueTokenPair signs a new pair for userID and stores the refresh token on
// the user, replacing any previous one. Every failure is reported as the same
// 500 without its cause.
func (s *TokenService) IssueTokenPair(ctx context.Context, userID string) (*domain.TokenPair, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, s.generationFailed(ctx, userID, fmt.Errorf("load user: %w", err))
	}

	pair, err := s.sign(user)
	if err != nil {
		return nil, s.generationFailed(ctx, userID, err)
	}

	if err := s.users.SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return nil, s.generationFailed(ctx, userID, fmt.Errorf("store refresh token: %w", err))
	}
	return pair, nil
}

// VerifyAccessToken resolves an access token to the sanitized user it names.
func (s *TokenService) VerifyAccessToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, apperrors.Unauthorized(msgUnauthorizedRequest)
	}

	claims, err := s.jwt.ValidateAccessToken(token)
	if err != nil {
		return nil, apperrors.Unauthorized(msgInvalidAccessToken)
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized(msgInvalidAccessToken)
		}
		return nil, apperrors.Internal(fmt.Errorf("load user for access token: %w", err))
	}
	return user.Sanitized(), nil
}

// RotateRefreshToken exchanges the stored refresh token for a new pair. The
// presented token must equal the stored one, and the replacement is written
// with a compare-and-swap, so a given token rotates at most once.
func (s *TokenService) RotateRefreshToken(ctx context.Context, token string) (*domain.TokenPair, error) {
	if token == "" {
		return nil, apperrors.Unauthorized(msgUnauthorizedRequest)
	}

	claims, err := s.jwt.ValidateRefreshToken(token)
	if err != nil {
		return nil, apperrors.Unauthorized(msgInvalidRefreshToken)
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized(msgInvalidRefreshToken)
		}
		return nil, apperrors.Internal(fmt.Errorf("load user for refresh: %w", err))
	}

	if subtle.ConstantTimeCompare([]byte(token), []byte(user.RefreshToken)) != 1 {
		s.logger.WarnContext(ctx, "refresh token mismatch",
			slog.String("user_id", user.ID),
		)
		return nil, apperrors.Unauthorized(msgRefreshTokenUsed)
	}

	pair, err := s.sign(user)
	if err != nil {
		return nil, s.generationFailed(ctx, user.ID, err)
	}

	swapped, err := s.users.SwapRefreshToken(ctx, user.ID, token, pair.RefreshToken)
	if err != nil {
		return nil, s.generationFailed(ctx, user.ID, fmt.Errorf("swap refresh token: %w", err))
	}
	if !swapped {
		s.logger.WarnContext(ctx, "refresh token rotated concurrently",
			slog.String("user_id", user.ID),
		)
		return nil, apperrors.Unauthorized(msgRefreshTokenUsed)
	}

	s.logger.InfoContext(ctx, "tokens refreshed",
		slog.String("user_id", user.ID),
	)
	return pair, nil
}

// RevokeRefreshToken clears the stored refresh token of userID.
func (s *TokenService) RevokeRefreshToken(ctx context.Context, userID string) error {
	if err := s.users.UnsetRefreshToken(ctx, userID); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (s *TokenService) sign(user *domain.User) (*domain.TokenPair, error) {
	access, err := s.jwt.GenerateAccessToken(user.ID, user.Email, user.Username, user.FullName)
	if err != nil {
		return nil, err
	}
	refresh, err := s.jwt.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *TokenService) generationFailed(ctx context.Context, userID string, cause error) error {
	s.logger.ErrorContext(ctx, "token generation failed",
		slog.String("user_id", userID),
		slog.String("error", cause.Error()),
	)
	return apperrors.InternalMessage(msgTokenGeneration, cause)
}
