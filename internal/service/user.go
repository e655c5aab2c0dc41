package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"strings"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/domain"
	"github.com/vidtube/backend/internal/event"
	"github.com/vidtube/backend/internal/media"
	"github.com/vidtube/backend/internal/repository"
	apperrors "github.com/vidtube/backend/pkg/errors"
)

// MediaUploader stages a multipart file and returns the public URL it was
// hosted under.
type MediaUploader interface {
	Upload(ctx context.Context, folder string, fh *multipart.FileHeader) (string, error)
}

// UserService implements registration, login and account management.
type UserService struct {
	users    repository.UserRepository
	tokens   *TokenService
	hasher   *auth.PasswordHasher
	media    MediaUploader
	producer event.Publisher
	logger   *slog.Logger
}

// NewUserService creates a new user service.
func NewUserService(
	users repository.UserRepository,
	tokens *TokenService,
	hasher *auth.PasswordHasher,
	media MediaUploader,
	producer event.Publisher,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:    users,
		tokens:   tokens,
		hasher:   hasher,
		media:    media,
		producer: producer,
		logger:   logger,
	}
}

// --- Input types ---

// RegisterInput holds the parameters for registering a new user.
type RegisterInput struct {
	Username   string
	Email      string
	FullName   string
	Password   string
	Avatar     *multipart.FileHeader
	CoverImage *multipart.FileHeader
}

// LoginInput holds the parameters for user login. Either Username or Email
// identifies the account.
type LoginInput struct {
	Username string
	Email    string
	Password string
}

// UpdateAccountInput holds the editable account details.
type UpdateAccountInput struct {
	FullName *string
	Email    *string
}

// --- Auth operations ---

// Register creates an account with an uploaded avatar and optional cover
// image. The returned user is sanitized.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	in.Username = domain.NormalizeIdentifier(in.Username)
	in.Email = domain.NormalizeIdentifier(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)

	if missing := missingFields(map[string]string{
		"username": in.Username,
		"email":    in.Email,
		"fullName": in.FullName,
		"password": strings.TrimSpace(in.Password),
	}); len(missing) > 0 {
		return nil, apperrors.InvalidInput("all fields are required").WithErrors(missing...)
	}

	existing, err := s.users.GetByUsernameOrEmail(ctx, in.Username, in.Email)
	switch {
	case err == nil:
		field, value := "username", in.Username
		if existing.Email == in.Email {
			field, value = "email", in.Email
		}
		return nil, apperrors.AlreadyExists("user", field, value)
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, fmt.Errorf("check existing user: %w", err)
	}

	if in.Avatar == nil {
		return nil, apperrors.InvalidInput("avatar file is required")
	}

	// Hashing can reject the password, so it runs before anything is uploaded.
	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	avatarURL, err := s.media.Upload(ctx, media.FolderAvatars, in.Avatar)
	if err != nil {
		s.logger.ErrorContext(ctx, "avatar upload failed",
			slog.String("username", in.Username),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.InvalidInput("avatar file is required")
	}

	var coverURL string
	if in.CoverImage != nil {
		coverURL, err = s.media.Upload(ctx, media.FolderCovers, in.CoverImage)
		if err != nil {
			s.logger.WarnContext(ctx, "cover image upload failed, continuing without",
				slog.String("username", in.Username),
				slog.String("error", err.Error()),
			)
			coverURL = ""
		}
	}

	user := &domain.User{
		Username:     in.Username,
		Email:        in.Email,
		FullName:     in.FullName,
		Avatar:       avatarURL,
		CoverImage:   coverURL,
		WatchHistory: []string{},
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.producer.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return user.Sanitized(), nil
}

// Login verifies credentials and issues a fresh token pair, which replaces
// any previously stored refresh token.
func (s *UserService) Login(ctx context.Context, in LoginInput) (*domain.User, *domain.TokenPair, error) {
	username := domain.NormalizeIdentifier(in.Username)
	email := domain.NormalizeIdentifier(in.Email)
	if username == "" && email == "" {
		return nil, nil, apperrors.InvalidInput("username or email is required")
	}
	if in.Password == "" {
		return nil, nil, apperrors.InvalidInput("password is required")
	}

	user, err := s.users.GetByUsernameOrEmail(ctx, username, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, apperrors.NotFoundMessage("user does not exist")
		}
		return nil, nil, fmt.Errorf("get user for login: %w", err)
	}

	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		return nil, nil, apperrors.Unauthorized("invalid user credentials")
	}

	tokens, err := s.tokens.IssueTokenPair(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
	)

	return user.Sanitized(), tokens, nil
}

// Logout revokes the stored refresh token.
func (s *UserService) Logout(ctx context.Context, userID string) error {
	if err := s.tokens.RevokeRefreshToken(ctx, userID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "user logged out",
		slog.String("user_id", userID),
	)
	return nil
}

// ChangePassword replaces the password after checking the old one. The stored
// refresh token is revoked, so every session must log in again.
func (s *UserService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if oldPassword == "" || strings.TrimSpace(newPassword) == "" {
		return apperrors.InvalidInput("old and new password are required")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user for password change: %w", err)
	}

	if !s.hasher.Verify(oldPassword, user.PasswordHash) {
		return apperrors.Unauthorized("invalid old password")
	}

	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}

	if _, err := s.users.Update(ctx, userID, domain.UserUpdate{PasswordHash: &hash}); err != nil {
		return fmt.Errorf("update user password: %w", err)
	}

	if err := s.tokens.RevokeRefreshToken(ctx, userID); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "password changed",
		slog.String("user_id", userID),
	)
	return nil
}

// --- Account operations ---

// GetUser returns the sanitized user.
func (s *UserService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", userID)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user.Sanitized(), nil
}

// UpdateAccount changes the full name and/or email.
func (s *UserService) UpdateAccount(ctx context.Context, userID string, in UpdateAccountInput) (*domain.User, error) {
	var upd domain.UserUpdate
	if in.FullName != nil {
		if name := strings.TrimSpace(*in.FullName); name != "" {
			upd.FullName = &name
		}
	}
	if in.Email != nil {
		if email := domain.NormalizeIdentifier(*in.Email); email != "" {
			upd.Email = &email
		}
	}
	if upd.IsEmpty() {
		return nil, apperrors.InvalidInput("fullName or email is required")
	}

	return s.update(ctx, userID, upd, "account details updated")
}

// UpdateAvatar uploads a new avatar and stores its URL.
func (s *UserService) UpdateAvatar(ctx context.Context, userID string, fh *multipart.FileHeader) (*domain.User, error) {
	if fh == nil {
		return nil, apperrors.InvalidInput("avatar file is missing")
	}

	url, err := s.media.Upload(ctx, media.FolderAvatars, fh)
	if err != nil {
		s.logger.ErrorContext(ctx, "avatar upload failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.InvalidInput("error while uploading avatar")
	}

	return s.update(ctx, userID, domain.UserUpdate{Avatar: &url}, "avatar updated")
}

// UpdateCoverImage uploads a new cover image and stores its URL.
func (s *UserService) UpdateCoverImage(ctx context.Context, userID string, fh *multipart.FileHeader) (*domain.User, error) {
	if fh == nil {
		return nil, apperrors.InvalidInput("cover image file is missing")
	}

	url, err := s.media.Upload(ctx, media.FolderCovers, fh)
	if err != nil {
		s.logger.ErrorContext(ctx, "cover image upload failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.InvalidInput("error while uploading cover image")
	}

	return s.update(ctx, userID, domain.UserUpdate{CoverImage: &url}, "cover image updated")
}

func (s *UserService) update(ctx context.Context, userID string, upd domain.UserUpdate, msg string) (*domain.User, error) {
	user, err := s.users.Update(ctx, userID, upd)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	if err := s.producer.PublishUserUpdated(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.updated event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, msg,
		slog.String("user_id", user.ID),
	)
	return user.Sanitized(), nil
}

func (s *UserService) hashPassword(plain string) (string, error) {
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		if auth.IsTooLong(err) {
			return "", apperrors.InvalidInput("password must be at most 72 bytes")
		}
		return "", apperrors.Internal(err)
	}
	return hash, nil
}

// missingFields lists the empty entries of fields in a stable order.
func missingFields(fields map[string]string) []apperrors.FieldError {
	var out []apperrors.FieldError
	for _, name := range []string{"username", "email", "fullName", "password"} {
		if v, ok := fields[name]; ok && v == "" {
			out = append(out, apperrors.FieldError{Field: name, Message: name + " is required"})
		}
	}
	return out
}
