package repository

import (
	"context"

	"github.com/vidtube/backend/internal/domain"
)

// UserRepository is the credential store. Usernames and emails are stored
// normalized and are unique; Create and Update report duplicates as
// apperrors.ErrAlreadyExists. Lookups that match nothing return
// apperrors.ErrNotFound.
type UserRepository interface {
	// Create inserts user and fills in its ID and timestamps.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID, including secret fields.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByUsernameOrEmail retrieves the user whose username or email
	// matches. Empty arguments are ignored.
	GetByUsernameOrEmail(ctx context.Context, username, email string) (*domain.User, error)

	// Update applies the non-nil fields of upd and returns the updated user.
	Update(ctx context.Context, id string, upd domain.UserUpdate) (*domain.User, error)

	// SetRefreshToken overwrites the stored refresh token unconditionally.
	SetRefreshToken(ctx context.Context, id, token string) error

	// SwapRefreshToken replaces the stored refresh token with next only if
	// it currently equals expected. It reports whether the swap happened.
	SwapRefreshToken(ctx context.Context, id, expected, next string) (bool, error)

	// UnsetRefreshToken clears the stored refresh token.
	UnsetRefreshToken(ctx context.Context, id string) error

	// AppendWatchHistory adds videoID to the end of the user's watch history.
	AppendWatchHistory(ctx context.Context, userID, videoID string) error
}

// SubscriptionRepository stores subscriber -> channel edges. An edge is
// unique per (subscriber, channel); duplicates return apperrors.ErrAlreadyExists.
type SubscriptionRepository interface {
	Create(ctx context.Context, sub *domain.Subscription) error
}

// ChannelRepository holds the read-side aggregations over users,
// subscriptions and videos.
type ChannelRepository interface {
	// GetChannelProfile resolves the channel named username as seen by
	// viewerID. An empty viewerID is never subscribed.
	GetChannelProfile(ctx context.Context, viewerID, username string) (*domain.ChannelProfile, error)

	// GetWatchHistory returns the user's watched videos in stored order with
	// owners resolved. Ids that no longer resolve to a video are skipped.
	GetWatchHistory(ctx context.Context, userID string) ([]domain.WatchedVideo, error)
}

// VideoRepository writes videos. The API only reads them; seeding writes.
type VideoRepository interface {
	Create(ctx context.Context, video *domain.Video) error
}

// Store bundles the repositories of one backend.
type Store struct {
	Users         UserRepository
	Subscriptions SubscriptionRepository
	Channels      ChannelRepository
	Videos        VideoRepository

	// Ping checks connectivity and Close releases the backend.
	Ping  func(ctx context.Context) error
	Close func(ctx context.Context) error
}
