package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vidtube/backend/internal/domain"
	"github.com/vidtube/backend/internal/event"
	"github.com/vidtube/backend/internal/repository"
	apperrors "github.com/vidtube/backend/pkg/errors"
)

// ChannelService serves the channel views and the subscribe action.
type ChannelService struct {
	users         repository.UserRepository
	subscriptions repository.SubscriptionRepository
	channels      repository.ChannelRepository
	producer      event.Publisher
	logger        *slog.Logger
}

// NewChannelService creates a new channel service.
func NewChannelService(
	users repository.UserRepository,
	subscriptions repository.SubscriptionRepository,
	channels repository.ChannelRepository,
	producer event.Publisher,
	logger *slog.Logger,
) *ChannelService {
	return &ChannelService{
		users:         users,
		subscriptions: subscriptions,
		channels:      channels,
		producer:      producer,
		logger:        logger,
	}
}

// GetChannelProfile returns the profile of the channel named username with
// subscription counts and whether viewerID is subscribed to it.
func (s *ChannelService) GetChannelProfile(ctx context.Context, viewerID, username string) (*domain.ChannelProfile, error) {
	username = domain.NormalizeIdentifier(username)
	if username == "" {
		return nil, apperrors.InvalidInput("username is missing")
	}

	profile, err := s.channels.GetChannelProfile(ctx, viewerID, username)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFoundMessage("channel does not exist")
		}
		return nil, fmt.Errorf("get channel profile: %w", err)
	}
	return profile, nil
}

// GetWatchHistory returns the user's watched videos in watch order. It never
// returns a nil slice.
func (s *ChannelService) GetWatchHistory(ctx context.Context, userID string) ([]domain.WatchedVideo, error) {
	history, err := s.channels.GetWatchHistory(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", userID)
		}
		return nil, fmt.Errorf("get watch history: %w", err)
	}
	if history == nil {
		history = []domain.WatchedVideo{}
	}
	return history, nil
}

// Subscribe makes subscriberID a subscriber of the channel named username.
func (s *ChannelService) Subscribe(ctx context.Context, subscriberID, username string) (*domain.Subscription, error) {
	username = domain.NormalizeIdentifier(username)
	if username == "" {
		return nil, apperrors.InvalidInput("username is missing")
	}

	channel, err := s.users.GetByUsernameOrEmail(ctx, username, "")
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFoundMessage("channel does not exist")
		}
		return nil, fmt.Errorf("get channel: %w", err)
	}
	if channel.ID == subscriberID {
		return nil, apperrors.InvalidInput("cannot subscribe to your own channel")
	}

	sub := &domain.Subscription{Subscriber: subscriberID, Channel: channel.ID}
	if err := s.subscriptions.Create(ctx, sub); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, apperrors.Conflict("already subscribed to this channel")
		}
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	if err := s.producer.PublishChannelSubscribed(ctx, sub); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish channel.subscribed event",
			slog.String("subscription_id", sub.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "channel subscribed",
		slog.String("subscriber_id", subscriberID),
		slog.String("channel_id", channel.ID),
	)
	return sub, nil
}
