// Package memory is an in-process store for tests and local development.
// A single mutex stands in for the document store's per-document atomicity.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/domain"
	"github.com/vidtube/backend/internal/repository"
	apperrors "github.com/vidtube/backend/pkg/errors"
)

// Store holds users, subscriptions and videos in memory. It implements every
// repository interface.
type Store struct {
	mu            sync.RWMutex
	users         map[string]*domain.User
	subscriptions []domain.Subscription
	videos        map[string]*domain.Video
	now           func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:  make(map[string]*domain.User),
		videos: make(map[string]*domain.Video),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Repositories exposes s through the repository.Store bundle.
func (s *Store) Repositories() *repository.Store {
	return &repository.Store{
		Users:         s,
		Subscriptions: (*subscriptionRepo)(s),
		Channels:      s,
		Videos:        (*videoRepo)(s),
		Ping:          func(context.Context) error { return nil },
		Close:         func(context.Context) error { return nil },
	}
}

func cloneUser(u *domain.User) *domain.User {
	out := *u
	out.WatchHistory = append([]string{}, u.WatchHistory...)
	return &out
}

// --- users ---

// Create inserts user, rejecting a taken username or email.
func (s *Store) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == user.Username {
			return apperrors.AlreadyExists("user", "username", user.Username)
		}
		if existing.Email == user.Email {
			return apperrors.AlreadyExists("user", "email", user.Email)
		}
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := s.now()
	user.CreatedAt, user.UpdatedAt = now, now
	if user.WatchHistory == nil {
		user.WatchHistory = []string{}
	}
	s.users[user.ID] = cloneUser(user)
	return nil
}

// GetByID returns a copy of the user with id.
func (s *Store) GetByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return cloneUser(u), nil
}

// GetByUsernameOrEmail returns the user matching either identifier.
func (s *Store) GetByUsernameOrEmail(_ context.Context, username, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			return cloneUser(u), nil
		}
	}
	return nil, apperrors.ErrNotFound
}

// Update applies upd to the user with id.
func (s *Store) Update(_ context.Context, id string, upd domain.UserUpdate) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperrors.NotFound("user", id)
	}
	if upd.Email != nil && *upd.Email != u.Email {
		for otherID, other := range s.users {
			if otherID != id && other.Email == *upd.Email {
				return nil, apperrors.AlreadyExists("user", "email", *upd.Email)
			}
		}
	}

	if upd.FullName != nil {
		u.FullName = *upd.FullName
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.Avatar != nil {
		u.Avatar = *upd.Avatar
	}
	if upd.CoverImage != nil {
		u.CoverImage = *upd.CoverImage
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	u.UpdatedAt = s.now()
	return cloneUser(u), nil
}

// SetRefreshToken stores token for the user.
func (s *Store) SetRefreshToken(_ context.Context, id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return apperrors.NotFound("user", id)
	}
	u.RefreshToken = token
	return nil
}

// SwapRefreshToken replaces expected with next atomically.
func (s *Store) SwapRefreshToken(_ context.Context, id, expected, next string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || expected == "" || u.RefreshToken != expected {
		return false, nil
	}
	u.RefreshToken = next
	return true, nil
}

// UnsetRefreshToken clears the stored token. Unknown users are ignored.
func (s *Store) UnsetRefreshToken(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[id]; ok {
		u.RefreshToken = ""
	}
	return nil
}

// AppendWatchHistory appends videoID to the user's history.
func (s *Store) AppendWatchHistory(_ context.Context, userID, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return apperrors.NotFound("user", userID)
	}
	u.WatchHistory = append(u.WatchHistory, videoID)
	return nil
}

// --- aggregations ---

// GetChannelProfile composes the profile from the user and edge sets.
func (s *Store) GetChannelProfile(_ context.Context, viewerID, username string) (*domain.ChannelProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var target *domain.User
	for _, u := range s.users {
		if u.Username == username {
			target = u
			break
		}
	}
	if target == nil {
		return nil, apperrors.ErrNotFound
	}

	p := &domain.ChannelProfile{
		ID:         target.ID,
		FullName:   target.FullName,
		Username:   target.Username,
		Email:      target.Email,
		Avatar:     target.Avatar,
		CoverImage: target.CoverImage,
	}
	for _, sub := range s.subscriptions {
		if sub.Channel == target.ID {
			p.SubscribersCount++
			if viewerID != "" && sub.Subscriber == viewerID {
				p.IsSubscribed = true
			}
		}
		if sub.Subscriber == target.ID {
			p.SubscribedToCount++
		}
	}
	return p, nil
}

// GetWatchHistory resolves the user's history in stored order.
func (s *Store) GetWatchHistory(_ context.Context, userID string) ([]domain.WatchedVideo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}

	history := make([]domain.WatchedVideo, 0, len(u.WatchHistory))
	for _, videoID := range u.WatchHistory {
		v, ok := s.videos[videoID]
		if !ok {
			continue
		}
		history = append(history, domain.Watched(v, domain.OwnerOf(s.users[v.Owner])))
	}
	return history, nil
}

// --- subscriptions ---

type subscriptionRepo Store

func (r *subscriptionRepo) Create(_ context.Context, sub *domain.Subscription) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.subscriptions {
		if existing.Subscriber == sub.Subscriber && existing.Channel == sub.Channel {
			return apperrors.AlreadyExists("subscription", "channel", sub.Channel)
		}
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	now := s.now()
	sub.CreatedAt, sub.UpdatedAt = now, now
	s.subscriptions = append(s.subscriptions, *sub)
	return nil
}

// --- videos ---

type videoRepo Store

func (r *videoRepo) Create(_ context.Context, v *domain.Video) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	now := s.now()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	v.UpdatedAt = now
	stored := *v
	s.videos[v.ID] = &stored
	return nil
}
