package service

import (
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/domain"
	"github.com/vidtube/backend/internal/repository"
	"github.com/vidtube/backend/internal/repository/memory"
)

// --- Mock User Repository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByUsernameOrEmail(ctx context.Context, username, email string) (*domain.User, error) {
	args := m.Called(ctx, username, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) Update(ctx context.Context, id string, upd domain.UserUpdate) (*domain.User, error) {
	args := m.Called(ctx, id, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	return m.Called(ctx, id, token).Error(0)
}

func (m *mockUserRepository) SwapRefreshToken(ctx context.Context, id, expected, next string) (bool, error) {
	args := m.Called(ctx, id, expected, next)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepository) UnsetRefreshToken(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockUserRepository) AppendWatchHistory(ctx context.Context, userID, videoID string) error {
	return m.Called(ctx, userID, videoID).Error(0)
}

// --- Mock Uploader ---

type mockUploader struct {
	mock.Mock
}

func (m *mockUploader) Upload(ctx context.Context, folder string, fh *multipart.FileHeader) (string, error) {
	args := m.Called(ctx, folder, fh)
	return args.String(0), args.Error(1)
}

// --- Mock Publisher ---

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockPublisher) PublishUserUpdated(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockPublisher) PublishChannelSubscribed(ctx context.Context, sub *domain.Subscription) error {
	return m.Called(ctx, sub).Error(0)
}

// --- Fixtures ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testJWTManager(accessExpiry time.Duration) *auth.JWTManager {
	return auth.NewJWTManager(auth.JWTConfig{
		AccessSecret:  "test-access-secret-at-least-32-bytes!!",
		AccessExpiry:  accessExpiry,
		RefreshSecret: "test-refresh-secret-at-least-32-bytes!",
		RefreshExpiry: time.Hour,
		Issuer:        "vidtube-test",
	})
}

func testHasher() *auth.PasswordHasher {
	return auth.NewPasswordHasher(bcrypt.MinCost)
}

type fixture struct {
	store    *repository.Store
	tokens   *TokenService
	users    *UserService
	channels *ChannelService
	uploader *mockUploader
	events   *mockPublisher
}

// newFixture wires the services over a fresh in-memory store. Event
// publishing always succeeds unless a test overrides it.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.New().Repositories()
	uploader := &mockUploader{}
	events := &mockPublisher{}
	events.On("PublishUserRegistered", mock.Anything, mock.Anything).Return(nil).Maybe()
	events.On("PublishUserUpdated", mock.Anything, mock.Anything).Return(nil).Maybe()
	events.On("PublishChannelSubscribed", mock.Anything, mock.Anything).Return(nil).Maybe()

	tokens := NewTokenService(store.Users, testJWTManager(time.Hour), testLogger())
	return &fixture{
		store:    store,
		tokens:   tokens,
		users:    NewUserService(store.Users, tokens, testHasher(), uploader, events, testLogger()),
		channels: NewChannelService(store.Users, store.Subscriptions, store.Channels, events, testLogger()),
		uploader: uploader,
		events:   events,
	}
}

// seedUser stores a user with password "pw123" directly.
func (f *fixture) seedUser(t *testing.T, username string) *domain.User {
	t.Helper()
	hash, err := testHasher().Hash("pw123")
	require.NoError(t, err)

	u := &domain.User{
		Username:     username,
		Email:        username + "@x.com",
		FullName:     "Full " + username,
		Avatar:       "https://media.test/" + username + ".png",
		PasswordHash: hash,
	}
	require.NoError(t, f.store.Users.Create(context.Background(), u))
	return u
}
