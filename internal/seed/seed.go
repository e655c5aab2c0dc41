// Package seed fills a store with demo users, videos, watch history and
// subscriptions. It is meant for development and tests only.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/domain"
	"github.com/vidtube/backend/internal/repository"
	apperrors "github.com/vidtube/backend/pkg/errors"
)

// DefaultPassword is the password of every seeded user.
const DefaultPassword = "password123"

const maxUserAttempts = 5

// Options controls how much data is generated.
type Options struct {
	Users            int
	VideosPerUser    int
	HistoryPerUser   int
	SubscriptionsPer int
	// Seed makes runs reproducible. Zero picks a random seed.
	Seed int64
}

// DefaultOptions returns a small, browsable data set.
func DefaultOptions() Options {
	return Options{Users: 20, VideosPerUser: 3, HistoryPerUser: 5, SubscriptionsPer: 4}
}

// Result summarizes a seeding run.
type Result struct {
	Users         []*domain.User
	Videos        []*domain.Video
	History       int
	Subscriptions int
}

// Factory builds domain entities and persists them through a store.
type Factory struct {
	store  *repository.Store
	hasher *auth.PasswordHasher
	faker  *gofakeit.Faker
	rnd    *rand.Rand
	logger *slog.Logger
}

// NewFactory creates a Factory bound to store.
func NewFactory(store *repository.Store, hasher *auth.PasswordHasher, seed int64, logger *slog.Logger) *Factory {
	return &Factory{
		store:  store,
		hasher: hasher,
		faker:  gofakeit.New(seed),
		rnd:    rand.New(rand.NewSource(seed)),
		logger: logger,
	}
}

// CreateUser persists a fake user with DefaultPassword. Generated names that
// collide with an existing user are retried a few times.
func (f *Factory) CreateUser(ctx context.Context) (*domain.User, error) {
	hash, err := f.hasher.Hash(DefaultPassword)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		username := domain.NormalizeIdentifier(fmt.Sprintf("%s%d", f.faker.Username(), f.faker.Number(100, 999)))
		u := &domain.User{
			Username:     username,
			Email:        username + "@" + strings.ToLower(f.faker.DomainName()),
			FullName:     f.faker.Name(),
			Avatar:       fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.faker.UUID()),
			CoverImage:   fmt.Sprintf("https://picsum.photos/seed/%s/1200/300", f.faker.UUID()),
			WatchHistory: []string{},
			PasswordHash: hash,
		}
		err := f.store.Users.Create(ctx, u)
		switch {
		case err == nil:
			return u, nil
		case errors.Is(err, apperrors.ErrAlreadyExists) && attempt < maxUserAttempts:
			f.logger.DebugContext(ctx, "generated user exists, retrying", slog.String("username", username))
		default:
			return nil, fmt.Errorf("create user %s: %w", username, err)
		}
	}
}

// CreateVideo persists a fake video owned by owner.
func (f *Factory) CreateVideo(ctx context.Context, owner *domain.User) (*domain.Video, error) {
	id := f.faker.UUID()
	v := &domain.Video{
		VideoFile:   fmt.Sprintf("https://media.vidtube.example/videos/%s.mp4", id),
		Thumbnail:   fmt.Sprintf("https://picsum.photos/seed/%s/640/360", id),
		Title:       f.faker.Sentence(5),
		Description: f.faker.Paragraph(1, 3, 8, "\n"),
		Duration:    f.faker.Float64Range(30, 3600),
		Views:       int64(f.faker.Number(0, 100000)),
		IsPublished: f.faker.Bool(),
		Owner:       owner.ID,
	}
	if err := f.store.Videos.Create(ctx, v); err != nil {
		return nil, fmt.Errorf("create video for %s: %w", owner.Username, err)
	}
	return v, nil
}

// Run generates the whole data set described by opts.
func Run(ctx context.Context, store *repository.Store, hasher *auth.PasswordHasher, opts Options, logger *slog.Logger) (*Result, error) {
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	f := NewFactory(store, hasher, opts.Seed, logger)
	res := &Result{}

	for i := 0; i < opts.Users; i++ {
		u, err := f.CreateUser(ctx)
		if err != nil {
			return res, err
		}
		res.Users = append(res.Users, u)

		for j := 0; j < opts.VideosPerUser; j++ {
			v, err := f.CreateVideo(ctx, u)
			if err != nil {
				return res, err
			}
			res.Videos = append(res.Videos, v)
		}
	}

	if len(res.Videos) > 0 {
		for _, u := range res.Users {
			for j := 0; j < opts.HistoryPerUser; j++ {
				v := res.Videos[f.rnd.Intn(len(res.Videos))]
				if err := store.Users.AppendWatchHistory(ctx, u.ID, v.ID); err != nil {
					return res, fmt.Errorf("append watch history: %w", err)
				}
				res.History++
			}
		}
	}

	for _, u := range res.Users {
		created := 0
		for _, idx := range f.rnd.Perm(len(res.Users)) {
			if created == opts.SubscriptionsPer {
				break
			}
			channel := res.Users[idx]
			if channel.ID == u.ID {
				continue
			}
			if err := store.Subscriptions.Create(ctx, &domain.Subscription{Subscriber: u.ID, Channel: channel.ID}); err != nil {
				return res, fmt.Errorf("create subscription: %w", err)
			}
			created++
		}
		res.Subscriptions += created
	}

	logger.InfoContext(ctx, "seed completed",
		slog.Int("users", len(res.Users)),
		slog.Int("videos", len(res.Videos)),
		slog.Int("history", res.History),
		slog.Int("subscriptions", res.Subscriptions),
	)
	return res, nil
}
