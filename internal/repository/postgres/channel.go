package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vidtube/backend/internal/domain"
	"github.com/vidtube/backend/pkg/database"
	apperrors "github.com/vidtube/backend/pkg/errors"
)

const channelProfileQuery = `
	SELECT u.id::text, u.full_name, u.username, u.email,
		(SELECT COUNT(*) FROM subscriptions s WHERE s.channel_id = u.id),
		(SELECT COUNT(*) FROM subscriptions s WHERE s.subscriber_id = u.id),
		EXISTS (SELECT 1 FROM subscriptions s WHERE s.channel_id = u.id AND s.subscriber_id = $2::uuid),
		u.avatar, u.cover_image
	FROM users u
	WHERE u.username = $1`

const watchHistoryQuery = `
	SELECT v.id::text, v.video_file, v.thumbnail, v.title, v.description, v.duration,
		v.views, v.is_published, v.created_at, v.updated_at,
		o.id::text, o.full_name, o.username, o.avatar
	FROM users u
	CROSS JOIN LATERAL unnest(u.watch_history) WITH ORDINALITY AS h(video_id, pos)
	JOIN videos v ON v.id = h.video_id
	LEFT JOIN users o ON o.id = v.owner_id
	WHERE u.id = $1
	ORDER BY h.pos`

// ChannelRepository implements repository.ChannelRepository using PostgreSQL.
type ChannelRepository struct {
	db database.DBTX
}

// NewChannelRepository creates a PostgreSQL-backed channel repository.
func NewChannelRepository(db database.DBTX) *ChannelRepository {
	return &ChannelRepository{db: db}
}

// GetChannelProfile returns the channel named username as seen by viewerID.
func (r *ChannelRepository) GetChannelProfile(ctx context.Context, viewerID, username string) (_ *domain.ChannelProfile, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "GetChannelProfile", channelProfileQuery)
	defer func() { end(err) }()

	// NULL matches no subscriber_id.
	var viewer any
	if parseID(viewerID) {
		viewer = viewerID
	}

	var p domain.ChannelProfile
	err = r.db.QueryRow(ctx, channelProfileQuery, username, viewer).Scan(
		&p.ID,
		&p.FullName,
		&p.Username,
		&p.Email,
		&p.SubscribersCount,
		&p.SubscribedToCount,
		&p.IsSubscribed,
		&p.Avatar,
		&p.CoverImage,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("query channel profile: %w", err)
	}
	return &p, nil
}

// GetWatchHistory returns the user's watched videos in stored order. Videos
// that no longer exist drop out of the inner join.
func (r *ChannelRepository) GetWatchHistory(ctx context.Context, userID string) (_ []domain.WatchedVideo, err error) {
	if !parseID(userID) {
		return nil, apperrors.ErrNotFound
	}

	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "GetWatchHistory", watchHistoryQuery)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, watchHistoryQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("query watch history: %w", err)
	}
	defer rows.Close()

	history := []domain.WatchedVideo{}
	for rows.Next() {
		var (
			v                                          domain.WatchedVideo
			ownerID, ownerName, ownerUser, ownerAvatar *string
		)
		if err = rows.Scan(
			&v.ID,
			&v.VideoFile,
			&v.Thumbnail,
			&v.Title,
			&v.Description,
			&v.Duration,
			&v.Views,
			&v.IsPublished,
			&v.CreatedAt,
			&v.UpdatedAt,
			&ownerID,
			&ownerName,
			&ownerUser,
			&ownerAvatar,
		); err != nil {
			return nil, fmt.Errorf("scan watch history: %w", err)
		}
		if ownerID != nil {
			v.Owner = &domain.VideoOwner{
				ID:       *ownerID,
				FullName: deref(ownerName),
				Username: deref(ownerUser),
				Avatar:   deref(ownerAvatar),
			}
		}
		history = append(history, v)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watch history: %w", err)
	}

	if len(history) == 0 {
		var exists bool
		if err = r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check user: %w", err)
		}
		if !exists {
			return nil, apperrors.ErrNotFound
		}
	}
	return history, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
