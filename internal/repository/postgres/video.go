package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/domain"
	"github.com/vidtube/backend/pkg/database"
	apperrors "github.com/vidtube/backend/pkg/errors"
)

// VideoRepository writes to the videos table.
type VideoRepository struct {
	db database.DBTX
}

// NewVideoRepository creates a PostgreSQL-backed video repository.
func NewVideoRepository(db database.DBTX) *VideoRepository {
	return &VideoRepository{db: db}
}

// Create inserts v and fills in its ID.
func (r *VideoRepository) Create(ctx context.Context, v *domain.Video) (err error) {
	if !parseID(v.Owner) {
		return apperrors.InvalidInput("invalid owner id")
	}

	const query = `
		INSERT INTO videos (id, video_file, thumbnail, title, description, duration, views, is_published, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "CreateVideo", query)
	defer func() { end(err) }()

	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	v.UpdatedAt = now

	_, err = r.db.Exec(ctx, query,
		v.ID,
		v.VideoFile,
		v.Thumbnail,
		v.Title,
		v.Description,
		v.Duration,
		v.Views,
		v.IsPublished,
		v.Owner,
		v.CreatedAt,
		v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}
	return nil
}
