package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vidtube/backend/internal/domain"
	"github.com/vidtube/backend/pkg/database"
	apperrors "github.com/vidtube/backend/pkg/errors"
)

// VideoRepository writes to the videos collection.
type VideoRepository struct {
	coll *mongo.Collection
}

// NewVideoRepository creates a MongoDB-backed video repository.
func NewVideoRepository(db *mongo.Database) *VideoRepository {
	return &VideoRepository{coll: db.Collection(videosCollection)}
}

// Create inserts v and fills in its ID.
func (r *VideoRepository) Create(ctx context.Context, v *domain.Video) (err error) {
	owner, ok := objectID(v.Owner)
	if !ok {
		return apperrors.InvalidInput("invalid owner id")
	}

	ctx, end := database.TraceQuery(ctx, database.SystemMongoDB, "CreateVideo", "videos.insertOne")
	defer func() { end(err) }()

	now := time.Now().UTC()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	v.UpdatedAt = now

	doc := videoDocument{
		ID:          primitive.NewObjectID(),
		VideoFile:   v.VideoFile,
		Thumbnail:   v.Thumbnail,
		Title:       v.Title,
		Description: v.Description,
		Duration:    v.Duration,
		Views:       v.Views,
		IsPublished: v.IsPublished,
		Owner:       owner,
		CreatedAt:   v.CreatedAt,
		UpdatedAt:   v.UpdatedAt,
	}
	if _, err = r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert video: %w", err)
	}
	v.ID = doc.ID.Hex()
	return nil
}
