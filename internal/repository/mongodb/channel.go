package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vidtube/backend/internal/domain"
	"github.com/vidtube/backend/pkg/database"
	apperrors "github.com/vidtube/backend/pkg/errors"
)

// ChannelRepository runs the profile and watch history aggregations on the
// users collection.
type ChannelRepository struct {
	users *mongo.Collection
}

// NewChannelRepository creates a MongoDB-backed channel repository.
func NewChannelRepository(db *mongo.Database) *ChannelRepository {
	return &ChannelRepository{users: db.Collection(usersCollection)}
}

// channelProfilePipeline joins both sides of the subscription graph onto the
// matched user and reduces them to counts and the viewer's membership.
func channelProfilePipeline(viewer primitive.ObjectID, username string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"username": username}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         subscriptionsCollection,
			"localField":   "_id",
			"foreignField": "channel",
			"as":           "subscribers",
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         subscriptionsCollection,
			"localField":   "_id",
			"foreignField": "subscriber",
			"as":           "subscribedTo",
		}}},
		{{Key: "$addFields", Value: bson.M{
			"subscribersCount":  bson.M{"$size": "$subscribers"},
			"subscribedToCount": bson.M{"$size": "$subscribedTo"},
			"isSubscribed":      bson.M{"$in": bson.A{viewer, "$subscribers.subscriber"}},
		}}},
		{{Key: "$project", Value: bson.M{
			"fullName":          1,
			"username":          1,
			"email":             1,
			"subscribersCount":  1,
			"subscribedToCount": 1,
			"isSubscribed":      1,
			"avatar":            1,
			"coverImage":        1,
		}}},
	}
}

// watchHistoryPipeline resolves the user's watch history against videos and
// each video's owner against users. $lookup does not keep the order of the
// local array, so the ids are projected alongside for reordering.
func watchHistoryPipeline(user primitive.ObjectID) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": user}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         videosCollection,
			"localField":   "watchHistory",
			"foreignField": "_id",
			"as":           "videos",
			"pipeline": bson.A{
				bson.M{"$lookup": bson.M{
					"from":         usersCollection,
					"localField":   "owner",
					"foreignField": "_id",
					"as":           "owner",
					"pipeline": bson.A{
						bson.M{"$project": bson.M{"fullName": 1, "username": 1, "avatar": 1}},
					},
				}},
				bson.M{"$addFields": bson.M{"owner": bson.M{"$first": "$owner"}}},
			},
		}}},
		{{Key: "$project", Value: bson.M{"watchHistory": 1, "videos": 1}}},
	}
}

// GetChannelProfile returns the channel named username as seen by viewerID.
func (r *ChannelRepository) GetChannelProfile(ctx context.Context, viewerID, username string) (_ *domain.ChannelProfile, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongoDB, "GetChannelProfile", "users.aggregate")
	defer func() { end(err) }()

	// An absent or malformed viewer becomes the nil ObjectID, which no edge holds.
	viewer, _ := objectID(viewerID)

	var docs []channelProfileDocument
	if err = r.aggregate(ctx, channelProfilePipeline(viewer, username), &docs); err != nil {
		return nil, fmt.Errorf("aggregate channel profile: %w", err)
	}
	if len(docs) == 0 {
		return nil, apperrors.ErrNotFound
	}

	d := docs[0]
	return &domain.ChannelProfile{
		ID:                d.ID.Hex(),
		FullName:          d.FullName,
		Username:          d.Username,
		Email:             d.Email,
		SubscribersCount:  d.SubscribersCount,
		SubscribedToCount: d.SubscribedToCount,
		IsSubscribed:      d.IsSubscribed,
		Avatar:            d.Avatar,
		CoverImage:        d.CoverImage,
	}, nil
}

// GetWatchHistory returns the user's watched videos in stored order.
func (r *ChannelRepository) GetWatchHistory(ctx context.Context, userID string) (_ []domain.WatchedVideo, err error) {
	uid, ok := objectID(userID)
	if !ok {
		return nil, apperrors.ErrNotFound
	}

	ctx, end := database.TraceQuery(ctx, database.SystemMongoDB, "GetWatchHistory", "users.aggregate")
	defer func() { end(err) }()

	var docs []watchHistoryDocument
	if err = r.aggregate(ctx, watchHistoryPipeline(uid), &docs); err != nil {
		return nil, fmt.Errorf("aggregate watch history: %w", err)
	}
	if len(docs) == 0 {
		return nil, apperrors.ErrNotFound
	}

	byID := make(map[primitive.ObjectID]*watchedVideoDocument, len(docs[0].Videos))
	for i := range docs[0].Videos {
		byID[docs[0].Videos[i].ID] = &docs[0].Videos[i]
	}

	history := make([]domain.WatchedVideo, 0, len(docs[0].WatchHistory))
	for _, id := range docs[0].WatchHistory {
		if v, ok := byID[id]; ok {
			history = append(history, v.toDomain())
		}
	}
	return history, nil
}

func (r *ChannelRepository) aggregate(ctx context.Context, pipeline mongo.Pipeline, out any) error {
	cur, err := r.users.Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}
