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

// SubscriptionRepository implements repository.SubscriptionRepository.
type SubscriptionRepository struct {
	coll *mongo.Collection
}

// NewSubscriptionRepository creates a MongoDB-backed subscription repository.
func NewSubscriptionRepository(db *mongo.Database) *SubscriptionRepository {
	return &SubscriptionRepository{coll: db.Collection(subscriptionsCollection)}
}

// Create inserts an edge. The unique (subscriber, channel) index rejects repeats.
func (r *SubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) (err error) {
	subscriber, ok := objectID(sub.Subscriber)
	if !ok {
		return apperrors.InvalidInput("invalid subscriber id")
	}
	channel, ok := objectID(sub.Channel)
	if !ok {
		return apperrors.InvalidInput("invalid channel id")
	}

	ctx, end := database.TraceQuery(ctx, database.SystemMongoDB, "CreateSubscription", "subscriptions.insertOne")
	defer func() { end(err) }()

	now := time.Now().UTC()
	doc := subscriptionDocument{
		ID:         primitive.NewObjectID(),
		Subscriber: subscriber,
		Channel:    channel,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err = r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.AlreadyExists("subscription", "channel", sub.Channel)
		}
		return fmt.Errorf("insert subscription: %w", err)
	}

	sub.ID = doc.ID.Hex()
	sub.CreatedAt, sub.UpdatedAt = now, now
	return nil
}
