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

// SubscriptionRepository implements repository.SubscriptionRepository.
type SubscriptionRepository struct {
	db database.DBTX
}

// NewSubscriptionRepository creates a PostgreSQL-backed subscription repository.
func NewSubscriptionRepository(db database.DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Create inserts an edge. The (subscriber_id, channel_id) constraint rejects repeats.
func (r *SubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) (err error) {
	if !parseID(sub.Subscriber) {
		return apperrors.InvalidInput("invalid subscriber id")
	}
	if !parseID(sub.Channel) {
		return apperrors.InvalidInput("invalid channel id")
	}

	const query = `
		INSERT INTO subscriptions (id, subscriber_id, channel_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "CreateSubscription", query)
	defer func() { end(err) }()

	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sub.CreatedAt, sub.UpdatedAt = now, now

	if _, err = r.db.Exec(ctx, query, sub.ID, sub.Subscriber, sub.Channel, sub.CreatedAt, sub.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("subscription", "channel", sub.Channel)
		}
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}
