package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vidtube/backend/internal/domain"
	pkgkafka "github.com/vidtube/backend/pkg/kafka"
	"github.com/vidtube/backend/pkg/logger"
)

// Kafka topics for user and channel events.
var (
	TopicUserRegistered    = pkgkafka.Topic("user", "registered")
	TopicUserUpdated       = pkgkafka.Topic("user", "updated")
	TopicChannelSubscribed = pkgkafka.Topic("channel", "subscribed")
)

// Aggregate type constants.
const (
	AggregateTypeUser         = "user"
	AggregateTypeSubscription = "subscription"
)

// SourceUserService identifies events originating from this service.
const SourceUserService = "vidtube-users"

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Avatar   string `json:"avatar"`
}

// UserUpdatedData is the payload for a user.updated event.
type UserUpdatedData struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	Avatar     string `json:"avatar"`
	CoverImage string `json:"cover_image,omitempty"`
}

// ChannelSubscribedData is the payload for a channel.subscribed event.
type ChannelSubscribedData struct {
	ID         string `json:"id"`
	Subscriber string `json:"subscriber"`
	Channel    string `json:"channel"`
}

// Publisher emits domain events. Failures are reported to the caller, which
// logs them; they never fail the originating request.
type Publisher interface {
	PublishUserRegistered(ctx context.Context, user *domain.User) error
	PublishUserUpdated(ctx context.Context, user *domain.User) error
	PublishChannelSubscribed(ctx context.Context, sub *domain.Subscription) error
}

type eventWriter interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes user domain events to Kafka.
type Producer struct {
	kafka  eventWriter
	logger *slog.Logger
}

// NewProducer creates a new event producer over a pkg/kafka producer.
func NewProducer(kafka eventWriter, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	data := UserRegisteredData{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		FullName: user.FullName,
		Avatar:   user.Avatar,
	}
	return p.publish(ctx, TopicUserRegistered, user.ID, AggregateTypeUser, data)
}

// PublishUserUpdated publishes a user.updated event.
func (p *Producer) PublishUserUpdated(ctx context.Context, user *domain.User) error {
	data := UserUpdatedData{
		ID:         user.ID,
		Username:   user.Username,
		Email:      user.Email,
		FullName:   user.FullName,
		Avatar:     user.Avatar,
		CoverImage: user.CoverImage,
	}
	return p.publish(ctx, TopicUserUpdated, user.ID, AggregateTypeUser, data)
}

// PublishChannelSubscribed publishes a channel.subscribed event keyed by channel.
func (p *Producer) PublishChannelSubscribed(ctx context.Context, sub *domain.Subscription) error {
	data := ChannelSubscribedData{
		ID:         sub.ID,
		Subscriber: sub.Subscriber,
		Channel:    sub.Channel,
	}
	return p.publish(ctx, TopicChannelSubscribed, sub.Channel, AggregateTypeSubscription, data)
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceUserService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}

// Noop discards events. It is used when Kafka is disabled.
type Noop struct{}

func (Noop) PublishUserRegistered(context.Context, *domain.User) error            { return nil }
func (Noop) PublishUserUpdated(context.Context, *domain.User) error               { return nil }
func (Noop) PublishChannelSubscribed(context.Context, *domain.Subscription) error { return nil }

var (
	_ Publisher = (*Producer)(nil)
	_ Publisher = Noop{}
)
