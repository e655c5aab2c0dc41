package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoConfig holds MongoDB connection configuration.
type MongoConfig struct {
	URI             string
	Database        string
	MaxPoolSize     uint64
	ConnectTimeout  time.Duration
	SelectionTimout time.Duration
}

// DefaultMongoConfig returns sensible defaults for a local MongoDB.
func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		URI:             "mongodb://localhost:27017",
		Database:        "videotube",
		MaxPoolSize:     50,
		ConnectTimeout:  10 * time.Second,
		SelectionTimout: 5 * time.Second,
	}
}

// NewMongoClient connects to MongoDB and pings the primary, retrying
// transient failures the same way NewPostgresPool does. logger may be nil.
func NewMongoClient(ctx context.Context, cfg MongoConfig, logger *slog.Logger) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.SelectionTimout)
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("parse mongodb uri: %w", err)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("create mongodb client: %w", err)
	}

	err = connectWithRetry(ctx, "mongodb", logger, func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}
