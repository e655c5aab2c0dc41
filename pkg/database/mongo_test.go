package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultMongoConfig(t *testing.T) {
	cfg := DefaultMongoConfig()
	assert.Equal(t, "mongodb://localhost:27017", cfg.URI)
	assert.Equal(t, "videotube", cfg.Database)
	assert.NotZero(t, cfg.SelectionTimout)
}

func TestNewMongoClient_InvalidURI(t *testing.T) {
	cfg := DefaultMongoConfig()
	cfg.URI = "postgres://not-mongo"

	_, err := NewMongoClient(context.Background(), cfg, discardLogger())
	assert.Error(t, err)
}
