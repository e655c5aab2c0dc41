// Package postgres implements the repositories on PostgreSQL. Watch history
// is a UUID[] column on users and is resolved against videos with
// unnest ... WITH ORDINALITY so stored order survives the join.
package postgres

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidtube/backend/internal/repository"
	"github.com/vidtube/backend/pkg/database"
)

//go:embed migrations/*.up.sql
var migrations embed.FS

// Migrations returns the embedded schema files for database.RunMigrations.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// NewStore bundles the PostgreSQL repositories over pool. Close closes pool.
func NewStore(pool *pgxpool.Pool) *repository.Store {
	s := newStore(pool)
	s.Ping = pool.Ping
	s.Close = func(context.Context) error {
		pool.Close()
		return nil
	}
	return s
}

func newStore(db database.DBTX) *repository.Store {
	return &repository.Store{
		Users:         NewUserRepository(db),
		Subscriptions: NewSubscriptionRepository(db),
		Channels:      NewChannelRepository(db),
		Videos:        NewVideoRepository(db),
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "23505")
}

// violatedConstraint names the unique constraint behind a 23505, if known.
func violatedConstraint(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return err.Error()
}

// parseID reports whether id is a well-formed UUID.
func parseID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
