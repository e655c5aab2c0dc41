package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/vidtube/backend/internal/domain"
	apperrors "github.com/vidtube/backend/pkg/errors"
)

const testNS = "videotube.users"

func newMockT(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

func userDoc(id primitive.ObjectID, username string) bson.D {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "username", Value: username},
		{Key: "email", Value: username + "@example.com"},
		{Key: "fullName", Value: "Full " + username},
		{Key: "avatar", Value: "https://media.test/" + username + ".png"},
		{Key: "watchHistory", Value: bson.A{}},
		{Key: "password", Value: "hash"},
		{Key: "refreshToken", Value: "stored-refresh"},
		{Key: "createdAt", Value: now},
		{Key: "updatedAt", Value: now},
	}
}

func TestUserRepository_Create(t *testing.T) {
	mt := newMockT(t)

	mt.Run("success", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		u := &domain.User{Username: "alice", Email: "alice@example.com", FullName: "Alice", PasswordHash: "hash"}
		require.NoError(mt, repo.Create(context.Background(), u))

		_, err := primitive.ObjectIDFromHex(u.ID)
		assert.NoError(mt, err)
		assert.NotNil(mt, u.WatchHistory)
		assert.False(mt, u.CreatedAt.IsZero())
	})

	mt.Run("duplicate email", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: videotube.users index: email_1 dup key",
		}))

		err := repo.Create(context.Background(), &domain.User{Username: "alice", Email: "alice@example.com"})
		require.ErrorIs(mt, err, apperrors.ErrAlreadyExists)
		assert.Contains(mt, err.Error(), "email")
	})

	mt.Run("duplicate username", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: videotube.users index: username_1 dup key",
		}))

		err := repo.Create(context.Background(), &domain.User{Username: "alice", Email: "alice@example.com"})
		require.ErrorIs(mt, err, apperrors.ErrAlreadyExists)
		assert.Contains(mt, err.Error(), "username")
	})
}

func TestUserRepository_GetByID(t *testing.T) {
	mt := newMockT(t)

	mt.Run("found", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testNS, mtest.FirstBatch, userDoc(id, "alice")))

		u, err := repo.GetByID(context.Background(), id.Hex())
		require.NoError(mt, err)
		assert.Equal(mt, id.Hex(), u.ID)
		assert.Equal(mt, "alice", u.Username)
		assert.Equal(mt, "hash", u.PasswordHash)
		assert.Equal(mt, "stored-refresh", u.RefreshToken)
		assert.NotNil(mt, u.WatchHistory)
	})

	mt.Run("not found", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testNS, mtest.FirstBatch))

		_, err := repo.GetByID(context.Background(), primitive.NewObjectID().Hex())
		assert.ErrorIs(mt, err, apperrors.ErrNotFound)
	})

	mt.Run("malformed id", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)

		_, err := repo.GetByID(context.Background(), "not-an-object-id")
		assert.ErrorIs(mt, err, apperrors.ErrNotFound)
	})
}

func TestUserRepository_GetByUsernameOrEmail(t *testing.T) {
	mt := newMockT(t)

	mt.Run("by email", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testNS, mtest.FirstBatch, userDoc(id, "alice")))

		u, err := repo.GetByUsernameOrEmail(context.Background(), "", "alice@example.com")
		require.NoError(mt, err)
		assert.Equal(mt, id.Hex(), u.ID)
	})

	mt.Run("no identifiers", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)

		_, err := repo.GetByUsernameOrEmail(context.Background(), "", "")
		assert.ErrorIs(mt, err, apperrors.ErrNotFound)
	})
}

func TestUserRepository_Update(t *testing.T) {
	mt := newMockT(t)

	mt.Run("returns updated document", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		id := primitive.NewObjectID()
		doc := userDoc(id, "alice")
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: doc}))

		name := "Full alice"
		u, err := repo.Update(context.Background(), id.Hex(), domain.UserUpdate{FullName: &name})
		require.NoError(mt, err)
		assert.Equal(mt, "Full alice", u.FullName)
	})

	mt.Run("not found", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		name := "x"
		_, err := repo.Update(context.Background(), primitive.NewObjectID().Hex(), domain.UserUpdate{FullName: &name})
		assert.ErrorIs(mt, err, apperrors.ErrNotFound)
	})

	mt.Run("duplicate email", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    11000,
			Message: "E11000 duplicate key error collection: videotube.users index: email_1",
			Name:    "DuplicateKey",
		}))

		email := "bob@example.com"
		_, err := repo.Update(context.Background(), primitive.NewObjectID().Hex(), domain.UserUpdate{Email: &email})
		assert.ErrorIs(mt, err, apperrors.ErrAlreadyExists)
	})
}

func TestUserRepository_RefreshTokens(t *testing.T) {
	mt := newMockT(t)

	mt.Run("swap matches", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		ok, err := repo.SwapRefreshToken(context.Background(), primitive.NewObjectID().Hex(), "old", "new")
		require.NoError(mt, err)
		assert.True(mt, ok)
	})

	mt.Run("swap loses", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		ok, err := repo.SwapRefreshToken(context.Background(), primitive.NewObjectID().Hex(), "old", "new")
		require.NoError(mt, err)
		assert.False(mt, ok)
	})

	mt.Run("swap with empty expected never matches", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)

		ok, err := repo.SwapRefreshToken(context.Background(), primitive.NewObjectID().Hex(), "", "new")
		require.NoError(mt, err)
		assert.False(mt, ok)
	})

	mt.Run("set on missing user", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		err := repo.SetRefreshToken(context.Background(), primitive.NewObjectID().Hex(), "token")
		assert.ErrorIs(mt, err, apperrors.ErrNotFound)
	})

	mt.Run("unset", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		require.NoError(mt, repo.UnsetRefreshToken(context.Background(), primitive.NewObjectID().Hex()))

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		assert.Equal(mt, "update", started.CommandName)
	})
}

func TestUserRepository_AppendWatchHistory(t *testing.T) {
	mt := newMockT(t)

	mt.Run("pushes", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		err := repo.AppendWatchHistory(context.Background(), primitive.NewObjectID().Hex(), primitive.NewObjectID().Hex())
		assert.NoError(mt, err)
	})

	mt.Run("invalid video id", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)

		err := repo.AppendWatchHistory(context.Background(), primitive.NewObjectID().Hex(), "nope")
		assert.ErrorIs(mt, err, apperrors.ErrInvalidInput)
	})
}
