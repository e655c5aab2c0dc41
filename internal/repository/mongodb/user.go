package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vidtube/backend/internal/domain"
	"github.com/vidtube/backend/pkg/database"
	apperrors "github.com/vidtube/backend/pkg/errors"
)

// UserRepository implements repository.UserRepository on the users collection.
type UserRepository struct {
	coll *mongo.Collection
}

// NewUserRepository creates a MongoDB-backed user repository.
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(usersCollection)}
}

// Create inserts a new user document.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongoDB, "CreateUser", "users.insertOne")
	defer func() { end(err) }()

	now := time.Now().UTC()
	doc := userDocument{
		ID:           primitive.NewObjectID(),
		Username:     u.Username,
		Email:        u.Email,
		FullName:     u.FullName,
		Avatar:       u.Avatar,
		CoverImage:   u.CoverImage,
		WatchHistory: []primitive.ObjectID{},
		Password:     u.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err = r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return duplicateUser(err, u.Username, u.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}

	u.ID = doc.ID.Hex()
	u.WatchHistory = []string{}
	u.CreatedAt, u.UpdatedAt = now, now
	return nil
}

// GetByID retrieves a user by ObjectID hex.
func (r *UserRepository) GetByID(ctx context.Context, id string) (_ *domain.User, err error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, apperrors.ErrNotFound
	}

	ctx, end := database.TraceQuery(ctx, database.SystemMongoDB, "GetUserByID", "users.findOne")
	defer func() { end(err) }()

	return r.findOne(ctx, bson.M{"_id": oid})
}

// GetByUsernameOrEmail retrieves the user matching either identifier.
func (r *UserRepository) GetByUsernameOrEmail(ctx context.Context, username, email string) (_ *domain.User, err error) {
	var or bson.A
	if username != "" {
		or = append(or, bson.M{"username": username})
	}
	if email != "" {
		or = append(or, bson.M{"email": email})
	}
	if len(or) == 0 {
		return nil, apperrors.ErrNotFound
	}

	ctx, end := database.TraceQuery(ctx, database.SystemMongoDB, "GetUserByUsernameOrEmail", "users.findOne")
	defer func() { end(err) }()

	return r.findOne(ctx, bson.M{"$or": or})
}

// Update sets the non-nil fields of upd and returns the updated document.
func (r *UserRepository) Update(ctx context.Context, id string, upd domain.UserUpdate) (_ *domain.User, err error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, apperrors.NotFound("user", id)
	}

	ctx, end := database.TraceQuery(ctx, database.SystemMongoDB, "UpdateUser", "users.findOneAndUpdate")
	defer func() { end(err) }()

	set := bson.M{"updatedAt": time.Now().UTC()}
	if upd.FullName != nil {
		set["fullName"] = *upd.FullName
	}
	if upd.Email != nil {
		set["email"] = *upd.Email
	}
	if upd.Avatar != nil {
		set["avatar"] = *upd.Avatar
	}
	if upd.CoverImage != nil {
		set["coverImage"] = *upd.CoverImage
	}
	if upd.PasswordHash != nil {
		set["password"] = *upd.PasswordHash
	}

	var doc userDocument
	err = r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return nil, apperrors.NotFound("user", id)
		case mongo.IsDuplicateKeyError(err):
			email := ""
			if upd.Email != nil {
				email = *upd.Email
			}
			return nil, apperrors.AlreadyExists("user", "email", email)
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return doc.toDomain(), nil
}

// SetRefreshToken overwrites the stored refresh token.
func (r *UserRepository) SetRefreshToken(ctx context.Context, id, token string) (err error) {
	oid, ok := objectID(id)
	if !ok {
		return apperrors.NotFound("user", id)
	}

	ctx, end := database.TraceQuery(ctx, database.SystemMongoDB, "SetRefreshToken", "users.updateOne")
	defer func() { end(err) }()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"refreshToken": token}})
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("user", id)
	}
	return nil
}

// SwapRefreshToken sets next only where the stored token equals expected.
// The filter and update run as one single-document operation.
func (r *UserRepository) SwapRefreshToken(ctx context.Context, id, expected, next string) (_ bool, err error) {
	oid, ok := objectID(id)
	if !ok || expected == "" {
		return false, nil
	}

	ctx, end := database.TraceQuery(ctx, database.SystemMongoDB, "SwapRefreshToken", "users.updateOne")
	defer func() { end(err) }()

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "refreshToken": expected},
		bson.M{"$set": bson.M{"refreshToken": next}},
	)
	if err != nil {
		return false, fmt.Errorf("swap refresh token: %w", err)
	}
	return res.MatchedCount == 1, nil
}

// UnsetRefreshToken removes the refreshToken field.
func (r *UserRepository) UnsetRefreshToken(ctx context.Context, id string) (err error) {
	oid, ok := objectID(id)
	if !ok {
		return nil
	}

	ctx, end := database.TraceQuery(ctx, database.SystemMongoDB, "UnsetRefreshToken", "users.updateOne")
	defer func() { end(err) }()

	if _, err = r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$unset": bson.M{"refreshToken": 1}}); err != nil {
		return fmt.Errorf("unset refresh token: %w", err)
	}
	return nil
}

// AppendWatchHistory pushes videoID onto the user's watch history.
func (r *UserRepository) AppendWatchHistory(ctx context.Context, userID, videoID string) (err error) {
	uid, ok := objectID(userID)
	if !ok {
		return apperrors.NotFound("user", userID)
	}
	vid, ok := objectID(videoID)
	if !ok {
		return apperrors.InvalidInput("invalid video id")
	}

	ctx, end := database.TraceQuery(ctx, database.SystemMongoDB, "AppendWatchHistory", "users.updateOne")
	defer func() { end(err) }()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": uid}, bson.M{"$push": bson.M{"watchHistory": vid}})
	if err != nil {
		return fmt.Errorf("append watch history: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("user", userID)
	}
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.toDomain(), nil
}

// duplicateUser names the field whose unique index rejected the write.
func duplicateUser(err error, username, email string) error {
	if strings.Contains(err.Error(), "email") {
		return apperrors.AlreadyExists("user", "email", email)
	}
	return apperrors.AlreadyExists("user", "username", username)
}
