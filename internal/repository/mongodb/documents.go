package mongodb

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vidtube/backend/internal/domain"
)

const (
	usersCollection         = "users"
	subscriptionsCollection = "subscriptions"
	videosCollection        = "videos"
)

type userDocument struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty"`
	Username     string               `bson:"username"`
	Email        string               `bson:"email"`
	FullName     string               `bson:"fullName"`
	Avatar       string               `bson:"avatar"`
	CoverImage   string               `bson:"coverImage,omitempty"`
	WatchHistory []primitive.ObjectID `bson:"watchHistory"`
	Password     string               `bson:"password"`
	RefreshToken string               `bson:"refreshToken,omitempty"`
	CreatedAt    time.Time            `bson:"createdAt"`
	UpdatedAt    time.Time            `bson:"updatedAt"`
}

func (d *userDocument) toDomain() *domain.User {
	history := make([]string, 0, len(d.WatchHistory))
	for _, id := range d.WatchHistory {
		history = append(history, id.Hex())
	}
	return &domain.User{
		ID:           d.ID.Hex(),
		Username:     d.Username,
		Email:        d.Email,
		FullName:     d.FullName,
		Avatar:       d.Avatar,
		CoverImage:   d.CoverImage,
		WatchHistory: history,
		PasswordHash: d.Password,
		RefreshToken: d.RefreshToken,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

type subscriptionDocument struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Subscriber primitive.ObjectID `bson:"subscriber"`
	Channel    primitive.ObjectID `bson:"channel"`
	CreatedAt  time.Time          `bson:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt"`
}

type videoDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	VideoFile   string             `bson:"videoFile"`
	Thumbnail   string             `bson:"thumbnail"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	Duration    float64            `bson:"duration"`
	Views       int64              `bson:"views"`
	IsPublished bool               `bson:"isPublished"`
	Owner       primitive.ObjectID `bson:"owner"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

// ownerDocument is the projection produced by the nested owner $lookup.
type ownerDocument struct {
	ID       primitive.ObjectID `bson:"_id"`
	FullName string             `bson:"fullName"`
	Username string             `bson:"username"`
	Avatar   string             `bson:"avatar"`
}

// watchedVideoDocument is a video after its owner has been joined in.
type watchedVideoDocument struct {
	ID          primitive.ObjectID `bson:"_id"`
	VideoFile   string             `bson:"videoFile"`
	Thumbnail   string             `bson:"thumbnail"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	Duration    float64            `bson:"duration"`
	Views       int64              `bson:"views"`
	IsPublished bool               `bson:"isPublished"`
	Owner       *ownerDocument     `bson:"owner"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

func (d *watchedVideoDocument) toDomain() domain.WatchedVideo {
	var owner *domain.VideoOwner
	if d.Owner != nil {
		owner = &domain.VideoOwner{
			ID:       d.Owner.ID.Hex(),
			FullName: d.Owner.FullName,
			Username: d.Owner.Username,
			Avatar:   d.Owner.Avatar,
		}
	}
	return domain.WatchedVideo{
		ID:          d.ID.Hex(),
		VideoFile:   d.VideoFile,
		Thumbnail:   d.Thumbnail,
		Title:       d.Title,
		Description: d.Description,
		Duration:    d.Duration,
		Views:       d.Views,
		IsPublished: d.IsPublished,
		Owner:       owner,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type channelProfileDocument struct {
	ID                primitive.ObjectID `bson:"_id"`
	FullName          string             `bson:"fullName"`
	Username          string             `bson:"username"`
	Email             string             `bson:"email"`
	SubscribersCount  int64              `bson:"subscribersCount"`
	SubscribedToCount int64              `bson:"subscribedToCount"`
	IsSubscribed      bool               `bson:"isSubscribed"`
	Avatar            string             `bson:"avatar"`
	CoverImage        string             `bson:"coverImage"`
}

type watchHistoryDocument struct {
	WatchHistory []primitive.ObjectID   `bson:"watchHistory"`
	Videos       []watchedVideoDocument `bson:"videos"`
}

// objectID parses a hex id. Malformed ids can never match a document, so
// callers treat the error as not found.
func objectID(hex string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(hex)
	return id, err == nil
}
