package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/videotube/account-service/internal/core/domain"
)

// ProfileRepository runs the channel profile and watch history aggregations.
type ProfileRepository struct {
	users *mongo.Collection
}

func NewProfileRepository(db *mongo.Database) *ProfileRepository {
	return &ProfileRepository{users: db.Collection(usersCollection)}
}

type channelProfileDoc struct {
	ID                        primitive.ObjectID `bson:"_id"`
	FullName                  string             `bson:"fullName"`
	Username                  string             `bson:"username"`
	Email                     string             `bson:"email"`
	Avatar                    string             `bson:"avatar"`
	CoverImage                *string            `bson:"coverImage,omitempty"`
	SubscribersCount          int64              `bson:"subscribersCount"`
	ChannelsSubscribedToCount int64              `bson:"channelsSubscribedToCount"`
	IsSubscribed              bool               `bson:"isSubscribed"`
}

type videoOwnerDoc struct {
	FullName string `bson:"fullName"`
	Username string `bson:"username"`
	Avatar   string `bson:"avatar"`
}

type videoDoc struct {
	ID          primitive.ObjectID `bson:"_id"`
	VideoFile   string             `bson:"videoFile"`
	Thumbnail   string             `bson:"thumbnail"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	Duration    float64            `bson:"duration"`
	Views       int64              `bson:"views"`
	IsPublished bool               `bson:"isPublished"`
	Owner       *videoOwnerDoc     `bson:"owner,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt"`
}

// ChannelProfile matches the channel by username and joins subscriptions twice:
// once as the channel (its subscribers) and once as the subscriber (channels it
// follows).
func (r *ProfileRepository) ChannelProfile(ctx context.Context, viewerID, username string) (*domain.ChannelProfile, error) {
	// An unparsable viewer id can never be among the subscribers.
	viewer, _ := primitive.ObjectIDFromHex(viewerID)

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cursor, err := r.users.Aggregate(ctx, channelProfilePipeline(viewer, username))
	if err != nil {
		return nil, fmt.Errorf("channel profile: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []channelProfileDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("channel profile decode: %w", err)
	}
	if len(docs) == 0 {
		return nil, domain.ErrChannelNotFound
	}

	d := docs[0]
	return &domain.ChannelProfile{
		ID:                        d.ID.Hex(),
		FullName:                  d.FullName,
		Username:                  d.Username,
		Email:                     d.Email,
		Avatar:                    d.Avatar,
		CoverImage:                d.CoverImage,
		SubscribersCount:          d.SubscribersCount,
		ChannelsSubscribedToCount: d.ChannelsSubscribedToCount,
		IsSubscribed:              d.IsSubscribed,
	}, nil
}

// WatchHistory resolves the user's watchHistory ids into videos with their
// owner's public profile, keeping the order of the stored list.
func (r *ProfileRepository) WatchHistory(ctx context.Context, userID string) ([]domain.VideoView, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cursor, err := r.users.Aggregate(ctx, watchHistoryPipeline(oid))
	if err != nil {
		return nil, fmt.Errorf("watch history: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []videoDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("watch history decode: %w", err)
	}

	videos := make([]domain.VideoView, 0, len(docs))
	for _, d := range docs {
		v := domain.VideoView{
			ID:          d.ID.Hex(),
			VideoFile:   d.VideoFile,
			Thumbnail:   d.Thumbnail,
			Title:       d.Title,
			Description: d.Description,
			Duration:    d.Duration,
			Views:       d.Views,
			IsPublished: d.IsPublished,
			CreatedAt:   d.CreatedAt.UTC(),
		}
		if d.Owner != nil {
			v.Owner = &domain.VideoOwner{
				FullName: d.Owner.FullName,
				Username: d.Owner.Username,
				Avatar:   d.Owner.Avatar,
			}
		}
		videos = append(videos, v)
	}
	return videos, nil
}

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
			"subscribersCount":          bson.M{"$size": "$subscribers"},
			"channelsSubscribedToCount": bson.M{"$size": "$subscribedTo"},
			"isSubscribed": bson.M{"$cond": bson.M{
				"if":   bson.M{"$in": bson.A{viewer, "$subscribers.subscriber"}},
				"then": true,
				"else": false,
			}},
		}}},
		{{Key: "$project", Value: bson.M{
			"fullName":                  1,
			"username":                  1,
			"email":                     1,
			"avatar":                    1,
			"coverImage":                1,
			"subscribersCount":          1,
			"channelsSubscribedToCount": 1,
			"isSubscribed":              1,
		}}},
		{{Key: "$limit", Value: 1}},
	}
}

// watchHistoryPipeline unwinds the history with its array index, joins each
// entry to its video (and the video to its owner), then sorts on the index so
// the join cannot reorder entries. Entries whose video is gone are dropped.
func watchHistoryPipeline(userID primitive.ObjectID) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": userID}}},
		{{Key: "$unwind", Value: bson.M{
			"path":              "$watchHistory",
			"includeArrayIndex": "position",
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         videosCollection,
			"localField":   "watchHistory",
			"foreignField": "_id",
			"as":           "video",
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
		{{Key: "$unwind", Value: "$video"}},
		{{Key: "$sort", Value: bson.D{{Key: "position", Value: 1}}}},
		{{Key: "$replaceRoot", Value: bson.M{"newRoot": "$video"}}},
	}
}
