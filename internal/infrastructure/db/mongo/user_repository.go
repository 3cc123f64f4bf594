package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/videotube/account-service/internal/core/domain"
)

// UserRepository implements ports.UserRepository on the users collection.
type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(usersCollection)}
}

type mongoUser struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty"`
	Username     string               `bson:"username"`
	Email        string               `bson:"email"`
	FullName     string               `bson:"fullName"`
	Password     string               `bson:"password"`
	Avatar       string               `bson:"avatar"`
	CoverImage   *string              `bson:"coverImage,omitempty"`
	RefreshToken string               `bson:"refreshToken,omitempty"`
	WatchHistory []primitive.ObjectID `bson:"watchHistory"`
	CreatedAt    time.Time            `bson:"createdAt"`
	UpdatedAt    time.Time            `bson:"updatedAt"`
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := fromDomainUser(user)
	doc.ID = primitive.NilObjectID

	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		doc.ID = id
	}
	return toDomainUser(doc), nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *UserRepository) FindByIdentifier(ctx context.Context, username, email string) (*domain.User, error) {
	or := bson.A{}
	if username != "" {
		or = append(or, bson.M{"username": username})
	}
	if email != "" {
		or = append(or, bson.M{"email": email})
	}
	if len(or) == 0 {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"$or": or})
}

func (r *UserRepository) SetRefreshTokenHash(ctx context.Context, id, hash string) error {
	update := bson.M{
		"$set":   bson.M{"updatedAt": time.Now().UTC()},
		"$unset": bson.M{"refreshToken": ""},
	}
	if hash != "" {
		update = bson.M{"$set": bson.M{"refreshToken": hash, "updatedAt": time.Now().UTC()}}
	}
	return r.updateOne(ctx, id, nil, update, domain.ErrUserNotFound)
}

// SwapRefreshTokenHash is the rotation primitive: the filter includes the
// previous digest, so of two concurrent swaps from the same slot value only one
// can match.
func (r *UserRepository) SwapRefreshTokenHash(ctx context.Context, id, previous, next string) error {
	update := bson.M{"$set": bson.M{"refreshToken": next, "updatedAt": time.Now().UTC()}}
	return r.updateOne(ctx, id, bson.M{"refreshToken": previous}, update, domain.ErrSessionSlotMismatch)
}

func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	update := bson.M{"$set": bson.M{"password": hash, "updatedAt": time.Now().UTC()}}
	return r.updateOne(ctx, id, nil, update, domain.ErrUserNotFound)
}

func (r *UserRepository) UpdateAccount(ctx context.Context, id, fullName, email string) (*domain.User, error) {
	return r.findOneAndSet(ctx, id, bson.M{"fullName": fullName, "email": email})
}

func (r *UserRepository) UpdateAvatar(ctx context.Context, id, url string) (*domain.User, error) {
	return r.findOneAndSet(ctx, id, bson.M{"avatar": url})
}

func (r *UserRepository) UpdateCoverImage(ctx context.Context, id, url string) (*domain.User, error) {
	return r.findOneAndSet(ctx, id, bson.M{"coverImage": url})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mu mongoUser
	if err := r.coll.FindOne(ctx, filter).Decode(&mu); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return toDomainUser(mu), nil
}

// updateOne applies update to the user id (narrowed by extra) and returns
// notMatched when no document satisfied the filter.
func (r *UserRepository) updateOne(ctx context.Context, id string, extra bson.M, update bson.M, notMatched error) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return notMatched
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"_id": oid}
	for k, v := range extra {
		filter[k] = v
	}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return notMatched
	}
	return nil
}

func (r *UserRepository) findOneAndSet(ctx context.Context, id string, set bson.M) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	set["updatedAt"] = time.Now().UTC()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var mu mongoUser
	err = r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&mu)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return nil, domain.ErrUserNotFound
		case mongo.IsDuplicateKeyError(err):
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return toDomainUser(mu), nil
}

func fromDomainUser(u *domain.User) mongoUser {
	history := make([]primitive.ObjectID, 0, len(u.WatchHistory))
	for _, id := range u.WatchHistory {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			history = append(history, oid)
		}
	}
	return mongoUser{
		Username:     u.Username,
		Email:        u.Email,
		FullName:     u.FullName,
		Password:     u.PasswordHash,
		Avatar:       u.Avatar,
		CoverImage:   u.CoverImage,
		RefreshToken: u.RefreshTokenHash,
		WatchHistory: history,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func toDomainUser(mu mongoUser) *domain.User {
	history := make([]string, 0, len(mu.WatchHistory))
	for _, oid := range mu.WatchHistory {
		history = append(history, oid.Hex())
	}
	return &domain.User{
		ID:               mu.ID.Hex(),
		Username:         mu.Username,
		Email:            mu.Email,
		FullName:         mu.FullName,
		PasswordHash:     mu.Password,
		Avatar:           mu.Avatar,
		CoverImage:       mu.CoverImage,
		RefreshTokenHash: mu.RefreshToken,
		WatchHistory:     history,
		CreatedAt:        mu.CreatedAt.UTC(),
		UpdatedAt:        mu.UpdatedAt.UTC(),
	}
}
