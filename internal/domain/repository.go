package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrUserNotFound is returned when no user record matches a lookup.
var ErrUserNotFound = errors.New("user not found")

type userCollection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

type insertCollection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// UserRepository persists and retrieves users in MongoDB.
type UserRepository struct {
	collection userCollection
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(collection userCollection) *UserRepository {
	return &UserRepository{collection: collection}
}

// Create inserts an unregistered user with populated timestamps.
func (r *UserRepository) Create(ctx context.Context, user User) (User, error) {
	if r == nil || r.collection == nil {
		return User{}, errors.New("user repository is not initialized")
	}
	if ctx == nil {
		return User{}, errors.New("context is required")
	}
	if user.ChatID == 0 {
		return User{}, errors.New("chat_id is required")
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.LastInteraction.IsZero() {
		user.LastInteraction = user.CreatedAt
	}
	user.Registered = false

	if _, err := r.collection.InsertOne(ctx, user); err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	return user, nil
}

// GetByChatID fetches a user by chat_id. Returns ErrUserNotFound when no
// record exists.
func (r *UserRepository) GetByChatID(ctx context.Context, chatID int64) (User, error) {
	if r == nil || r.collection == nil {
		return User{}, errors.New("user repository is not initialized")
	}
	if ctx == nil {
		return User{}, errors.New("context is required")
	}
	if chatID == 0 {
		return User{}, errors.New("chat_id is required")
	}

	result := r.collection.FindOne(ctx, bson.M{"chat_id": chatID})
	if result == nil {
		return User{}, errors.New("find user returned no result")
	}
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("find user: %w", err)
	}

	var user User
	if err := result.Decode(&user); err != nil {
		return User{}, fmt.Errorf("decode user: %w", err)
	}

	return user, nil
}

// TouchInteraction advances last_interaction to now for the given chat_id.
// The field is advisory telemetry; a missing record is not an error here.
func (r *UserRepository) TouchInteraction(ctx context.Context, chatID int64) error {
	if r == nil || r.collection == nil {
		return errors.New("user repository is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if chatID == 0 {
		return errors.New("chat_id is required")
	}

	now := time.Now().UTC().Truncate(time.Millisecond)

	if _, err := r.collection.UpdateOne(ctx,
		bson.M{"chat_id": chatID},
		bson.M{"$set": bson.M{"last_interaction": now}},
	); err != nil {
		return fmt.Errorf("touch last_interaction: %w", err)
	}

	return nil
}

// InteractionRepository appends image-analysis records in MongoDB.
type InteractionRepository struct {
	collection insertCollection
}

// NewInteractionRepository constructs an InteractionRepository.
func NewInteractionRepository(collection insertCollection) *InteractionRepository {
	return &InteractionRepository{collection: collection}
}

// Append writes one interaction record, stamping the timestamp when unset.
func (r *InteractionRepository) Append(ctx context.Context, interaction Interaction) (Interaction, error) {
	if r == nil || r.collection == nil {
		return Interaction{}, errors.New("interaction repository is not initialized")
	}
	if ctx == nil {
		return Interaction{}, errors.New("context is required")
	}
	if interaction.UserID == 0 {
		return Interaction{}, errors.New("user_id is required")
	}
	if interaction.FileID == "" {
		return Interaction{}, errors.New("file_id is required")
	}

	if interaction.Timestamp.IsZero() {
		interaction.Timestamp = time.Now().UTC().Truncate(time.Millisecond)
	}

	if _, err := r.collection.InsertOne(ctx, interaction); err != nil {
		return Interaction{}, fmt.Errorf("insert interaction: %w", err)
	}

	return interaction, nil
}
