// Package repositories contains MongoDB repository implementations.
package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"norelock.dev/waveroom/backend/internal/models"
	"norelock.dev/waveroom/backend/internal/utils"
)

// Collection name
const (
	userCollection = "users"
)

// UserRepository defines the interface for user data access operations.
type UserRepository interface {
	// Create creates a new user.
	Create(ctx context.Context, user *models.User) error

	// FindByID finds a user by their ID.
	FindByID(ctx context.Context, id bson.ObjectID) (*models.User, error)

	// FindByEmail finds a user by their email address.
	FindByEmail(ctx context.Context, email string) (*models.User, error)

	// FindByUsername finds a user by their username.
	FindByUsername(ctx context.Context, username string) (*models.User, error)

	// FindByIDs finds users by a set of IDs.
	FindByIDs(ctx context.Context, ids []bson.ObjectID) ([]*models.User, error)

	// UpdateLastLogin updates a user's last login time.
	UpdateLastLogin(ctx context.Context, id bson.ObjectID) error

	// Delete deletes a user by their ID.
	Delete(ctx context.Context, id bson.ObjectID) error

	// CountUsers counts the number of users that match the given filter.
	CountUsers(ctx context.Context, filter bson.M) (int64, error)
}

// userRepository is the MongoDB implementation of UserRepository.
type userRepository struct {
	collection *mongo.Collection
	logger     *utils.Logger
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *mongo.Database, logger *utils.Logger) UserRepository {
	return &userRepository{
		collection: db.Collection(userCollection),
		logger:     logger.Named("user_repository"),
	}
}

// Create creates a new user.
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = bson.NewObjectID()
	}

	user.CreateNow()

	_, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.ErrUserAlreadyExists
		}
		r.logger.Error("Failed to create user", err, "email", user.Email, "username", user.Username)
		return models.NewInternalError(err)
	}

	return nil
}

// FindByID finds a user by their ID.
func (r *userRepository) FindByID(ctx context.Context, id bson.ObjectID) (*models.User, error) {
	var user models.User

	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrUserNotFound
		}
		r.logger.Error("Failed to find user by ID", err, "id", id.Hex())
		return nil, models.NewInternalError(err)
	}

	return &user, nil
}

// FindByEmail finds a user by their email address.
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User

	err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrUserNotFound
		}
		r.logger.Error("Failed to find user by email", err, "email", email)
		return nil, models.NewInternalError(err)
	}

	return &user, nil
}

// FindByUsername finds a user by their username.
func (r *userRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User

	// Case-insensitive search
	opts := options.FindOne().SetCollation(&options.Collation{
		Locale:    "en",
		Strength:  2,
		CaseLevel: false,
	})

	err := r.collection.FindOne(ctx, bson.M{"username": username}, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrUserNotFound
		}
		r.logger.Error("Failed to find user by username", err, "username", username)
		return nil, models.NewInternalError(err)
	}

	return &user, nil
}

// FindByIDs finds users by a set of IDs.
func (r *userRepository) FindByIDs(ctx context.Context, ids []bson.ObjectID) ([]*models.User, error) {
	if len(ids) == 0 {
		return []*models.User{}, nil
	}

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		r.logger.Error("Failed to find users by IDs", err, "count", len(ids))
		return nil, models.NewInternalError(err)
	}
	defer cursor.Close(ctx)

	var users []*models.User
	if err = cursor.All(ctx, &users); err != nil {
		r.logger.Error("Failed to decode users", err)
		return nil, models.NewInternalError(err)
	}

	return users, nil
}

// UpdateLastLogin updates a user's last login time.
func (r *userRepository) UpdateLastLogin(ctx context.Context, id bson.ObjectID) error {
	now := time.Now()
	update := bson.D{
		cmdSet(bson.M{
			"lastLoginAt": now,
			"updatedAt":   now,
		}),
	}

	result, err := r.collection.UpdateByID(ctx, id, update)
	if err != nil {
		r.logger.Error("Failed to update last login", err, "id", id.Hex())
		return models.NewInternalError(err)
	}

	if result.MatchedCount == 0 {
		return models.ErrUserNotFound
	}

	return nil
}

// Delete deletes a user by their ID.
func (r *userRepository) Delete(ctx context.Context, id bson.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		r.logger.Error("Failed to delete user", err, "id", id.Hex())
		return models.NewInternalError(err)
	}

	if result.DeletedCount == 0 {
		return models.ErrUserNotFound
	}

	return nil
}

// CountUsers counts the number of users that match the given filter.
func (r *userRepository) CountUsers(ctx context.Context, filter bson.M) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		r.logger.Error("Failed to count users", err, "filter", filter)
		return 0, models.NewInternalError(err)
	}

	return count, nil
}
