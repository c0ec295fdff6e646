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
	messagesCollection = "messages"
)

// ChatRepository defines the interface for chat message data access operations.
type ChatRepository interface {
	// SaveMessage saves a chat message.
	SaveMessage(ctx context.Context, message *models.ChatMessage) error

	// FindMessagesByRoom returns a room's recent messages, most recent
	// first. before bounds the page by send time when non-zero.
	FindMessagesByRoom(ctx context.Context, roomID bson.ObjectID, limit int, before time.Time) ([]*models.ChatMessage, error)

	// DeleteMessagesByRoom removes all messages for a room.
	DeleteMessagesByRoom(ctx context.Context, roomID bson.ObjectID) (int64, error)
}

// chatRepository is the MongoDB implementation of ChatRepository.
type chatRepository struct {
	collection *mongo.Collection
	logger     *utils.Logger
}

// NewChatRepository creates a new instance of ChatRepository.
func NewChatRepository(db *mongo.Database, logger *utils.Logger) ChatRepository {
	return &chatRepository{
		collection: db.Collection(messagesCollection),
		logger:     logger.Named("chat_repository"),
	}
}

// SaveMessage saves a chat message.
func (r *chatRepository) SaveMessage(ctx context.Context, message *models.ChatMessage) error {
	if message.ID.IsZero() {
		message.ID = bson.NewObjectID()
	}
	if message.SentAt.IsZero() {
		message.SentAt = time.Now()
	}

	_, err := r.collection.InsertOne(ctx, message)
	if err != nil {
		r.logger.Error("Failed to save chat message", err, "roomId", message.RoomID.Hex())
		return models.NewInternalError(err)
	}

	return nil
}

// FindMessagesByRoom returns a room's recent messages, most recent first.
func (r *chatRepository) FindMessagesByRoom(ctx context.Context, roomID bson.ObjectID, limit int, before time.Time) ([]*models.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}

	filter := bson.M{"roomId": roomID}
	if !before.IsZero() {
		filter["sentAt"] = bson.M{"$lt": before}
	}

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "sentAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return []*models.ChatMessage{}, nil
		}
		r.logger.Error("Failed to find chat messages", err, "roomId", roomID.Hex())
		return nil, models.NewInternalError(err)
	}
	defer cursor.Close(ctx)

	var messages []*models.ChatMessage
	if err = cursor.All(ctx, &messages); err != nil {
		r.logger.Error("Failed to decode chat messages", err)
		return nil, models.NewInternalError(err)
	}

	return messages, nil
}

// DeleteMessagesByRoom removes all messages for a room.
func (r *chatRepository) DeleteMessagesByRoom(ctx context.Context, roomID bson.ObjectID) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"roomId": roomID})
	if err != nil {
		r.logger.Error("Failed to delete room messages", err, "roomId", roomID.Hex())
		return 0, models.NewInternalError(err)
	}

	return result.DeletedCount, nil
}
