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
	djHistoryCollection = "dj_history"
)

// HistoryRepository defines the interface for DJ history data access
// operations. Every DJ transition appends a row; the active row for a room
// is the one without a removal time.
type HistoryRepository interface {
	// CreateDJHistory records a member taking the DJ slot.
	CreateDJHistory(ctx context.Context, entry *models.DJHistoryEntry) error

	// CloseDJHistory stamps the removal time and reason on the active row
	// for a room.
	CloseDJHistory(ctx context.Context, roomID bson.ObjectID, removedAt time.Time, reason string) error

	// FindDJHistoryByRoom returns a room's DJ history, most recent first.
	FindDJHistoryByRoom(ctx context.Context, roomID bson.ObjectID, skip, limit int) ([]*models.DJHistoryEntry, error)

	// FindDJHistoryByUser returns a user's DJ history, most recent first.
	FindDJHistoryByUser(ctx context.Context, userID bson.ObjectID, skip, limit int) ([]*models.DJHistoryEntry, error)
}

// historyRepository is the MongoDB implementation of HistoryRepository.
type historyRepository struct {
	collection *mongo.Collection
	logger     *utils.Logger
}

// NewHistoryRepository creates a new instance of HistoryRepository.
func NewHistoryRepository(db *mongo.Database, logger *utils.Logger) HistoryRepository {
	return &historyRepository{
		collection: db.Collection(djHistoryCollection),
		logger:     logger.Named("history_repository"),
	}
}

// CreateDJHistory records a member taking the DJ slot.
func (r *historyRepository) CreateDJHistory(ctx context.Context, entry *models.DJHistoryEntry) error {
	if entry.ID.IsZero() {
		entry.ID = bson.NewObjectID()
	}
	if entry.BecameDJAt.IsZero() {
		entry.BecameDJAt = time.Now()
	}

	_, err := r.collection.InsertOne(ctx, entry)
	if err != nil {
		r.logger.Error("Failed to create DJ history entry", err, "roomId", entry.RoomID.Hex(), "userId", entry.UserID.Hex())
		return models.NewInternalError(err)
	}

	return nil
}

// CloseDJHistory stamps the removal time and reason on the active row.
func (r *historyRepository) CloseDJHistory(ctx context.Context, roomID bson.ObjectID, removedAt time.Time, reason string) error {
	filter := bson.M{
		"roomId":    roomID,
		"removedAt": bson.M{"$exists": false},
	}
	update := bson.D{
		cmdSet(bson.M{
			"removedAt": removedAt,
			"reason":    reason,
		}),
	}

	_, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		r.logger.Error("Failed to close DJ history entry", err, "roomId", roomID.Hex())
		return models.NewInternalError(err)
	}

	return nil
}

// FindDJHistoryByRoom returns a room's DJ history, most recent first.
func (r *historyRepository) FindDJHistoryByRoom(ctx context.Context, roomID bson.ObjectID, skip, limit int) ([]*models.DJHistoryEntry, error) {
	return r.find(ctx, bson.M{"roomId": roomID}, skip, limit)
}

// FindDJHistoryByUser returns a user's DJ history, most recent first.
func (r *historyRepository) FindDJHistoryByUser(ctx context.Context, userID bson.ObjectID, skip, limit int) ([]*models.DJHistoryEntry, error) {
	return r.find(ctx, bson.M{"userId": userID}, skip, limit)
}

func (r *historyRepository) find(ctx context.Context, filter bson.M, skip, limit int) ([]*models.DJHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	opts := options.Find().
		SetSkip(int64(skip)).
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "becameDjAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return []*models.DJHistoryEntry{}, nil
		}
		r.logger.Error("Failed to find DJ history", err, "filter", filter)
		return nil, models.NewInternalError(err)
	}
	defer cursor.Close(ctx)

	var entries []*models.DJHistoryEntry
	if err = cursor.All(ctx, &entries); err != nil {
		r.logger.Error("Failed to decode DJ history", err)
		return nil, models.NewInternalError(err)
	}

	return entries, nil
}
