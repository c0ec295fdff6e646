// Package mongo provides MongoDB database connectivity and repositories.
package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"norelock.dev/waveroom/backend/internal/utils"
)

// Collection name constants for use throughout the application
const (
	UsersCollection       = "users"
	RoomsCollection       = "rooms"
	RoomMembersCollection = "room_members"
	SubmissionsCollection = "submissions"
	DJHistoryCollection   = "dj_history"
	MessagesCollection    = "messages"
)

// IndexCreator defines a function type for index creation
type IndexCreator func(context.Context, *Client) error

var indexCreators = map[string]IndexCreator{
	UsersCollection:       ensureUserIndexes,
	RoomsCollection:       ensureRoomIndexes,
	SubmissionsCollection: ensureSubmissionIndexes,
	DJHistoryCollection:   ensureDJHistoryIndexes,
	MessagesCollection:    ensureMessageIndexes,
}

// EnsureIndexes creates all necessary indexes for the application
func EnsureIndexes(ctx context.Context, client *Client) error {
	logger := client.Logger().With("operation", "EnsureIndexes")
	logger.Info("Starting index creation for all collections")

	for collection, creator := range indexCreators {
		if err := creator(ctx, client); err != nil {
			logger.Error("Failed to create indexes", err, "collection", collection)
			return fmt.Errorf("failed to create indexes for %s: %w", collection, err)
		}
	}

	logger.Info("Successfully created all indexes")
	return nil
}

// createIndexes is a helper function to create multiple indexes for a collection
func createIndexes(ctx context.Context, collection *mongo.Collection, indexes []mongo.IndexModel, logger *utils.Logger, collectionName string) error {
	if len(indexes) == 0 {
		return nil
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Error("Failed to create indexes", err, "collection", collectionName)
		return err
	}

	logger.Info("Created indexes", "collection", collectionName, "count", len(indexes))
	return nil
}

// ensureUserIndexes creates indexes for the users collection
func ensureUserIndexes(ctx context.Context, client *Client) error {
	collection := client.Collection(UsersCollection)
	logger := client.Logger().With("operation", "ensureUserIndexes")

	indexes := []mongo.IndexModel{
		// Email index (unique)
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		// Username index (unique, case-insensitive)
		{
			Keys: bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetCollation(&options.Collation{
				Locale:    "en",
				Strength:  2,
				CaseLevel: false,
			}),
		},
		// CreatedAt index (for sorting and filtering)
		{
			Keys:    bson.D{{Key: "createdAt", Value: 1}},
			Options: options.Index(),
		},
	}

	return createIndexes(ctx, collection, indexes, logger, UsersCollection)
}

// ensureRoomIndexes creates indexes for room-related collections
func ensureRoomIndexes(ctx context.Context, client *Client) error {
	roomCollection := client.Collection(RoomsCollection)
	memberCollection := client.Collection(RoomMembersCollection)
	logger := client.Logger().With("operation", "ensureRoomIndexes")

	roomIndexes := []mongo.IndexModel{
		// Code index, unique among active rooms so codes can be recycled
		// after deactivation
		{
			Keys: bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "isActive", Value: true}}),
		},
		// Name text index (for discovery search)
		{
			Keys:    bson.D{{Key: "name", Value: "text"}},
			Options: options.Index().SetWeights(bson.D{{Key: "name", Value: 10}}),
		},
		// Owner index
		{
			Keys:    bson.D{{Key: "ownerId", Value: 1}},
			Options: options.Index(),
		},
		// Active + UpdatedAt index (for discovery listing)
		{
			Keys: bson.D{
				{Key: "isActive", Value: 1},
				{Key: "updatedAt", Value: -1},
			},
			Options: options.Index(),
		},
	}

	memberIndexes := []mongo.IndexModel{
		// RoomId + UserId unique index
		{
			Keys: bson.D{
				{Key: "roomId", Value: 1},
				{Key: "userId", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		// RoomId + JoinedAt index (owner succession picks earliest joined)
		{
			Keys: bson.D{
				{Key: "roomId", Value: 1},
				{Key: "joinedAt", Value: 1},
			},
			Options: options.Index(),
		},
		// TTL index for stale memberships
		{
			Keys:    bson.D{{Key: "lastActive", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(3600 * 24 * 7),
		},
	}

	if err := createIndexes(ctx, roomCollection, roomIndexes, logger, RoomsCollection); err != nil {
		return err
	}

	return createIndexes(ctx, memberCollection, memberIndexes, logger, RoomMembersCollection)
}

// ensureSubmissionIndexes creates indexes for the submissions collection
func ensureSubmissionIndexes(ctx context.Context, client *Client) error {
	collection := client.Collection(SubmissionsCollection)
	logger := client.Logger().With("operation", "ensureSubmissionIndexes")

	indexes := []mongo.IndexModel{
		// Queue ordering: unplayed entries by score desc, age asc
		{
			Keys: bson.D{
				{Key: "roomId", Value: 1},
				{Key: "played", Value: 1},
				{Key: "netScore", Value: -1},
				{Key: "createdAt", Value: 1},
			},
			Options: options.Index(),
		},
		// Submitter index
		{
			Keys:    bson.D{{Key: "submitterId", Value: 1}},
			Options: options.Index(),
		},
		// TTL index
		{
			Keys:    bson.D{{Key: "createdAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(3600 * 24 * 30),
		},
	}

	return createIndexes(ctx, collection, indexes, logger, SubmissionsCollection)
}

// ensureDJHistoryIndexes creates indexes for the dj_history collection
func ensureDJHistoryIndexes(ctx context.Context, client *Client) error {
	collection := client.Collection(DJHistoryCollection)
	logger := client.Logger().With("operation", "ensureDJHistoryIndexes")

	indexes := []mongo.IndexModel{
		// Room + BecameDJAt index
		{
			Keys: bson.D{
				{Key: "roomId", Value: 1},
				{Key: "becameDjAt", Value: -1},
			},
			Options: options.Index(),
		},
		// User index
		{
			Keys:    bson.D{{Key: "userId", Value: 1}},
			Options: options.Index(),
		},
		// TTL index
		{
			Keys:    bson.D{{Key: "becameDjAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(3600 * 24 * 180),
		},
	}

	return createIndexes(ctx, collection, indexes, logger, DJHistoryCollection)
}

// ensureMessageIndexes creates indexes for the messages collection
func ensureMessageIndexes(ctx context.Context, client *Client) error {
	collection := client.Collection(MessagesCollection)
	logger := client.Logger().With("operation", "ensureMessageIndexes")

	indexes := []mongo.IndexModel{
		// Room + SentAt index
		{
			Keys: bson.D{
				{Key: "roomId", Value: 1},
				{Key: "sentAt", Value: -1},
			},
			Options: options.Index(),
		},
		// User index
		{
			Keys:    bson.D{{Key: "userId", Value: 1}},
			Options: options.Index(),
		},
		// TTL index
		{
			Keys:    bson.D{{Key: "sentAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(3600 * 24 * 30),
		},
	}

	return createIndexes(ctx, collection, indexes, logger, MessagesCollection)
}
