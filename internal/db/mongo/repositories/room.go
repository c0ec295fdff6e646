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

// Collection names
const (
	roomCollection        = "rooms"
	roomMembersCollection = "room_members"
)

// RoomRepository defines the interface for room data access operations.
type RoomRepository interface {
	// Room operations
	Create(ctx context.Context, room *models.Room) error
	FindByID(ctx context.Context, id bson.ObjectID) (*models.Room, error)
	FindByCode(ctx context.Context, code string) (*models.Room, error)
	FindActive(ctx context.Context, skip, limit int) ([]*models.Room, error)
	FindInactiveBefore(ctx context.Context, before time.Time, limit int) ([]*models.Room, error)
	Update(ctx context.Context, room *models.Room) error
	SetActive(ctx context.Context, id bson.ObjectID, active bool) error
	SetOwner(ctx context.Context, roomID, ownerID bson.ObjectID) error
	CountRooms(ctx context.Context, filter bson.M) (int64, error)
	Delete(ctx context.Context, id bson.ObjectID) error

	// Membership operations
	AddMember(ctx context.Context, membership *models.Membership) error
	RemoveMember(ctx context.Context, roomID, userID bson.ObjectID) error
	FindMembers(ctx context.Context, roomID bson.ObjectID) ([]*models.Membership, error)
	FindMembership(ctx context.Context, roomID, userID bson.ObjectID) (*models.Membership, error)
	FindUserMembership(ctx context.Context, userID bson.ObjectID) (*models.Membership, error)
	CountMembers(ctx context.Context, roomID bson.ObjectID) (int64, error)
	SetMemberRole(ctx context.Context, roomID, userID bson.ObjectID, role string) error
	EarliestMember(ctx context.Context, roomID bson.ObjectID, exclude []bson.ObjectID) (*models.Membership, error)
	TouchMember(ctx context.Context, roomID, userID bson.ObjectID) error
}

// roomRepository is the MongoDB implementation of RoomRepository.
type roomRepository struct {
	roomCollection   *mongo.Collection
	memberCollection *mongo.Collection
	logger           *utils.Logger
}

// NewRoomRepository creates a new instance of RoomRepository.
func NewRoomRepository(db *mongo.Database, logger *utils.Logger) RoomRepository {
	return &roomRepository{
		roomCollection:   db.Collection(roomCollection),
		memberCollection: db.Collection(roomMembersCollection),
		logger:           logger.Named("room_repository"),
	}
}

// Create creates a new room. Callers generate the room code and retry on
// ErrRoomCodeTaken; the partial unique index only covers active rooms.
func (r *roomRepository) Create(ctx context.Context, room *models.Room) error {
	if room.ID.IsZero() {
		room.ID = bson.NewObjectID()
	}

	room.CreateNow()

	_, err := r.roomCollection.InsertOne(ctx, room)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.ErrRoomCodeTaken
		}
		r.logger.Error("Failed to create room", err, "name", room.Name)
		return models.NewInternalError(err)
	}

	return nil
}

// FindByID finds a room by its ID.
func (r *roomRepository) FindByID(ctx context.Context, id bson.ObjectID) (*models.Room, error) {
	var room models.Room

	err := r.roomCollection.FindOne(ctx, bson.M{"_id": id}).Decode(&room)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrRoomNotFound
		}
		r.logger.Error("Failed to find room by ID", err, "id", id.Hex())
		return nil, models.NewInternalError(err)
	}

	return &room, nil
}

// FindByCode finds an active room by its join code.
func (r *roomRepository) FindByCode(ctx context.Context, code string) (*models.Room, error) {
	var room models.Room

	err := r.roomCollection.FindOne(ctx, bson.M{"code": code, "isActive": true}).Decode(&room)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrRoomNotFound
		}
		r.logger.Error("Failed to find room by code", err, "code", code)
		return nil, models.NewInternalError(err)
	}

	return &room, nil
}

// FindActive lists active rooms, most recently updated first.
func (r *roomRepository) FindActive(ctx context.Context, skip, limit int) ([]*models.Room, error) {
	opts := options.Find().
		SetSkip(int64(skip)).
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "updatedAt", Value: -1}})

	cursor, err := r.roomCollection.Find(ctx, bson.M{"isActive": true}, opts)
	if err != nil {
		r.logger.Error("Failed to find active rooms", err)
		return nil, models.NewInternalError(err)
	}
	defer cursor.Close(ctx)

	var rooms []*models.Room
	if err = cursor.All(ctx, &rooms); err != nil {
		r.logger.Error("Failed to decode rooms", err)
		return nil, models.NewInternalError(err)
	}

	return rooms, nil
}

// FindInactiveBefore lists inactive rooms last updated before the given
// time. Maintenance uses this to purge their remnants.
func (r *roomRepository) FindInactiveBefore(ctx context.Context, before time.Time, limit int) ([]*models.Room, error) {
	opts := options.Find().
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "updatedAt", Value: 1}})

	filter := bson.M{"isActive": false, "updatedAt": bson.M{"$lt": before}}
	cursor, err := r.roomCollection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to find inactive rooms", err)
		return nil, models.NewInternalError(err)
	}
	defer cursor.Close(ctx)

	var rooms []*models.Room
	if err = cursor.All(ctx, &rooms); err != nil {
		r.logger.Error("Failed to decode rooms", err)
		return nil, models.NewInternalError(err)
	}

	return rooms, nil
}

// Update updates an existing room.
func (r *roomRepository) Update(ctx context.Context, room *models.Room) error {
	room.UpdateNow()

	result, err := r.roomCollection.ReplaceOne(ctx, bson.M{"_id": room.ID}, room)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.ErrRoomCodeTaken
		}
		r.logger.Error("Failed to update room", err, "id", room.ID.Hex())
		return models.NewInternalError(err)
	}

	if result.MatchedCount == 0 {
		return models.ErrRoomNotFound
	}

	return nil
}

// SetActive sets a room's active status.
func (r *roomRepository) SetActive(ctx context.Context, id bson.ObjectID, active bool) error {
	update := bson.D{
		cmdSet(bson.M{
			"isActive":  active,
			"updatedAt": time.Now(),
		}),
	}

	result, err := r.roomCollection.UpdateByID(ctx, id, update)
	if err != nil {
		r.logger.Error("Failed to set room active status", err, "id", id.Hex(), "active", active)
		return models.NewInternalError(err)
	}

	if result.MatchedCount == 0 {
		return models.ErrRoomNotFound
	}

	return nil
}

// SetOwner transfers room ownership.
func (r *roomRepository) SetOwner(ctx context.Context, roomID, ownerID bson.ObjectID) error {
	update := bson.D{
		cmdSet(bson.M{
			"ownerId":   ownerID,
			"updatedAt": time.Now(),
		}),
	}

	result, err := r.roomCollection.UpdateByID(ctx, roomID, update)
	if err != nil {
		r.logger.Error("Failed to set room owner", err, "roomId", roomID.Hex(), "ownerId", ownerID.Hex())
		return models.NewInternalError(err)
	}

	if result.MatchedCount == 0 {
		return models.ErrRoomNotFound
	}

	return nil
}

// CountRooms counts rooms matching the given filter.
func (r *roomRepository) CountRooms(ctx context.Context, filter bson.M) (int64, error) {
	count, err := r.roomCollection.CountDocuments(ctx, filter)
	if err != nil {
		r.logger.Error("Failed to count rooms", err, "filter", filter)
		return 0, models.NewInternalError(err)
	}

	return count, nil
}

// Delete removes a room and its membership rows.
func (r *roomRepository) Delete(ctx context.Context, id bson.ObjectID) error {
	if _, err := r.memberCollection.DeleteMany(ctx, bson.M{"roomId": id}); err != nil {
		r.logger.Error("Failed to delete room members", err, "roomId", id.Hex())
		return models.NewInternalError(err)
	}

	if _, err := r.roomCollection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		r.logger.Error("Failed to delete room", err, "id", id.Hex())
		return models.NewInternalError(err)
	}

	return nil
}

// AddMember adds a membership row. The unique roomId+userId index rejects
// duplicate joins.
func (r *roomRepository) AddMember(ctx context.Context, membership *models.Membership) error {
	if membership.ID.IsZero() {
		membership.ID = bson.NewObjectID()
	}

	now := time.Now()
	if membership.JoinedAt.IsZero() {
		membership.JoinedAt = now
	}
	membership.LastActive = now

	_, err := r.memberCollection.InsertOne(ctx, membership)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.ErrAlreadyInRoom
		}
		r.logger.Error("Failed to add room member", err, "roomId", membership.RoomID.Hex(), "userId", membership.UserID.Hex())
		return models.NewInternalError(err)
	}

	return nil
}

// RemoveMember removes a membership row.
func (r *roomRepository) RemoveMember(ctx context.Context, roomID, userID bson.ObjectID) error {
	result, err := r.memberCollection.DeleteOne(ctx, bson.M{"roomId": roomID, "userId": userID})
	if err != nil {
		r.logger.Error("Failed to remove room member", err, "roomId", roomID.Hex(), "userId", userID.Hex())
		return models.NewInternalError(err)
	}

	if result.DeletedCount == 0 {
		return models.ErrNotRoomMember
	}

	return nil
}

// FindMembers returns all members of a room ordered by join time.
func (r *roomRepository) FindMembers(ctx context.Context, roomID bson.ObjectID) ([]*models.Membership, error) {
	opts := options.Find().SetSort(bson.D{{Key: "joinedAt", Value: 1}})

	cursor, err := r.memberCollection.Find(ctx, bson.M{"roomId": roomID}, opts)
	if err != nil {
		r.logger.Error("Failed to find room members", err, "roomId", roomID.Hex())
		return nil, models.NewInternalError(err)
	}
	defer cursor.Close(ctx)

	var members []*models.Membership
	if err = cursor.All(ctx, &members); err != nil {
		r.logger.Error("Failed to decode room members", err, "roomId", roomID.Hex())
		return nil, models.NewInternalError(err)
	}

	return members, nil
}

// FindMembership finds a user's membership in a room.
func (r *roomRepository) FindMembership(ctx context.Context, roomID, userID bson.ObjectID) (*models.Membership, error) {
	var membership models.Membership

	err := r.memberCollection.FindOne(ctx, bson.M{"roomId": roomID, "userId": userID}).Decode(&membership)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotRoomMember
		}
		r.logger.Error("Failed to find membership", err, "roomId", roomID.Hex(), "userId", userID.Hex())
		return nil, models.NewInternalError(err)
	}

	return &membership, nil
}

// FindUserMembership finds the room a user is currently a member of, if any.
func (r *roomRepository) FindUserMembership(ctx context.Context, userID bson.ObjectID) (*models.Membership, error) {
	var membership models.Membership

	err := r.memberCollection.FindOne(ctx, bson.M{"userId": userID}).Decode(&membership)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		r.logger.Error("Failed to find user membership", err, "userId", userID.Hex())
		return nil, models.NewInternalError(err)
	}

	return &membership, nil
}

// CountMembers counts the members of a room.
func (r *roomRepository) CountMembers(ctx context.Context, roomID bson.ObjectID) (int64, error) {
	count, err := r.memberCollection.CountDocuments(ctx, bson.M{"roomId": roomID})
	if err != nil {
		r.logger.Error("Failed to count room members", err, "roomId", roomID.Hex())
		return 0, models.NewInternalError(err)
	}

	return count, nil
}

// SetMemberRole updates a member's role within a room.
func (r *roomRepository) SetMemberRole(ctx context.Context, roomID, userID bson.ObjectID, role string) error {
	update := bson.D{
		cmdSet(bson.M{
			"role":       role,
			"lastActive": time.Now(),
		}),
	}

	result, err := r.memberCollection.UpdateOne(ctx, bson.M{"roomId": roomID, "userId": userID}, update)
	if err != nil {
		r.logger.Error("Failed to set member role", err, "roomId", roomID.Hex(), "userId", userID.Hex(), "role", role)
		return models.NewInternalError(err)
	}

	if result.MatchedCount == 0 {
		return models.ErrNotRoomMember
	}

	return nil
}

// EarliestMember returns the earliest-joined member of a room, excluding the
// given user IDs. Owner succession and election tie-breaks use this order.
func (r *roomRepository) EarliestMember(ctx context.Context, roomID bson.ObjectID, exclude []bson.ObjectID) (*models.Membership, error) {
	filter := bson.M{"roomId": roomID}
	if len(exclude) > 0 {
		filter["userId"] = bson.M{"$nin": exclude}
	}

	opts := options.FindOne().SetSort(bson.D{{Key: "joinedAt", Value: 1}})

	var membership models.Membership
	err := r.memberCollection.FindOne(ctx, filter, opts).Decode(&membership)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		r.logger.Error("Failed to find earliest member", err, "roomId", roomID.Hex())
		return nil, models.NewInternalError(err)
	}

	return &membership, nil
}

// TouchMember refreshes a member's lastActive timestamp.
func (r *roomRepository) TouchMember(ctx context.Context, roomID, userID bson.ObjectID) error {
	update := bson.D{
		cmdSet(bson.M{"lastActive": time.Now()}),
	}

	_, err := r.memberCollection.UpdateOne(ctx, bson.M{"roomId": roomID, "userId": userID}, update)
	if err != nil {
		r.logger.Error("Failed to touch member", err, "roomId", roomID.Hex(), "userId", userID.Hex())
		return models.NewInternalError(err)
	}

	return nil
}
