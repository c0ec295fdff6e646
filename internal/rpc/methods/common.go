package methods

import (
	"go.mongodb.org/mongo-driver/v2/bson"
	"norelock.dev/waveroom/backend/internal/rpc"
)

// RoomIDParam is a struct for room ID parameter.
type RoomIDParam struct {
	RoomID string `json:"roomId"`
}

// EntryParams identifies a queue entry within a room.
type EntryParams struct {
	RoomID  string `json:"roomId"`
	EntryID string `json:"entryId"`
}

// parseRoomID parses and validates a room ID parameter.
func parseRoomID(hex string) (bson.ObjectID, error) {
	if hex == "" {
		return bson.ObjectID{}, rpc.NewError(rpc.ErrInvalidParams, "roomId is required", nil)
	}
	id, err := bson.ObjectIDFromHex(hex)
	if err != nil {
		return bson.ObjectID{}, rpc.NewError(rpc.ErrInvalidParams, "invalid roomId", nil)
	}
	return id, nil
}

// callerID parses the authenticated user's ID from the client.
func callerID(client *rpc.Client) (bson.ObjectID, error) {
	id, err := bson.ObjectIDFromHex(client.UserID)
	if err != nil {
		return bson.ObjectID{}, rpc.NewAuthenticationRequiredError()
	}
	return id, nil
}
