// Package methods contains RPC method handlers for the application.
package methods

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"norelock.dev/waveroom/backend/internal/models"
	"norelock.dev/waveroom/backend/internal/rpc"
	"norelock.dev/waveroom/backend/internal/services/room"
	"norelock.dev/waveroom/backend/internal/utils"
)

// RoomHandler handles room-related RPC methods.
type RoomHandler struct {
	rooms  *room.Manager
	logger *utils.Logger
}

// NewRoomHandler creates a new RoomHandler.
func NewRoomHandler(rooms *room.Manager, logger *utils.Logger) *RoomHandler {
	return &RoomHandler{
		rooms:  rooms,
		logger: logger,
	}
}

// RegisterMethods registers all room-related RPC methods.
func (h *RoomHandler) RegisterMethods(hr rpc.HandlerRegistry) {
	auth := hr.Wrap(rpc.AuthMiddleware)
	rpc.Register(auth, rpc.MethodRoomCreate, h.CreateRoom)
	rpc.Register(auth, rpc.MethodRoomJoin, h.JoinRoom)
	rpc.Register(auth, rpc.MethodRoomLeave, h.LeaveRoom)
	rpc.Register(auth, rpc.MethodRoomState, h.GetState)
	rpc.Register(hr, rpc.MethodRoomList, h.ListRooms)
	rpc.Register(auth, rpc.MethodRoomUpdateSettings, h.UpdateSettings)
}

// CreateRoom creates a room with the caller as owner and first member, and
// returns the initial room state.
func (h *RoomHandler) CreateRoom(ctx context.Context, client *rpc.Client, p *models.CreateRoomRequest) (any, error) {
	userID, err := callerID(client)
	if err != nil {
		return nil, err
	}

	created, err := h.rooms.CreateRoom(ctx, userID, client.Username, p)
	if err != nil {
		return nil, err
	}

	return h.attach(ctx, client, created.ID)
}

// JoinRoom joins a room by its join code and returns the room state.
func (h *RoomHandler) JoinRoom(ctx context.Context, client *rpc.Client, p *models.JoinRoomRequest) (any, error) {
	userID, err := callerID(client)
	if err != nil {
		return nil, err
	}

	joined, err := h.rooms.JoinRoom(ctx, userID, client.Username, p)
	if err != nil {
		return nil, err
	}

	return h.attach(ctx, client, joined.ID)
}

// attach subscribes the connection and replays room:state from inside the
// room's critical section, so the snapshot precedes every delta the client
// will receive.
func (h *RoomHandler) attach(ctx context.Context, client *rpc.Client, roomID bson.ObjectID) (*models.RoomState, error) {
	state, err := h.rooms.Attach(ctx, roomID, client.UserID, client.JoinRoom, func(state *models.RoomState) {
		client.SendNotification(models.EventRoomState, state)
	})
	if err != nil {
		h.logger.Error("Failed to attach client to room", err, "roomId", roomID.Hex(), "userId", client.UserID)
		return nil, err
	}
	return state, nil
}

// LeaveRoom leaves a room.
func (h *RoomHandler) LeaveRoom(ctx context.Context, client *rpc.Client, p *RoomIDParam) (any, error) {
	roomID, err := parseRoomID(p.RoomID)
	if err != nil {
		return nil, err
	}
	userID, err := callerID(client)
	if err != nil {
		return nil, err
	}

	if err := h.rooms.LeaveRoom(ctx, roomID, userID, models.ReasonVoluntary); err != nil {
		return nil, err
	}

	client.LeaveRoom(p.RoomID)

	return true, nil
}

// GetState returns the room's current state.
func (h *RoomHandler) GetState(ctx context.Context, client *rpc.Client, p *RoomIDParam) (any, error) {
	roomID, err := parseRoomID(p.RoomID)
	if err != nil {
		return nil, err
	}

	return h.rooms.Snapshot(ctx, roomID, client.UserID)
}

// ListRoomsParams represents the parameters for the ListRooms method.
type ListRoomsParams struct {
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
}

// ListRooms lists currently active rooms.
func (h *RoomHandler) ListRooms(ctx context.Context, client *rpc.Client, p *ListRoomsParams) (any, error) {
	if p.Limit <= 0 || p.Limit > 100 {
		p.Limit = 20
	}
	if p.Skip < 0 {
		p.Skip = 0
	}

	rooms, err := h.rooms.ListActiveRooms(ctx, p.Skip, p.Limit)
	if err != nil {
		return nil, err
	}

	return struct {
		Rooms []models.RoomInfo `json:"rooms"`
	}{Rooms: rooms}, nil
}

// UpdateSettingsParams represents the parameters for the UpdateSettings method.
type UpdateSettingsParams struct {
	RoomID   string              `json:"roomId"`
	Settings models.RoomSettings `json:"settings"`
}

// UpdateSettings updates a room's settings. Owner only.
func (h *RoomHandler) UpdateSettings(ctx context.Context, client *rpc.Client, p *UpdateSettingsParams) (any, error) {
	roomID, err := parseRoomID(p.RoomID)
	if err != nil {
		return nil, err
	}
	userID, err := callerID(client)
	if err != nil {
		return nil, err
	}

	updated, err := h.rooms.UpdateSettings(ctx, roomID, userID, p.Settings)
	if err != nil {
		return nil, err
	}

	return updated.Settings, nil
}
