package methods

import (
	"context"

	"norelock.dev/waveroom/backend/internal/rpc"
	"norelock.dev/waveroom/backend/internal/services/room"
	"norelock.dev/waveroom/backend/internal/utils"
)

// DJHandler handles DJ slot RPC methods.
type DJHandler struct {
	dj     *room.DJManager
	logger *utils.Logger
}

// NewDJHandler creates a new DJHandler.
func NewDJHandler(dj *room.DJManager, logger *utils.Logger) *DJHandler {
	return &DJHandler{
		dj:     dj,
		logger: logger,
	}
}

// RegisterMethods registers all DJ-related RPC methods.
func (h *DJHandler) RegisterMethods(hr rpc.HandlerRegistry) {
	auth := hr.Wrap(rpc.AuthMiddleware)
	rpc.Register(auth, rpc.MethodDJBecome, h.Become)
	rpc.Register(auth, rpc.MethodDJStepDown, h.StepDown)
	rpc.Register(auth, rpc.MethodDJSet, h.Set)
	rpc.Register(auth, rpc.MethodDJRandomize, h.Randomize)
}

// Become claims the vacant DJ slot for the caller.
func (h *DJHandler) Become(ctx context.Context, client *rpc.Client, p *RoomIDParam) (any, error) {
	roomID, err := parseRoomID(p.RoomID)
	if err != nil {
		return nil, err
	}

	if err := h.dj.BecomeDJ(ctx, roomID, client.UserID); err != nil {
		return nil, err
	}
	return true, nil
}

// StepDown vacates the DJ slot voluntarily.
func (h *DJHandler) StepDown(ctx context.Context, client *rpc.Client, p *RoomIDParam) (any, error) {
	roomID, err := parseRoomID(p.RoomID)
	if err != nil {
		return nil, err
	}

	if err := h.dj.StepDown(ctx, roomID, client.UserID); err != nil {
		return nil, err
	}
	return true, nil
}

// SetDJParams represents the parameters for the Set method.
type SetDJParams struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

// Set assigns the DJ slot to a member. Owner only.
func (h *DJHandler) Set(ctx context.Context, client *rpc.Client, p *SetDJParams) (any, error) {
	roomID, err := parseRoomID(p.RoomID)
	if err != nil {
		return nil, err
	}
	userID, err := callerID(client)
	if err != nil {
		return nil, err
	}
	if p.UserID == "" {
		return nil, rpc.NewError(rpc.ErrInvalidParams, "userId is required", nil)
	}

	if err := h.dj.SetDJ(ctx, roomID, userID, p.UserID); err != nil {
		return nil, err
	}
	return true, nil
}

// Randomize hands the DJ slot to a random eligible member.
func (h *DJHandler) Randomize(ctx context.Context, client *rpc.Client, p *RoomIDParam) (any, error) {
	roomID, err := parseRoomID(p.RoomID)
	if err != nil {
		return nil, err
	}

	if err := h.dj.RandomizeDJ(ctx, roomID, client.UserID); err != nil {
		return nil, err
	}
	return true, nil
}
