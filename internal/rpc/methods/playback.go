package methods

import (
	"context"

	"norelock.dev/waveroom/backend/internal/rpc"
	"norelock.dev/waveroom/backend/internal/services/room"
	"norelock.dev/waveroom/backend/internal/utils"
)

// PlaybackHandler handles playback RPC methods. All of them are DJ-only;
// the service enforces that.
type PlaybackHandler struct {
	playback *room.PlaybackManager
	logger   *utils.Logger
}

// NewPlaybackHandler creates a new PlaybackHandler.
func NewPlaybackHandler(playback *room.PlaybackManager, logger *utils.Logger) *PlaybackHandler {
	return &PlaybackHandler{
		playback: playback,
		logger:   logger,
	}
}

// RegisterMethods registers all playback-related RPC methods.
func (h *PlaybackHandler) RegisterMethods(hr rpc.HandlerRegistry) {
	auth := hr.Wrap(rpc.AuthMiddleware)
	rpc.Register(auth, rpc.MethodPlaybackStart, h.Start)
	rpc.Register(auth, rpc.MethodPlaybackEnded, h.Ended)
	rpc.Register(auth, rpc.MethodPlaybackPause, h.Pause)
	rpc.Register(auth, rpc.MethodPlaybackResume, h.Resume)
	rpc.Register(auth, rpc.MethodPlaybackStop, h.Stop)
}

// Start begins scheduled playback of a queue entry.
func (h *PlaybackHandler) Start(ctx context.Context, client *rpc.Client, p *EntryParams) (any, error) {
	roomID, err := parseRoomID(p.RoomID)
	if err != nil {
		return nil, err
	}
	if p.EntryID == "" {
		return nil, rpc.NewError(rpc.ErrInvalidParams, "entryId is required", nil)
	}

	if err := h.playback.Start(ctx, roomID, client.UserID, p.EntryID); err != nil {
		return nil, err
	}
	return true, nil
}

// Ended reports that the current track finished playing on the DJ's client.
// The room advances to the next queued entry, or stops when the queue is
// empty.
func (h *PlaybackHandler) Ended(ctx context.Context, client *rpc.Client, p *EntryParams) (any, error) {
	roomID, err := parseRoomID(p.RoomID)
	if err != nil {
		return nil, err
	}
	if p.EntryID == "" {
		return nil, rpc.NewError(rpc.ErrInvalidParams, "entryId is required", nil)
	}

	if err := h.playback.ReportEnded(ctx, roomID, client.UserID, p.EntryID); err != nil {
		return nil, err
	}
	return true, nil
}

// PauseParams represents the parameters for the Pause method.
type PauseParams struct {
	RoomID     string `json:"roomId"`
	PositionMs int64  `json:"positionMs"`
}

// Pause pauses playback at the reported position.
func (h *PlaybackHandler) Pause(ctx context.Context, client *rpc.Client, p *PauseParams) (any, error) {
	roomID, err := parseRoomID(p.RoomID)
	if err != nil {
		return nil, err
	}
	if p.PositionMs < 0 {
		return nil, rpc.NewError(rpc.ErrInvalidParams, "positionMs must not be negative", nil)
	}

	if err := h.playback.Pause(ctx, roomID, client.UserID, p.PositionMs); err != nil {
		return nil, err
	}
	return true, nil
}

// Resume resumes paused playback with a fresh scheduled start.
func (h *PlaybackHandler) Resume(ctx context.Context, client *rpc.Client, p *RoomIDParam) (any, error) {
	roomID, err := parseRoomID(p.RoomID)
	if err != nil {
		return nil, err
	}

	if err := h.playback.Resume(ctx, roomID, client.UserID); err != nil {
		return nil, err
	}
	return true, nil
}

// Stop stops playback without advancing the queue.
func (h *PlaybackHandler) Stop(ctx context.Context, client *rpc.Client, p *RoomIDParam) (any, error) {
	roomID, err := parseRoomID(p.RoomID)
	if err != nil {
		return nil, err
	}

	if err := h.playback.Stop(ctx, roomID, client.UserID); err != nil {
		return nil, err
	}
	return true, nil
}
