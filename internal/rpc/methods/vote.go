package methods

import (
	"context"

	"norelock.dev/waveroom/backend/internal/models"
	"norelock.dev/waveroom/backend/internal/rpc"
	"norelock.dev/waveroom/backend/internal/services/room"
	"norelock.dev/waveroom/backend/internal/utils"
)

// VoteHandler handles DJ election and mutiny RPC methods.
type VoteHandler struct {
	votes  *room.VoteManager
	logger *utils.Logger
}

// NewVoteHandler creates a new VoteHandler.
func NewVoteHandler(votes *room.VoteManager, logger *utils.Logger) *VoteHandler {
	return &VoteHandler{
		votes:  votes,
		logger: logger,
	}
}

// RegisterMethods registers all vote-related RPC methods.
func (h *VoteHandler) RegisterMethods(hr rpc.HandlerRegistry) {
	auth := hr.Wrap(rpc.AuthMiddleware)
	rpc.Register(auth, rpc.MethodVoteStartElection, h.StartElection)
	rpc.Register(auth, rpc.MethodVoteStartMutiny, h.StartMutiny)
	rpc.Register(auth, rpc.MethodVoteCastDJ, h.CastDJ)
	rpc.Register(auth, rpc.MethodVoteCastMutiny, h.CastMutiny)
	rpc.Register(auth, rpc.MethodVoteCurrent, h.Current)
}

// StartElection opens a DJ election in the room.
func (h *VoteHandler) StartElection(ctx context.Context, client *rpc.Client, p *RoomIDParam) (any, error) {
	roomID, err := parseRoomID(p.RoomID)
	if err != nil {
		return nil, err
	}

	session, err := h.votes.StartElection(ctx, roomID, client.UserID)
	if err != nil {
		return nil, err
	}
	return session.Snapshot(), nil
}

// StartMutiny opens a mutiny vote against the current DJ.
func (h *VoteHandler) StartMutiny(ctx context.Context, client *rpc.Client, p *RoomIDParam) (any, error) {
	roomID, err := parseRoomID(p.RoomID)
	if err != nil {
		return nil, err
	}

	session, err := h.votes.StartMutiny(ctx, roomID, client.UserID)
	if err != nil {
		return nil, err
	}
	return session.Snapshot(), nil
}

// CastDJParams represents the parameters for the CastDJ method.
type CastDJParams struct {
	RoomID       string `json:"roomId"`
	SessionID    string `json:"sessionId"`
	TargetUserID string `json:"targetUserId"`
}

// CastDJ casts an election ballot for a candidate.
func (h *VoteHandler) CastDJ(ctx context.Context, client *rpc.Client, p *CastDJParams) (any, error) {
	roomID, err := parseRoomID(p.RoomID)
	if err != nil {
		return nil, err
	}

	snapshot, err := h.votes.CastElectionBallot(ctx, roomID, client.UserID, &models.CastDJVoteRequest{
		SessionID:    p.SessionID,
		TargetUserID: p.TargetUserID,
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// CastMutinyParams represents the parameters for the CastMutiny method.
type CastMutinyParams struct {
	RoomID    string `json:"roomId"`
	SessionID string `json:"sessionId"`
	Yes       bool   `json:"yes"`
}

// CastMutiny casts a yes/no ballot in a mutiny vote.
func (h *VoteHandler) CastMutiny(ctx context.Context, client *rpc.Client, p *CastMutinyParams) (any, error) {
	roomID, err := parseRoomID(p.RoomID)
	if err != nil {
		return nil, err
	}

	snapshot, err := h.votes.CastMutinyBallot(ctx, roomID, client.UserID, &models.CastMutinyVoteRequest{
		SessionID: p.SessionID,
		Yes:       p.Yes,
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Current returns the room's pending vote session.
func (h *VoteHandler) Current(ctx context.Context, client *rpc.Client, p *RoomIDParam) (any, error) {
	roomID, err := parseRoomID(p.RoomID)
	if err != nil {
		return nil, err
	}

	return h.votes.Current(ctx, roomID)
}
