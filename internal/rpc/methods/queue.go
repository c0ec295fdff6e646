package methods

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"norelock.dev/waveroom/backend/internal/db/redis"
	"norelock.dev/waveroom/backend/internal/models"
	"norelock.dev/waveroom/backend/internal/rpc"
	"norelock.dev/waveroom/backend/internal/services/room"
	"norelock.dev/waveroom/backend/internal/utils"
)

// QueueHandler handles queue-related RPC methods.
type QueueHandler struct {
	queue  *room.QueueManager
	logger *utils.Logger
}

// NewQueueHandler creates a new QueueHandler.
func NewQueueHandler(queue *room.QueueManager, logger *utils.Logger) *QueueHandler {
	return &QueueHandler{
		queue:  queue,
		logger: logger,
	}
}

// RegisterMethods registers all queue-related RPC methods. Submissions are
// rate limited per user; votes and removals are not.
func (h *QueueHandler) RegisterMethods(hr rpc.HandlerRegistry, limiter *redis.RateLimiter, addLimit redis.RateLimit) {
	auth := hr.Wrap(rpc.AuthMiddleware)
	limited := auth.Wrap(rpc.RateLimitMiddleware(limiter, addLimit))

	rpc.Register(limited, rpc.MethodQueueAdd, h.Add)
	rpc.Register(auth, rpc.MethodQueueList, h.List)
	rpc.Register(auth, rpc.MethodQueueUpvote, h.Upvote)
	rpc.Register(auth, rpc.MethodQueueDownvote, h.Downvote)
	rpc.Register(auth, rpc.MethodQueueClearVote, h.ClearVote)
	rpc.Register(auth, rpc.MethodQueueRemove, h.Remove)
}

// AddParams represents the parameters for the Add method.
type AddParams struct {
	RoomID string `json:"roomId"`
	URL    string `json:"url"`
}

// Add submits a track to the room's queue.
func (h *QueueHandler) Add(ctx context.Context, client *rpc.Client, p *AddParams) (any, error) {
	roomID, err := parseRoomID(p.RoomID)
	if err != nil {
		return nil, err
	}
	userID, err := callerID(client)
	if err != nil {
		return nil, err
	}

	submission, err := h.queue.Add(ctx, roomID, userID, client.Username, &models.AddToQueueRequest{URL: p.URL})
	if err != nil {
		return nil, err
	}

	return submission.Entry(client.UserID), nil
}

// List returns the room's queue in play order, with the caller's own votes
// marked.
func (h *QueueHandler) List(ctx context.Context, client *rpc.Client, p *RoomIDParam) (any, error) {
	roomID, err := parseRoomID(p.RoomID)
	if err != nil {
		return nil, err
	}

	entries, err := h.queue.List(ctx, roomID, client.UserID)
	if err != nil {
		return nil, err
	}

	return struct {
		Entries []models.QueueEntry `json:"entries"`
	}{Entries: entries}, nil
}

// Upvote casts an upvote on a queue entry.
func (h *QueueHandler) Upvote(ctx context.Context, client *rpc.Client, p *EntryParams) (any, error) {
	return h.vote(ctx, client, p, h.queue.Upvote)
}

// Downvote casts a downvote on a queue entry.
func (h *QueueHandler) Downvote(ctx context.Context, client *rpc.Client, p *EntryParams) (any, error) {
	return h.vote(ctx, client, p, h.queue.Downvote)
}

// ClearVote retracts the caller's vote on a queue entry.
func (h *QueueHandler) ClearVote(ctx context.Context, client *rpc.Client, p *EntryParams) (any, error) {
	return h.vote(ctx, client, p, h.queue.ClearVote)
}

func (h *QueueHandler) vote(ctx context.Context, client *rpc.Client, p *EntryParams, apply func(context.Context, bson.ObjectID, bson.ObjectID, string) error) (any, error) {
	roomID, err := parseRoomID(p.RoomID)
	if err != nil {
		return nil, err
	}
	userID, err := callerID(client)
	if err != nil {
		return nil, err
	}
	if p.EntryID == "" {
		return nil, rpc.NewError(rpc.ErrInvalidParams, "entryId is required", nil)
	}

	if err := apply(ctx, roomID, userID, p.EntryID); err != nil {
		return nil, err
	}
	return true, nil
}

// Remove deletes a queue entry. Submitter or room owner only.
func (h *QueueHandler) Remove(ctx context.Context, client *rpc.Client, p *EntryParams) (any, error) {
	roomID, err := parseRoomID(p.RoomID)
	if err != nil {
		return nil, err
	}
	userID, err := callerID(client)
	if err != nil {
		return nil, err
	}
	if p.EntryID == "" {
		return nil, rpc.NewError(rpc.ErrInvalidParams, "entryId is required", nil)
	}

	if err := h.queue.Remove(ctx, roomID, userID, p.EntryID); err != nil {
		return nil, err
	}
	return true, nil
}
