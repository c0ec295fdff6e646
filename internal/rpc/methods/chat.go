package methods

import (
	"context"
	"time"

	"norelock.dev/waveroom/backend/internal/db/redis"
	"norelock.dev/waveroom/backend/internal/models"
	"norelock.dev/waveroom/backend/internal/rpc"
	"norelock.dev/waveroom/backend/internal/services/room"
	"norelock.dev/waveroom/backend/internal/utils"
)

// ChatHandler handles chat-related RPC methods.
type ChatHandler struct {
	chat   *room.ChatManager
	logger *utils.Logger
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chat *room.ChatManager, logger *utils.Logger) *ChatHandler {
	return &ChatHandler{
		chat:   chat,
		logger: logger,
	}
}

// RegisterMethods registers chat-related RPC methods with the router.
func (h *ChatHandler) RegisterMethods(hr rpc.HandlerRegistry, limiter *redis.RateLimiter, sendLimit redis.RateLimit) {
	auth := hr.Wrap(rpc.AuthMiddleware)
	limited := auth.Wrap(rpc.RateLimitMiddleware(limiter, sendLimit))

	rpc.Register(limited, rpc.MethodChatSend, h.Send)
	rpc.Register(auth, rpc.MethodChatHistory, h.History)
}

// SendParams represents the parameters for the Send method.
type SendParams struct {
	RoomID string `json:"roomId"`
	Body   string `json:"body"`
}

// Send posts a chat message to the room.
func (h *ChatHandler) Send(ctx context.Context, client *rpc.Client, p *SendParams) (any, error) {
	roomID, err := parseRoomID(p.RoomID)
	if err != nil {
		return nil, err
	}
	userID, err := callerID(client)
	if err != nil {
		return nil, err
	}

	message, err := h.chat.Send(ctx, roomID, userID, client.Username, &models.SendChatRequest{Body: p.Body})
	if err != nil {
		return nil, err
	}

	return struct {
		ID       string `json:"id"`
		SentAtMs int64  `json:"sentAtMs"`
	}{
		ID:       message.ID.Hex(),
		SentAtMs: message.SentAt.UnixMilli(),
	}, nil
}

// HistoryParams represents the parameters for the History method.
type HistoryParams struct {
	RoomID   string `json:"roomId"`
	Limit    int    `json:"limit"`
	BeforeMs int64  `json:"beforeMs"`
}

// History returns a room's recent messages, most recent first.
func (h *ChatHandler) History(ctx context.Context, client *rpc.Client, p *HistoryParams) (any, error) {
	roomID, err := parseRoomID(p.RoomID)
	if err != nil {
		return nil, err
	}
	userID, err := callerID(client)
	if err != nil {
		return nil, err
	}

	if p.Limit <= 0 || p.Limit > 200 {
		p.Limit = 50
	}
	before := time.Now()
	if p.BeforeMs > 0 {
		before = time.UnixMilli(p.BeforeMs)
	}

	messages, err := h.chat.History(ctx, roomID, userID, p.Limit, before)
	if err != nil {
		return nil, err
	}

	return struct {
		Messages []*models.ChatMessage `json:"messages"`
	}{Messages: messages}, nil
}
