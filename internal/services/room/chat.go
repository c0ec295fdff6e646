package room

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"norelock.dev/waveroom/backend/internal/db/mongo/repositories"
	"norelock.dev/waveroom/backend/internal/models"
	"norelock.dev/waveroom/backend/internal/utils"
)

// ChatManager handles room chat: sanitization, persistence, and broadcast.
type ChatManager struct {
	roomRepo    repositories.RoomRepository
	chatRepo    repositories.ChatRepository
	broadcaster Broadcaster
	locker      *RoomLocker
	logger      *utils.Logger
}

// NewChatManager creates a new chat manager.
func NewChatManager(
	roomRepo repositories.RoomRepository,
	chatRepo repositories.ChatRepository,
	broadcaster Broadcaster,
	locker *RoomLocker,
	logger *utils.Logger,
) *ChatManager {
	return &ChatManager{
		roomRepo:    roomRepo,
		chatRepo:    chatRepo,
		broadcaster: broadcaster,
		locker:      locker,
		logger:      logger.Named("chat_manager"),
	}
}

// Send accepts a member's message, persists it, and broadcasts it to the
// room. The body is sanitized before it is stored or shown to anyone.
func (m *ChatManager) Send(ctx context.Context, roomID, userID bson.ObjectID, username string, req *models.SendChatRequest) (*models.ChatMessage, error) {
	if err := utils.Validate(req); err != nil {
		return nil, models.ErrInvalidInput.WithContext("fields", utils.FormatValidationErrors(err)).Wrap(err)
	}

	if _, err := m.roomRepo.FindMembership(ctx, roomID, userID); err != nil {
		return nil, err
	}

	body := utils.SanitizeString(req.Body)
	if body == "" {
		return nil, models.NewKindError(models.KindInvalidInput, "message is empty")
	}

	message := &models.ChatMessage{
		RoomID:   roomID,
		UserID:   userID,
		Username: username,
		Body:     body,
		SentAt:   time.Now(),
	}

	unlock := m.locker.Lock(roomID.Hex())
	defer unlock()

	if err := m.chatRepo.SaveMessage(ctx, message); err != nil {
		return nil, err
	}

	broadcast := models.ChatBroadcast{
		ID: message.ID.Hex(),
		User: models.PublicUser{
			ID:       userID.Hex(),
			Username: username,
		},
		Body:     body,
		SentAtMs: message.SentAt.UnixMilli(),
	}
	if err := m.broadcaster.PublishToRoom(ctx, roomID.Hex(), models.EventChatMessage, broadcast); err != nil {
		m.logger.Error("Failed to broadcast chat message", err, "roomId", roomID.Hex())
	}

	return message, nil
}

// History returns a room's recent messages, most recent first. Members only.
func (m *ChatManager) History(ctx context.Context, roomID, userID bson.ObjectID, limit int, before time.Time) ([]*models.ChatMessage, error) {
	if _, err := m.roomRepo.FindMembership(ctx, roomID, userID); err != nil {
		return nil, err
	}
	return m.chatRepo.FindMessagesByRoom(ctx, roomID, limit, before)
}
