package room

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"norelock.dev/waveroom/backend/internal/models"
)

func TestChatSend(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, ownerID := env.seedRoom(t, defaultSettings())

	message, err := env.svc.Chat.Send(ctx, room.ID, ownerID, "owner", &models.SendChatRequest{
		Body: "hello room",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello room", message.Body)
	assert.False(t, message.ID.IsZero())

	event, ok := env.bus.last(models.EventChatMessage)
	require.True(t, ok)
	broadcast := event.Data.(models.ChatBroadcast)
	assert.Equal(t, message.ID.Hex(), broadcast.ID)
	assert.Equal(t, ownerID.Hex(), broadcast.User.ID)
	assert.Equal(t, "owner", broadcast.User.Username)
	assert.Equal(t, "hello room", broadcast.Body)
	assert.Equal(t, message.SentAt.UnixMilli(), broadcast.SentAtMs)
}

func TestChatSendSanitizes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, ownerID := env.seedRoom(t, defaultSettings())

	message, err := env.svc.Chat.Send(ctx, room.ID, ownerID, "owner", &models.SendChatRequest{
		Body: "  <script>alert(1)</script>hi   there  ",
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", message.Body)

	// A body that sanitizes away entirely is rejected.
	_, err = env.svc.Chat.Send(ctx, room.ID, ownerID, "owner", &models.SendChatRequest{
		Body: "<b></b>",
	})
	require.Error(t, err)
	assert.Equal(t, models.KindInvalidInput, models.Kind(err))
}

func TestChatSendRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, ownerID := env.seedRoom(t, defaultSettings())

	_, err := env.svc.Chat.Send(ctx, room.ID, bson.NewObjectID(), "ghost", &models.SendChatRequest{Body: "hi"})
	assert.ErrorIs(t, err, models.ErrNotRoomMember)

	_, err = env.svc.Chat.Send(ctx, room.ID, ownerID, "owner", &models.SendChatRequest{Body: ""})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = env.svc.Chat.Send(ctx, room.ID, ownerID, "owner", &models.SendChatRequest{
		Body: strings.Repeat("a", 501),
	})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestChatHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, ownerID := env.seedRoom(t, defaultSettings())

	for _, body := range []string{"first", "second", "third"} {
		_, err := env.svc.Chat.Send(ctx, room.ID, ownerID, "owner", &models.SendChatRequest{Body: body})
		require.NoError(t, err)
	}

	messages, err := env.svc.Chat.History(ctx, room.ID, ownerID, 2, time.Time{})
	require.NoError(t, err)
	require.Len(t, messages, 2)
	// Most recent first.
	assert.Equal(t, "third", messages[0].Body)
	assert.Equal(t, "second", messages[1].Body)

	_, err = env.svc.Chat.History(ctx, room.ID, bson.NewObjectID(), 10, time.Time{})
	assert.ErrorIs(t, err, models.ErrNotRoomMember)
}
