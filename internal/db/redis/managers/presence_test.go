package managers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceTouchAndGet(t *testing.T) {
	_, client := newTestClient(t)
	mgr := NewPresenceManager(client)
	ctx := context.Background()

	presence, err := mgr.GetPresence(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, presence)

	require.NoError(t, mgr.Touch(ctx, "u1", "alice", "room1"))

	presence, err = mgr.GetPresence(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, presence)
	assert.Equal(t, "alice", presence.Username)
	assert.Equal(t, "room1", presence.CurrentRoomID)

	online, err := mgr.IsUserOnline(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, online)

	count, err := mgr.GetOnlineUsersCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestPresenceRemove(t *testing.T) {
	_, client := newTestClient(t)
	mgr := NewPresenceManager(client)
	ctx := context.Background()

	require.NoError(t, mgr.Touch(ctx, "u1", "alice", ""))
	require.NoError(t, mgr.RemovePresence(ctx, "u1"))

	online, err := mgr.IsUserOnline(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, online)

	count, err := mgr.GetOnlineUsersCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestCleanupExpiredPresence(t *testing.T) {
	mr, client := newTestClient(t)
	mgr := NewPresenceManager(client)
	ctx := context.Background()

	require.NoError(t, mgr.Touch(ctx, "u1", "alice", ""))
	require.NoError(t, mgr.Touch(ctx, "u2", "bob", ""))

	// The presence record decays via TTL but the online set entry stays
	// until cleanup runs.
	mr.FastForward(PresenceTTL + time.Second)

	count, err := mgr.GetOnlineUsersCount(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	removed, err := mgr.CleanupExpiredPresence(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	count, err = mgr.GetOnlineUsersCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
