package managers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"norelock.dev/waveroom/backend/internal/models"
)

func testSession(id, userID string) *models.Session {
	return &models.Session{
		ID:        id,
		UserID:    userID,
		Username:  "alice",
		CreatedAt: time.Now().UnixMilli(),
	}
}

func TestSessionLifecycle(t *testing.T) {
	_, client := newTestClient(t)
	mgr := NewSessionManager(client, time.Hour)
	ctx := context.Background()

	session, err := mgr.GetSession(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, session)

	require.NoError(t, mgr.CreateSession(ctx, testSession("s1", "u1")))

	session, err = mgr.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "u1", session.UserID)
	assert.Equal(t, "alice", session.Username)

	require.NoError(t, mgr.DestroySession(ctx, "s1"))

	session, err = mgr.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestSessionExpiry(t *testing.T) {
	mr, client := newTestClient(t)
	mgr := NewSessionManager(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, mgr.CreateSession(ctx, testSession("s1", "u1")))

	mr.FastForward(2 * time.Minute)

	session, err := mgr.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestRefreshSessionExtendsExpiry(t *testing.T) {
	mr, client := newTestClient(t)
	mgr := NewSessionManager(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, mgr.CreateSession(ctx, testSession("s1", "u1")))

	mr.FastForward(30 * time.Second)
	require.NoError(t, mgr.RefreshSession(ctx, "s1"))
	mr.FastForward(45 * time.Second)

	// Without the refresh the session would have expired by now.
	session, err := mgr.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.NotNil(t, session)
}

func TestRefreshMissingSession(t *testing.T) {
	_, client := newTestClient(t)
	mgr := NewSessionManager(client, time.Minute)

	err := mgr.RefreshSession(context.Background(), "ghost")
	assert.ErrorIs(t, err, models.ErrSessionExpired)
}

func TestDestroyUserSessions(t *testing.T) {
	_, client := newTestClient(t)
	mgr := NewSessionManager(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, mgr.CreateSession(ctx, testSession("s1", "u1")))
	require.NoError(t, mgr.DestroyUserSessions(ctx, "u1"))

	session, err := mgr.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, session)

	// Destroying for a user without a session is a no-op.
	require.NoError(t, mgr.DestroyUserSessions(ctx, "nobody"))
}

func TestGetActiveSessions(t *testing.T) {
	_, client := newTestClient(t)
	mgr := NewSessionManager(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, mgr.CreateSession(ctx, testSession("s1", "u1")))
	require.NoError(t, mgr.CreateSession(ctx, testSession("s2", "u2")))

	count, err := mgr.GetActiveSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
