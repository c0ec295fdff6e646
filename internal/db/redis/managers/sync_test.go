package managers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"norelock.dev/waveroom/backend/internal/models"
)

func TestSyncStoreAndGet(t *testing.T) {
	_, client := newTestClient(t)
	mgr := NewSyncManager(client, 30*time.Second)
	ctx := context.Background()

	record, err := mgr.Get(ctx, "conn1")
	require.NoError(t, err)
	assert.Nil(t, record)

	stored := &models.SyncRecord{
		ClientID:    "conn1",
		OffsetMs:    120,
		RTTMs:       45,
		UpdatedAtMs: 1000,
	}
	require.NoError(t, mgr.Store(ctx, "conn1", stored))

	record, err = mgr.Get(ctx, "conn1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, int64(120), record.OffsetMs)
	assert.Equal(t, int64(45), record.RTTMs)
}

func TestSyncStoreDropsAbsurdOffsets(t *testing.T) {
	_, client := newTestClient(t)
	mgr := NewSyncManager(client, 30*time.Second)
	ctx := context.Background()

	require.NoError(t, mgr.Store(ctx, "conn1", &models.SyncRecord{ClientID: "conn1", OffsetMs: 100, RTTMs: 40}))

	// An offset beyond the cap is dropped without error and the previous
	// record stays.
	require.NoError(t, mgr.Store(ctx, "conn1", &models.SyncRecord{ClientID: "conn1", OffsetMs: 31_000, RTTMs: 50}))

	record, err := mgr.Get(ctx, "conn1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, int64(100), record.OffsetMs)

	// Negative offsets hit the same cap.
	require.NoError(t, mgr.Store(ctx, "conn1", &models.SyncRecord{ClientID: "conn1", OffsetMs: -31_000, RTTMs: 50}))

	record, err = mgr.Get(ctx, "conn1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), record.OffsetMs)
}

func TestSyncRTTsSkipsUnknownConnections(t *testing.T) {
	_, client := newTestClient(t)
	mgr := NewSyncManager(client, 30*time.Second)
	ctx := context.Background()

	require.NoError(t, mgr.Store(ctx, "conn1", &models.SyncRecord{ClientID: "conn1", RTTMs: 40}))
	require.NoError(t, mgr.Store(ctx, "conn2", &models.SyncRecord{ClientID: "conn2", RTTMs: 90}))

	rtts, err := mgr.RTTs(ctx, []string{"conn1", "ghost", "conn2"})
	require.NoError(t, err)
	assert.Equal(t, []int64{40, 90}, rtts)
}

func TestSyncRemove(t *testing.T) {
	_, client := newTestClient(t)
	mgr := NewSyncManager(client, 30*time.Second)
	ctx := context.Background()

	require.NoError(t, mgr.Store(ctx, "conn1", &models.SyncRecord{ClientID: "conn1", RTTMs: 40}))
	require.NoError(t, mgr.Remove(ctx, "conn1"))

	record, err := mgr.Get(ctx, "conn1")
	require.NoError(t, err)
	assert.Nil(t, record)
}
