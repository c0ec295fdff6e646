package managers

import (
	"context"
	"time"

	r "github.com/go-redis/redis/v8"
	"norelock.dev/waveroom/backend/internal/db/redis"
	"norelock.dev/waveroom/backend/internal/models"
)

const (
	// SyncKeyPrefix is the prefix for per-connection clock sync records
	SyncKeyPrefix = "socket:sync"

	// SyncRecordExpiry bounds how long a connection's sync record survives.
	// Connections re-ping well within this window.
	SyncRecordExpiry = time.Hour
)

// SyncManager stores per-connection clock sync records: the measured clock
// offset and round-trip time for each websocket connection. The playback
// coordinator reads these to size its start lead.
type SyncManager struct {
	client    *redis.Client
	maxOffset time.Duration
}

// NewSyncManager creates a new sync manager. maxOffset is the sanity cap
// beyond which reported offsets are discarded as clock nonsense.
func NewSyncManager(client *redis.Client, maxOffset time.Duration) *SyncManager {
	return &SyncManager{
		client:    client,
		maxOffset: maxOffset,
	}
}

// Store persists a connection's sync record. Offsets beyond the sanity cap
// are dropped without error; a client with a wildly wrong clock keeps its
// previous record.
func (m *SyncManager) Store(ctx context.Context, clientID string, record *models.SyncRecord) error {
	logger := m.client.Logger()

	offset := record.OffsetMs
	if offset < 0 {
		offset = -offset
	}
	if time.Duration(offset)*time.Millisecond > m.maxOffset {
		logger.Warn("Discarding sync record beyond sanity cap", "clientId", clientID, "offsetMs", record.OffsetMs)
		return nil
	}

	err := m.client.SetObject(ctx, formatSyncKey(clientID), record, SyncRecordExpiry)
	if err != nil {
		logger.Error("Failed to store sync record", err, "clientId", clientID)
		return err
	}
	return nil
}

// Get returns a connection's sync record, or nil when the connection has
// never reported.
func (m *SyncManager) Get(ctx context.Context, clientID string) (*models.SyncRecord, error) {
	logger := m.client.Logger()

	var record models.SyncRecord
	err := m.client.GetObject(ctx, formatSyncKey(clientID), &record)
	if err != nil {
		if err == r.Nil {
			return nil, nil
		}
		logger.Error("Failed to get sync record", err, "clientId", clientID)
		return nil, err
	}

	return &record, nil
}

// RTTs returns the known round-trip times for the given connections,
// skipping connections that have never reported.
func (m *SyncManager) RTTs(ctx context.Context, clientIDs []string) ([]int64, error) {
	rtts := make([]int64, 0, len(clientIDs))
	for _, id := range clientIDs {
		record, err := m.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if record != nil {
			rtts = append(rtts, record.RTTMs)
		}
	}
	return rtts, nil
}

// Remove drops a connection's sync record. Called on disconnect.
func (m *SyncManager) Remove(ctx context.Context, clientID string) error {
	return m.client.Del(ctx, formatSyncKey(clientID))
}

// formatSyncKey formats a key for a connection's sync record
func formatSyncKey(clientID string) string {
	return redis.FormatKey(SyncKeyPrefix, clientID)
}
