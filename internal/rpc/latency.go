// Package rpc provides WebSocket-based RPC functionality.
package rpc

import (
	"context"

	"norelock.dev/waveroom/backend/internal/db/redis/managers"
)

// LatencyTracker reports the measured round-trip times of the connections
// currently subscribed to a room. Playback scheduling uses these to pick a
// start lead that covers the room's slowest listeners.
type LatencyTracker struct {
	hub   *Hub
	syncs *managers.SyncManager
}

// NewLatencyTracker creates a latency tracker over the hub's room registry
// and the stored sync records.
func NewLatencyTracker(hub *Hub, syncs *managers.SyncManager) *LatencyTracker {
	return &LatencyTracker{
		hub:   hub,
		syncs: syncs,
	}
}

// MemberRTTs returns the known round-trip times, in milliseconds, of the
// room's connected clients. Connections that have not completed a sync round
// yet are simply absent.
func (t *LatencyTracker) MemberRTTs(ctx context.Context, roomID string) ([]int64, error) {
	clients := t.hub.RoomClients(roomID)
	if len(clients) == 0 {
		return nil, nil
	}

	clientIDs := make([]string, 0, len(clients))
	for _, client := range clients {
		clientIDs = append(clientIDs, client.ID)
	}

	return t.syncs.RTTs(ctx, clientIDs)
}
