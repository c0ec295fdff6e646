// Package managers provides Redis-backed state managers.
package managers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	r "github.com/go-redis/redis/v8"
	"norelock.dev/waveroom/backend/internal/db/redis"
	"norelock.dev/waveroom/backend/internal/models"
)

const (
	// RoomDJKeyPrefix is the prefix for the current DJ slot key
	RoomDJKeyPrefix = "room:dj"

	// RoomPlaybackKeyPrefix is the prefix for the active playback record key
	RoomPlaybackKeyPrefix = "room:playback"

	// RoomVoteKeyPrefix is the prefix for the pending vote session key
	RoomVoteKeyPrefix = "room:vote"

	// RoomBallotsKeyPrefix is the prefix for the vote ballots hash key
	RoomBallotsKeyPrefix = "room:vote:ballots"

	// RoomCooldownKeyPrefix is the prefix for mutiny cooldown keys
	RoomCooldownKeyPrefix = "room:cooldown"

	// RoomDJCooldownKeyPrefix is the prefix for DJ eligibility cooldown keys
	RoomDJCooldownKeyPrefix = "room:djcooldown"

	// RoomStateExpiry bounds how long transient room state survives without
	// any room activity refreshing it.
	RoomStateExpiry = 12 * time.Hour
)

// RoomStateManager handles the transient per-room state that lives in Redis:
// the current DJ slot, the active playback record, and the pending vote
// session with its ballots. Durable state (rooms, memberships, submissions)
// lives in MongoDB.
type RoomStateManager struct {
	client *redis.Client
}

// NewRoomStateManager creates a new room state manager.
func NewRoomStateManager(client *redis.Client) *RoomStateManager {
	return &RoomStateManager{
		client: client,
	}
}

// GetDJ returns the user ID currently holding the DJ slot, or an empty
// string when the slot is vacant.
func (m *RoomStateManager) GetDJ(ctx context.Context, roomID string) (string, error) {
	return m.client.Get(ctx, formatRoomDJKey(roomID))
}

// SwapDJ atomically flips the DJ slot from expected to next. An empty
// expected means the slot must be vacant; an empty next vacates it. Returns
// false when the slot no longer holds expected.
func (m *RoomStateManager) SwapDJ(ctx context.Context, roomID, expected, next string) (bool, error) {
	logger := m.client.Logger()

	swapped, err := m.client.CompareAndSet(ctx, formatRoomDJKey(roomID), expected, next, RoomStateExpiry)
	if err != nil {
		return false, err
	}

	if !swapped {
		logger.Debug("DJ slot swap lost race", "roomId", roomID, "expected", expected, "next", next)
	}
	return swapped, nil
}

// SetPlayback stores the active playback record for a room. Starting a new
// track while one is playing replaces the record.
func (m *RoomStateManager) SetPlayback(ctx context.Context, roomID string, record *models.PlaybackRecord) error {
	return m.client.SetObject(ctx, formatRoomPlaybackKey(roomID), record, RoomStateExpiry)
}

// GetPlayback returns the active playback record, or nil when nothing is
// playing.
func (m *RoomStateManager) GetPlayback(ctx context.Context, roomID string) (*models.PlaybackRecord, error) {
	logger := m.client.Logger()

	var record models.PlaybackRecord
	err := m.client.GetObject(ctx, formatRoomPlaybackKey(roomID), &record)
	if err != nil {
		if err == r.Nil {
			return nil, nil
		}
		logger.Error("Failed to get playback record", err, "roomId", roomID)
		return nil, err
	}

	return &record, nil
}

// ClearPlayback removes the active playback record.
func (m *RoomStateManager) ClearPlayback(ctx context.Context, roomID string) error {
	return m.client.Del(ctx, formatRoomPlaybackKey(roomID))
}

// OpenVote stores a new pending vote session. Returns false when a session
// is already pending; at most one vote may be open per room.
func (m *RoomStateManager) OpenVote(ctx context.Context, session *models.VoteSession) (bool, error) {
	logger := m.client.Logger()

	data, err := json.Marshal(session)
	if err != nil {
		logger.Error("Failed to marshal vote session", err, "roomId", session.RoomID)
		return false, err
	}

	created, err := m.client.SetNX(ctx, formatRoomVoteKey(session.RoomID), string(data), RoomStateExpiry)
	if err != nil {
		return false, err
	}
	return created, nil
}

// GetVote returns the pending vote session, or nil when none is open.
func (m *RoomStateManager) GetVote(ctx context.Context, roomID string) (*models.VoteSession, error) {
	logger := m.client.Logger()

	var session models.VoteSession
	err := m.client.GetObject(ctx, formatRoomVoteKey(roomID), &session)
	if err != nil {
		if err == r.Nil {
			return nil, nil
		}
		logger.Error("Failed to get vote session", err, "roomId", roomID)
		return nil, err
	}

	return &session, nil
}

// UpdateVote rewrites the stored vote session. Callers hold the room lock
// while re-evaluating the session, so a plain write is safe here.
func (m *RoomStateManager) UpdateVote(ctx context.Context, session *models.VoteSession) error {
	return m.client.SetObject(ctx, formatRoomVoteKey(session.RoomID), session, RoomStateExpiry)
}

// CloseVote removes the vote session and its ballots.
func (m *RoomStateManager) CloseVote(ctx context.Context, roomID string) error {
	logger := m.client.Logger()

	if err := m.client.Del(ctx, formatRoomVoteKey(roomID)); err != nil {
		return err
	}
	if err := m.client.Del(ctx, formatRoomBallotsKey(roomID)); err != nil {
		logger.Error("Failed to clear vote ballots", err, "roomId", roomID)
		return err
	}
	return nil
}

// CastBallot records a voter's ballot exactly once. Returns false when the
// voter has already cast a ballot in the current session.
func (m *RoomStateManager) CastBallot(ctx context.Context, roomID, voterID, choice string) (bool, error) {
	key := formatRoomBallotsKey(roomID)

	inserted, err := m.client.HSetNX(ctx, key, voterID, choice)
	if err != nil {
		return false, err
	}

	if inserted {
		// Best effort; the session key carries the authoritative expiry.
		if err := m.client.Expire(ctx, key, RoomStateExpiry); err != nil {
			m.client.Logger().Warn("Failed to refresh ballots expiry", "roomId", roomID, "error", err)
		}
	}

	return inserted, nil
}

// GetBallots returns all ballots cast in the current session, keyed by
// voter ID.
func (m *RoomStateManager) GetBallots(ctx context.Context, roomID string) (map[string]string, error) {
	return m.client.HGetAll(ctx, formatRoomBallotsKey(roomID))
}

// SetMutinyCooldown starts a cooldown window against re-targeting the same
// DJ after a failed mutiny.
func (m *RoomStateManager) SetMutinyCooldown(ctx context.Context, roomID, djID string, cooldown time.Duration) error {
	if cooldown <= 0 {
		return nil
	}
	return m.client.Set(ctx, formatRoomCooldownKey(roomID, djID), "1", cooldown)
}

// IsMutinyOnCooldown reports whether a mutiny against the given DJ is still
// in its cooldown window.
func (m *RoomStateManager) IsMutinyOnCooldown(ctx context.Context, roomID, djID string) (bool, error) {
	return m.client.Exists(ctx, formatRoomCooldownKey(roomID, djID))
}

// SetDJCooldown blocks a user removed by a passed mutiny from taking the DJ
// slot again until the cooldown elapses.
func (m *RoomStateManager) SetDJCooldown(ctx context.Context, roomID, userID string, cooldown time.Duration) error {
	if cooldown <= 0 {
		return nil
	}
	return m.client.Set(ctx, formatRoomDJCooldownKey(roomID, userID), "1", cooldown)
}

// IsDJOnCooldown reports whether the given user is still blocked from taking
// the DJ slot.
func (m *RoomStateManager) IsDJOnCooldown(ctx context.Context, roomID, userID string) (bool, error) {
	return m.client.Exists(ctx, formatRoomDJCooldownKey(roomID, userID))
}

// ClearRoom removes all transient state for a room. Called on room
// deactivation.
func (m *RoomStateManager) ClearRoom(ctx context.Context, roomID string) error {
	logger := m.client.Logger()

	keys := []string{
		formatRoomDJKey(roomID),
		formatRoomPlaybackKey(roomID),
		formatRoomVoteKey(roomID),
		formatRoomBallotsKey(roomID),
	}
	for _, key := range keys {
		if err := m.client.Del(ctx, key); err != nil {
			logger.Error("Failed to clear room state key", err, "roomId", roomID, "key", key)
			return err
		}
	}

	for _, prefix := range []string{RoomCooldownKeyPrefix, RoomDJCooldownKeyPrefix} {
		if err := m.client.DelKeys(ctx, redis.FormatKey(prefix, roomID)+":*"); err != nil {
			logger.Error("Failed to clear room cooldown keys", err, "roomId", roomID)
			return err
		}
	}

	logger.Info("Cleared room state", "roomId", roomID)
	return nil
}

// Helper functions

// formatRoomDJKey formats a key for the current DJ slot
func formatRoomDJKey(roomID string) string {
	return redis.FormatKey(RoomDJKeyPrefix, roomID)
}

// formatRoomPlaybackKey formats a key for the playback record
func formatRoomPlaybackKey(roomID string) string {
	return redis.FormatKey(RoomPlaybackKeyPrefix, roomID)
}

// formatRoomVoteKey formats a key for the vote session
func formatRoomVoteKey(roomID string) string {
	return redis.FormatKey(RoomVoteKeyPrefix, roomID)
}

// formatRoomBallotsKey formats a key for the vote ballots hash
func formatRoomBallotsKey(roomID string) string {
	return redis.FormatKey(RoomBallotsKeyPrefix, roomID)
}

// formatRoomCooldownKey formats a key for a mutiny cooldown
func formatRoomCooldownKey(roomID, djID string) string {
	return redis.FormatKey(RoomCooldownKeyPrefix, fmt.Sprintf("%s:%s", roomID, djID))
}

// formatRoomDJCooldownKey formats a key for a DJ eligibility cooldown
func formatRoomDJCooldownKey(roomID, userID string) string {
	return redis.FormatKey(RoomDJCooldownKeyPrefix, fmt.Sprintf("%s:%s", roomID, userID))
}
