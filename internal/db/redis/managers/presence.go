package managers

import (
	"context"
	"time"

	r "github.com/go-redis/redis/v8"
	"norelock.dev/waveroom/backend/internal/db/redis"
)

const (
	// PresenceKeyPrefix is the prefix for presence keys
	PresenceKeyPrefix = "presence"

	// OnlineUsersKey is the key for the set of online users
	OnlineUsersKey = "online:users"

	// PresenceTTL is the expiration time for presence keys
	PresenceTTL = 2 * time.Minute
)

// PresenceInfo represents user presence information
type PresenceInfo struct {
	// UserID is the ID of the user
	UserID string `json:"userId"`

	// Username is the username of the user
	Username string `json:"username"`

	// CurrentRoomID is the ID of the room the user is currently in, if any
	CurrentRoomID string `json:"currentRoomId,omitempty"`

	// LastSeen is the last time the presence was refreshed
	LastSeen time.Time `json:"lastSeen"`
}

// PresenceManager handles Redis operations for user presence. Connections
// refresh presence on every ping; records decay via TTL when a node dies
// without cleanup.
type PresenceManager struct {
	client *redis.Client
}

// NewPresenceManager creates a new presence manager
func NewPresenceManager(client *redis.Client) *PresenceManager {
	return &PresenceManager{
		client: client,
	}
}

// Touch refreshes a user's presence record and keeps them in the online set.
func (m *PresenceManager) Touch(ctx context.Context, userID, username, roomID string) error {
	logger := m.client.Logger()

	presence := PresenceInfo{
		UserID:        userID,
		Username:      username,
		CurrentRoomID: roomID,
		LastSeen:      time.Now(),
	}

	err := m.client.SetObject(ctx, formatPresenceKey(userID), &presence, PresenceTTL)
	if err != nil {
		logger.Error("Failed to store presence info", err, "userId", userID)
		return err
	}

	err = m.client.SAdd(ctx, OnlineUsersKey, userID)
	if err != nil {
		logger.Error("Failed to add user to online users", err, "userId", userID)
		return err
	}

	return nil
}

// GetPresence gets a user's presence information, or nil when offline.
func (m *PresenceManager) GetPresence(ctx context.Context, userID string) (*PresenceInfo, error) {
	logger := m.client.Logger()

	var presence PresenceInfo
	err := m.client.GetObject(ctx, formatPresenceKey(userID), &presence)
	if err != nil {
		if err == r.Nil {
			return nil, nil
		}
		logger.Error("Failed to get presence info", err, "userId", userID)
		return nil, err
	}

	return &presence, nil
}

// IsUserOnline checks if a user is currently online
func (m *PresenceManager) IsUserOnline(ctx context.Context, userID string) (bool, error) {
	presence, err := m.GetPresence(ctx, userID)
	if err != nil {
		return false, err
	}
	return presence != nil, nil
}

// RemovePresence removes a user's presence information
func (m *PresenceManager) RemovePresence(ctx context.Context, userID string) error {
	logger := m.client.Logger()

	if err := m.client.Del(ctx, formatPresenceKey(userID)); err != nil {
		logger.Error("Failed to remove presence info", err, "userId", userID)
		return err
	}

	if err := m.client.SRem(ctx, OnlineUsersKey, userID); err != nil {
		logger.Error("Failed to remove user from online users", err, "userId", userID)
		return err
	}

	return nil
}

// GetOnlineUsersCount gets the count of online users
func (m *PresenceManager) GetOnlineUsersCount(ctx context.Context) (int64, error) {
	count, err := m.client.SCard(ctx, OnlineUsersKey)
	if err != nil {
		m.client.Logger().Error("Failed to get online users count", err)
		return 0, err
	}
	return count, nil
}

// CleanupExpiredPresence removes users whose presence record has expired
// from the online set. Run periodically by the maintenance service.
func (m *PresenceManager) CleanupExpiredPresence(ctx context.Context) (int, error) {
	logger := m.client.Logger()

	userIDs, err := m.client.SMembers(ctx, OnlineUsersKey)
	if err != nil {
		logger.Error("Failed to get online users", err)
		return 0, err
	}

	removed := 0
	for _, userID := range userIDs {
		exists, err := m.client.Exists(ctx, formatPresenceKey(userID))
		if err != nil {
			logger.Error("Failed to check presence during cleanup", err, "userId", userID)
			continue
		}
		if !exists {
			if err := m.client.SRem(ctx, OnlineUsersKey, userID); err != nil {
				logger.Error("Failed to remove stale online user", err, "userId", userID)
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		logger.Info("Cleaned up expired presence", "count", removed)
	}
	return removed, nil
}

// formatPresenceKey formats a key for user presence
func formatPresenceKey(userID string) string {
	return redis.FormatKey(PresenceKeyPrefix, userID)
}
