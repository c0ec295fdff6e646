package managers

import (
	"context"
	"time"

	r "github.com/go-redis/redis/v8"
	"norelock.dev/waveroom/backend/internal/db/redis"
	"norelock.dev/waveroom/backend/internal/models"
)

const (
	// SessionKeyPrefix is the prefix for session keys
	SessionKeyPrefix = "session"

	// UserSessionKeyPrefix is the prefix for user-to-session mappings
	UserSessionKeyPrefix = "session:user"

	// DefaultSessionExpiry is the default session expiration time
	DefaultSessionExpiry = 24 * time.Hour
)

// SessionManager handles Redis operations for user sessions. A session
// record exists for as long as the refresh token it was issued with is
// valid; token validation checks the record is still alive so that logout
// revokes tokens before they expire.
type SessionManager struct {
	client *redis.Client
	expiry time.Duration
}

// NewSessionManager creates a new session manager
func NewSessionManager(client *redis.Client, expiry time.Duration) *SessionManager {
	if expiry <= 0 {
		expiry = DefaultSessionExpiry
	}

	return &SessionManager{
		client: client,
		expiry: expiry,
	}
}

// CreateSession stores a new session record.
func (m *SessionManager) CreateSession(ctx context.Context, session *models.Session) error {
	logger := m.client.Logger()

	sessionKey := redis.FormatKey(SessionKeyPrefix, session.ID)
	err := m.client.SetObject(ctx, sessionKey, session, m.expiry)
	if err != nil {
		logger.Error("Failed to store session in Redis", err, "userId", session.UserID)
		return err
	}

	userKey := redis.FormatKey(UserSessionKeyPrefix, session.UserID)
	err = m.client.Set(ctx, userKey, session.ID, m.expiry)
	if err != nil {
		logger.Error("Failed to store user session mapping", err, "userId", session.UserID)
		_ = m.client.Del(ctx, sessionKey)
		return err
	}

	logger.Info("Created session", "userId", session.UserID, "sessionId", session.ID)
	return nil
}

// GetSession retrieves a session by ID. Returns nil when the session does
// not exist or has been revoked.
func (m *SessionManager) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	logger := m.client.Logger()

	var session models.Session
	err := m.client.GetObject(ctx, redis.FormatKey(SessionKeyPrefix, sessionID), &session)
	if err != nil {
		if err == r.Nil {
			return nil, nil
		}
		logger.Error("Failed to get session from Redis", err, "sessionId", sessionID)
		return nil, err
	}

	return &session, nil
}

// RefreshSession extends a session's expiry. Called on token refresh.
func (m *SessionManager) RefreshSession(ctx context.Context, sessionID string) error {
	logger := m.client.Logger()

	session, err := m.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return models.ErrSessionExpired
	}

	sessionKey := redis.FormatKey(SessionKeyPrefix, sessionID)
	if err := m.client.Expire(ctx, sessionKey, m.expiry); err != nil {
		logger.Error("Failed to refresh session expiry", err, "sessionId", sessionID)
		return err
	}

	userKey := redis.FormatKey(UserSessionKeyPrefix, session.UserID)
	if err := m.client.Expire(ctx, userKey, m.expiry); err != nil {
		logger.Error("Failed to refresh user session mapping", err, "userId", session.UserID)
	}

	return nil
}

// DestroySession removes a session, revoking its tokens.
func (m *SessionManager) DestroySession(ctx context.Context, sessionID string) error {
	logger := m.client.Logger()

	session, err := m.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	if err := m.client.Del(ctx, redis.FormatKey(SessionKeyPrefix, sessionID)); err != nil {
		logger.Error("Failed to destroy session", err, "sessionId", sessionID)
		return err
	}

	if session != nil {
		if err := m.client.Del(ctx, redis.FormatKey(UserSessionKeyPrefix, session.UserID)); err != nil {
			logger.Error("Failed to remove user session mapping", err, "userId", session.UserID)
		}
		logger.Info("Destroyed session", "userId", session.UserID, "sessionId", sessionID)
	}

	return nil
}

// DestroyUserSessions removes the active session for a user.
func (m *SessionManager) DestroyUserSessions(ctx context.Context, userID string) error {
	logger := m.client.Logger()

	sessionID, err := m.client.Get(ctx, redis.FormatKey(UserSessionKeyPrefix, userID))
	if err != nil {
		logger.Error("Failed to get session for user", err, "userId", userID)
		return err
	}
	if sessionID == "" {
		return nil
	}

	return m.DestroySession(ctx, sessionID)
}

// GetActiveSessions gets the count of active sessions.
func (m *SessionManager) GetActiveSessions(ctx context.Context) (int64, error) {
	keys, err := m.client.Keys(ctx, redis.FormatKey(SessionKeyPrefix, "*"))
	if err != nil {
		m.client.Logger().Error("Failed to count active sessions", err)
		return 0, err
	}
	return int64(len(keys)), nil
}
