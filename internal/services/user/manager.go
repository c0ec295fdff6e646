// Package user provides account registration, login, and session handling.
// The room runtime never touches this package; it only consumes the JWT
// principal these flows produce.
package user

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"norelock.dev/waveroom/backend/internal/auth"
	"norelock.dev/waveroom/backend/internal/db/mongo/repositories"
	"norelock.dev/waveroom/backend/internal/db/redis/managers"
	"norelock.dev/waveroom/backend/internal/models"
	"norelock.dev/waveroom/backend/internal/utils"
)

// Manager provides account management functionality.
type Manager struct {
	userRepo     repositories.UserRepository
	sessionMgr   *managers.SessionManager
	presenceMgr  *managers.PresenceManager
	authProvider auth.Provider
	logger       *utils.Logger
}

// NewManager creates a new account manager.
func NewManager(
	userRepo repositories.UserRepository,
	sessionMgr *managers.SessionManager,
	presenceMgr *managers.PresenceManager,
	authProvider auth.Provider,
	logger *utils.Logger,
) *Manager {
	return &Manager{
		userRepo:     userRepo,
		sessionMgr:   sessionMgr,
		presenceMgr:  presenceMgr,
		authProvider: authProvider,
		logger:       logger.Named("user_manager"),
	}
}

// Register creates a new account and logs it in.
func (m *Manager) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	if err := utils.Validate(req); err != nil {
		return nil, models.ErrInvalidInput.WithContext("fields", utils.FormatValidationErrors(err)).Wrap(err)
	}

	if _, err := m.userRepo.FindByEmail(ctx, req.Email); err == nil {
		return nil, models.ErrUserAlreadyExists
	} else if !errors.Is(err, models.ErrUserNotFound) {
		m.logger.Error("Failed to check email existence", err, "email", req.Email)
		return nil, err
	}

	if _, err := m.userRepo.FindByUsername(ctx, req.Username); err == nil {
		return nil, models.ErrUserAlreadyExists
	} else if !errors.Is(err, models.ErrUserNotFound) {
		m.logger.Error("Failed to check username existence", err, "username", req.Username)
		return nil, err
	}

	hash, err := m.authProvider.HashPassword(req.Password)
	if err != nil {
		m.logger.Error("Failed to hash password", err)
		return nil, models.NewInternalError(err)
	}

	now := time.Now()
	user := &models.User{
		ID:           bson.NewObjectID(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		LastLoginAt:  now,
		ObjectTimes:  models.NewObjectTimes(now),
	}

	if err := m.userRepo.Create(ctx, user); err != nil {
		m.logger.Error("Failed to create user", err, "email", req.Email)
		return nil, err
	}

	return m.issueSession(ctx, user)
}

// Login authenticates a user and issues a fresh session.
func (m *Manager) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	if err := utils.Validate(req); err != nil {
		return nil, models.ErrInvalidInput.WithContext("fields", utils.FormatValidationErrors(err)).Wrap(err)
	}

	user, err := m.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		m.logger.Error("Failed to find user by email", err, "email", req.Email)
		return nil, err
	}

	if !m.authProvider.VerifyPassword(req.Password, user.PasswordHash) {
		return nil, models.ErrInvalidCredentials
	}

	if err := m.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		m.logger.Error("Failed to update last login", err, "userId", user.ID.Hex())
	}

	return m.issueSession(ctx, user)
}

// Refresh exchanges a valid refresh token for a new token pair. The session
// must still exist server-side; logout kills refresh too.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*models.AuthResponse, error) {
	claims, err := m.authProvider.ValidateToken(refreshToken)
	if err != nil {
		return nil, models.ErrInvalidToken.Wrap(err)
	}

	session, err := m.sessionMgr.GetSession(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, models.ErrSessionExpired
	}

	pair, err := m.authProvider.RefreshToken(refreshToken)
	if err != nil {
		return nil, models.ErrInvalidToken.Wrap(err)
	}

	if err := m.sessionMgr.RefreshSession(ctx, claims.SessionID); err != nil {
		m.logger.Error("Failed to refresh session", err, "sessionId", claims.SessionID)
	}

	return &models.AuthResponse{
		User: models.PublicUser{
			ID:       claims.UserID,
			Username: claims.Username,
		},
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	}, nil
}

// Logout destroys the caller's session.
func (m *Manager) Logout(ctx context.Context, userID, sessionID string) error {
	if err := m.sessionMgr.DestroySession(ctx, sessionID); err != nil {
		m.logger.Error("Failed to destroy session", err, "sessionId", sessionID)
		return err
	}

	if err := m.presenceMgr.RemovePresence(ctx, userID); err != nil {
		m.logger.Error("Failed to remove presence on logout", err, "userId", userID)
	}

	return nil
}

// GetPublicUser returns a user's public projection.
func (m *Manager) GetPublicUser(ctx context.Context, id string) (*models.PublicUser, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, models.ErrUserNotFound
	}

	user, err := m.userRepo.FindByID(ctx, objectID)
	if err != nil {
		return nil, err
	}

	public := user.Public()
	return &public, nil
}

// issueSession creates a session record and signs a token pair against it.
func (m *Manager) issueSession(ctx context.Context, user *models.User) (*models.AuthResponse, error) {
	session := &models.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID.Hex(),
		Username:  user.Username,
		CreatedAt: utils.NowMs(),
	}
	if err := m.sessionMgr.CreateSession(ctx, session); err != nil {
		m.logger.Error("Failed to create session", err, "userId", user.ID.Hex())
		return nil, err
	}

	pair, err := m.authProvider.GenerateTokenPair(user.ID.Hex(), user.Username, session.ID)
	if err != nil {
		m.logger.Error("Failed to generate token pair", err, "userId", user.ID.Hex())
		return nil, models.NewInternalError(err)
	}

	return &models.AuthResponse{
		User:         user.Public(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	}, nil
}
