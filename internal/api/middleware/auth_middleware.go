// Package middleware contains HTTP middleware for the API.
package middleware

import (
	"context"
	"errors"
	"net/http"

	"norelock.dev/waveroom/backend/internal/auth"
	"norelock.dev/waveroom/backend/internal/db/redis/managers"
	"norelock.dev/waveroom/backend/internal/utils"
)

type contextKey string

const (
	contextKeyUserID    contextKey = "userID"
	contextKeyUsername  contextKey = "username"
	contextKeySessionID contextKey = "sessionID"
)

// UserID returns the authenticated user's ID from the request context.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKeyUserID).(string)
	return id, ok
}

// Username returns the authenticated user's name from the request context.
func Username(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(contextKeyUsername).(string)
	return name, ok
}

// SessionID returns the authenticated session ID from the request context.
func SessionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKeySessionID).(string)
	return id, ok
}

// AuthMiddleware handles authentication for protected routes.
type AuthMiddleware struct {
	authProvider auth.Provider
	sessionMgr   *managers.SessionManager
	logger       *utils.Logger
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(authProvider auth.Provider, sessionMgr *managers.SessionManager, logger *utils.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authProvider: authProvider,
		sessionMgr:   sessionMgr,
		logger:       logger.Named("auth_middleware"),
	}
}

// RequireAuth rejects requests without a valid access token backed by a live
// session.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := utils.ExtractBearerToken(r)
		if err != nil {
			utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := m.authProvider.ValidateToken(token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				utils.RespondWithError(w, http.StatusUnauthorized, "Token has expired")
			case errors.Is(err, auth.ErrInvalidToken):
				utils.RespondWithError(w, http.StatusUnauthorized, "Invalid token")
			default:
				m.logger.Error("Failed to validate token", err)
				utils.RespondWithError(w, http.StatusInternalServerError, "Failed to validate token")
			}
			return
		}

		if claims.TokenType != "access" {
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		session, err := m.sessionMgr.GetSession(r.Context(), claims.SessionID)
		if err != nil {
			m.logger.Error("Failed to verify session", err, "userId", claims.UserID)
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to verify session")
			return
		}
		if session == nil {
			utils.RespondWithError(w, http.StatusUnauthorized, "Session expired or invalid")
			return
		}

		ctx := context.WithValue(r.Context(), contextKeyUserID, claims.UserID)
		ctx = context.WithValue(ctx, contextKeyUsername, claims.Username)
		ctx = context.WithValue(ctx, contextKeySessionID, claims.SessionID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
