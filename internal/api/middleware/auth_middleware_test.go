package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	r "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"norelock.dev/waveroom/backend/internal/auth"
	"norelock.dev/waveroom/backend/internal/db/redis"
	"norelock.dev/waveroom/backend/internal/db/redis/managers"
	"norelock.dev/waveroom/backend/internal/models"
	"norelock.dev/waveroom/backend/internal/utils"
)

type authTestEnv struct {
	mw       *AuthMiddleware
	jwt      *auth.JWTProvider
	sessions *managers.SessionManager
}

func newAuthTestEnv(t *testing.T) *authTestEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClientFromRedis(r.NewClient(&r.Options{Addr: mr.Addr()}), nil)
	t.Cleanup(func() { client.Close() })

	logger := utils.GetLogger()
	jwt := auth.NewJWTProvider(auth.JWTConfig{
		Secret:               "test-secret",
		Issuer:               "test",
		Audience:             "test-users",
		AccessTokenDuration:  15 * time.Minute,
		RefreshTokenDuration: time.Hour,
	}, logger)
	sessions := managers.NewSessionManager(client, time.Hour)

	provider := struct {
		*auth.JWTProvider
		*auth.PasswordProvider
	}{jwt, auth.NewPasswordProvider(logger)}

	return &authTestEnv{
		mw:       NewAuthMiddleware(provider, sessions, logger),
		jwt:      jwt,
		sessions: sessions,
	}
}

func (e *authTestEnv) issue(t *testing.T, sessionID string, withSession bool) auth.TokenPair {
	t.Helper()
	if withSession {
		err := e.sessions.CreateSession(context.Background(), &models.Session{
			ID:        sessionID,
			UserID:    "u1",
			Username:  "alice",
			CreatedAt: utils.NowMs(),
		})
		require.NoError(t, err)
	}
	pair, err := e.jwt.GenerateTokenPair("u1", "alice", sessionID)
	require.NoError(t, err)
	return pair
}

func protected(t *testing.T, e *authTestEnv) (http.Handler, *bool) {
	t.Helper()
	called := false
	handler := e.mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		userID, ok := UserID(r.Context())
		assert.True(t, ok)
		assert.Equal(t, "u1", userID)
		username, ok := Username(r.Context())
		assert.True(t, ok)
		assert.Equal(t, "alice", username)
		sessionID, ok := SessionID(r.Context())
		assert.True(t, ok)
		assert.Equal(t, "s1", sessionID)
		w.WriteHeader(http.StatusOK)
	}))
	return handler, &called
}

func TestRequireAuthAcceptsValidToken(t *testing.T) {
	env := newAuthTestEnv(t)
	pair := env.issue(t, "s1", true)
	handler, called := protected(t, env)

	req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, *called)
}

func TestRequireAuthRejectsMissingHeader(t *testing.T) {
	env := newAuthTestEnv(t)
	handler, called := protected(t, env)

	req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, *called)
}

func TestRequireAuthRejectsInvalidToken(t *testing.T) {
	env := newAuthTestEnv(t)
	handler, called := protected(t, env)

	req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, *called)
}

func TestRequireAuthRejectsRefreshToken(t *testing.T) {
	env := newAuthTestEnv(t)
	pair := env.issue(t, "s1", true)
	handler, called := protected(t, env)

	req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
	req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, *called)
}

func TestRequireAuthRejectsDeadSession(t *testing.T) {
	env := newAuthTestEnv(t)
	// A well-formed token whose session was never created (or was destroyed
	// by logout) is refused.
	pair := env.issue(t, "s1", false)
	handler, called := protected(t, env)

	req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, *called)
}
