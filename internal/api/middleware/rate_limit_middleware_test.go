package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	r "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"norelock.dev/waveroom/backend/internal/db/redis"
	"norelock.dev/waveroom/backend/internal/utils"
)

func newRateLimitHandler(t *testing.T, limit redis.RateLimit) http.Handler {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClientFromRedis(r.NewClient(&r.Options{Addr: mr.Addr()}), nil)
	t.Cleanup(func() { client.Close() })

	mw := NewRateLimitMiddleware(redis.NewRateLimiter(client), utils.GetLogger())
	return mw.Limit(limit)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func doRequest(handler http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := newRateLimitHandler(t, redis.RateLimit{Key: "api_test", MaxRequests: 2, Window: time.Minute})

	for range 2 {
		rec := doRequest(handler, "10.0.0.1:1234")
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doRequest(handler, "10.0.0.1:1234")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Limits are keyed per client IP.
	rec = doRequest(handler, "10.0.0.2:1234")
	assert.Equal(t, http.StatusOK, rec.Code)
}
