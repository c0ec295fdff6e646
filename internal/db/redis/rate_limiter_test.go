package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	r "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := NewClientFromRedis(r.NewClient(&r.Options{Addr: mr.Addr()}), nil)
	t.Cleanup(func() { client.Close() })

	return mr, client
}

func TestRateLimiterAllow(t *testing.T) {
	_, client := newTestClient(t)
	limiter := NewRateLimiter(client)
	ctx := context.Background()

	limit := RateLimit{Key: "test", MaxRequests: 3, Window: time.Minute}

	for i := range 3 {
		result, err := limiter.Allow(ctx, limit, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 3, result.Limit)
	}

	result, err := limiter.Allow(ctx, limit, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
	assert.Greater(t, result.RetryAfter, time.Duration(0))
}

func TestRateLimiterIsolatesIdentifiers(t *testing.T) {
	_, client := newTestClient(t)
	limiter := NewRateLimiter(client)
	ctx := context.Background()

	limit := RateLimit{Key: "test", MaxRequests: 1, Window: time.Minute}

	result, err := limiter.Allow(ctx, limit, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	result, err = limiter.Allow(ctx, limit, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	result, err = limiter.Allow(ctx, limit, "5.6.7.8")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestRateLimiterReset(t *testing.T) {
	_, client := newTestClient(t)
	limiter := NewRateLimiter(client)
	ctx := context.Background()

	limit := RateLimit{Key: "test", MaxRequests: 1, Window: time.Minute}

	result, err := limiter.Allow(ctx, limit, "user-1")
	require.NoError(t, err)
	require.True(t, result.Allowed)

	result, err = limiter.Allow(ctx, limit, "user-1")
	require.NoError(t, err)
	require.False(t, result.Allowed)

	require.NoError(t, limiter.Reset(ctx, limit, "user-1"))

	result, err = limiter.Allow(ctx, limit, "user-1")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestRateLimiterWindowSlides(t *testing.T) {
	_, client := newTestClient(t)
	limiter := NewRateLimiter(client)
	ctx := context.Background()

	limit := RateLimit{Key: "test", MaxRequests: 1, Window: time.Second}

	result, err := limiter.Allow(ctx, limit, "user-1")
	require.NoError(t, err)
	require.True(t, result.Allowed)

	result, err = limiter.Allow(ctx, limit, "user-1")
	require.NoError(t, err)
	require.False(t, result.Allowed)

	// Entries outside the window are pruned on the next check.
	time.Sleep(1100 * time.Millisecond)

	result, err = limiter.Allow(ctx, limit, "user-1")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestCompareAndSet(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()

	// Vacant slot: empty expected succeeds, wrong expected fails.
	ok, err := client.CompareAndSet(ctx, "slot", "", "alice", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.CompareAndSet(ctx, "slot", "", "bob", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	// Occupied slot: matching expected swaps.
	ok, err = client.CompareAndSet(ctx, "slot", "alice", "bob", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	val, err := client.Get(ctx, "slot")
	require.NoError(t, err)
	assert.Equal(t, "bob", val)

	// Empty next deletes the key.
	ok, err = client.CompareAndSet(ctx, "slot", "bob", "", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	exists, err := client.Exists(ctx, "slot")
	require.NoError(t, err)
	assert.False(t, exists)
}
