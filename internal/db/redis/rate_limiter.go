// Package redis provides Redis database connectivity and operations.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"norelock.dev/waveroom/backend/internal/utils"
)

const (
	// RateLimitKeyPrefix is the prefix for rate limit keys
	RateLimitKeyPrefix = "ratelimit"
)

// RateLimiter implements sliding-window rate limiting using Redis sorted
// sets. Each request is a member scored by its timestamp; members outside
// the window are pruned on every check.
type RateLimiter struct {
	client *Client
	logger *utils.Logger
}

// RateLimit defines a rate limit constraint
type RateLimit struct {
	// Key is the identifier for this rate limit
	Key string

	// MaxRequests is the maximum number of requests allowed in the time window
	MaxRequests int

	// Window is the time window for rate limiting
	Window time.Duration
}

// RateLimitResult contains the result of a rate limit check
type RateLimitResult struct {
	// Allowed indicates whether the request is allowed
	Allowed bool

	// Remaining is the number of requests remaining in the current window
	Remaining int

	// RetryAfter is the time after which the client should retry (if rate limited)
	RetryAfter time.Duration

	// Limit is the maximum number of requests allowed in the window
	Limit int
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *Client) *RateLimiter {
	return &RateLimiter{
		client: client,
		logger: client.Logger(),
	}
}

// Allow checks if a request is allowed under the rate limit
func (rl *RateLimiter) Allow(ctx context.Context, rateLimit RateLimit, identifier string) (*RateLimitResult, error) {
	key := formatRateLimitKey(rateLimit.Key, identifier)

	now := time.Now()
	windowStartMs := now.Add(-rateLimit.Window).UnixMilli()

	pipe := rl.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStartMs, 10))
	countCmd := pipe.ZCard(ctx, key)
	oldestCmd := pipe.ZRange(ctx, key, 0, 0)

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		rl.logger.Error("Failed to execute rate limit pipeline", err, "key", key)
		return nil, err
	}

	count, err := countCmd.Result()
	if err != nil && err != redis.Nil {
		rl.logger.Error("Failed to get rate limit count", err, "key", key)
		return nil, err
	}

	allowed := count < int64(rateLimit.MaxRequests)
	remaining := max(rateLimit.MaxRequests-int(count), 0)

	var retryAfter time.Duration
	if allowed {
		nowMs := now.UnixMilli()
		err = rl.client.Client().ZAdd(ctx, key, &redis.Z{
			Score:  float64(nowMs),
			Member: strconv.FormatInt(nowMs, 10),
		}).Err()
		if err != nil {
			rl.logger.Error("Failed to add token to rate limit", err, "key", key)
		}

		if err := rl.client.Expire(ctx, key, rateLimit.Window*2); err != nil {
			rl.logger.Error("Failed to set expiry on rate limit key", err, "key", key)
		}
	} else {
		retryAfter = rateLimit.Window
		if oldest, err := oldestCmd.Result(); err == nil && len(oldest) > 0 {
			if oldestMs, err := strconv.ParseInt(oldest[0], 10, 64); err == nil {
				retryAfter = time.UnixMilli(oldestMs).Add(rateLimit.Window).Sub(now)
			}
		}
	}

	return &RateLimitResult{
		Allowed:    allowed,
		Remaining:  remaining,
		RetryAfter: retryAfter,
		Limit:      rateLimit.MaxRequests,
	}, nil
}

// Reset resets a rate limit for an identifier
func (rl *RateLimiter) Reset(ctx context.Context, rateLimit RateLimit, identifier string) error {
	key := formatRateLimitKey(rateLimit.Key, identifier)
	if err := rl.client.Del(ctx, key); err != nil {
		rl.logger.Error("Failed to reset rate limit", err, "key", key)
		return err
	}
	return nil
}

// formatRateLimitKey formats a key for rate limiting
func formatRateLimitKey(key, identifier string) string {
	return FormatKey(RateLimitKeyPrefix, fmt.Sprintf("%s:%s", key, identifier))
}

// Common rate limit definitions

// RateLimitAuth defines rate limits for authentication actions
func RateLimitAuth() map[string]RateLimit {
	return map[string]RateLimit{
		"login": {
			Key:         "auth:login",
			MaxRequests: 5,
			Window:      time.Minute * 5,
		},
		"register": {
			Key:         "auth:register",
			MaxRequests: 3,
			Window:      time.Hour,
		},
	}
}

// RateLimitAPI defines rate limits for API actions
func RateLimitAPI() map[string]RateLimit {
	return map[string]RateLimit{
		"general": {
			Key:         "api:general",
			MaxRequests: 100,
			Window:      time.Minute,
		},
		"room_create": {
			Key:         "api:room_create",
			MaxRequests: 5,
			Window:      time.Hour,
		},
	}
}

// RateLimitWebSocket defines rate limits for WebSocket actions
func RateLimitWebSocket() map[string]RateLimit {
	return map[string]RateLimit{
		"connect": {
			Key:         "ws:connect",
			MaxRequests: 10,
			Window:      time.Minute,
		},
		"chat_message": {
			Key:         "ws:chat_message",
			MaxRequests: 30,
			Window:      time.Minute,
		},
		"queue_add": {
			Key:         "ws:queue_add",
			MaxRequests: 20,
			Window:      time.Minute,
		},
		"media_resolve": {
			Key:         "ws:media_resolve",
			MaxRequests: 20,
			Window:      time.Minute,
		},
	}
}
