// Package redis provides Redis database connectivity and operations.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"norelock.dev/waveroom/backend/internal/config"
	"norelock.dev/waveroom/backend/internal/utils"
)

// casScript atomically replaces a key's value only when the current value
// matches the expected one. An empty expected value means "key absent"; an
// empty new value deletes the key. ARGV[3] is a TTL in milliseconds.
var casScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
local expected = ARGV[1]
if (cur == false and expected == '') or cur == expected then
  if ARGV[2] == '' then
    redis.call('DEL', KEYS[1])
  else
    if tonumber(ARGV[3]) > 0 then
      redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
    else
      redis.call('SET', KEYS[1], ARGV[2])
    end
  end
  return 1
end
return 0
`)

// Client wraps the Redis client with app-specific functionality
type Client struct {
	client *redis.Client
	logger *utils.Logger
}

// NewClient creates a new Redis client
func NewClient(cfg *config.Config, logger *utils.Logger) (*Client, error) {
	if logger == nil {
		logger = utils.GetLogger()
	}

	opts := &redis.Options{
		Addr:         cfg.Database.Redis.Addresses[0], // Use the first address in the list
		Username:     cfg.Database.Redis.Username,
		Password:     cfg.Database.Redis.Password,
		DB:           cfg.Database.Redis.Database,
		MaxRetries:   cfg.Database.Redis.MaxRetries,
		PoolSize:     cfg.Database.Redis.PoolSize,
		DialTimeout:  cfg.Database.Redis.DialTimeout,
		ReadTimeout:  cfg.Database.Redis.ReadTimeout,
		WriteTimeout: cfg.Database.Redis.WriteTimeout,
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", err, "addr", opts.Addr)
		return nil, err
	}

	logger.Info("Connected to Redis", "addr", opts.Addr, "db", opts.DB)

	return &Client{
		client: client,
		logger: logger,
	}, nil
}

// NewClientFromRedis wraps an existing go-redis client. Used by tests that
// run against miniredis.
func NewClientFromRedis(client *redis.Client, logger *utils.Logger) *Client {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &Client{client: client, logger: logger}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	err := c.client.Close()
	if err != nil {
		c.logger.Error("Failed to close Redis connection", err)
		return err
	}
	c.logger.Info("Closed Redis connection")
	return nil
}

// Client returns the underlying Redis client
func (c *Client) Client() *redis.Client {
	return c.client
}

// Ping pings the Redis server
func (c *Client) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		c.logger.Error("Failed to ping Redis", err)
		return err
	}
	return nil
}

// Get gets a value from Redis. A missing key yields an empty string.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	value, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		c.logger.Error("Failed to get value from Redis", err, "key", key)
		return "", err
	}
	return value, nil
}

// GetObject gets an object from Redis and unmarshals it. Returns redis.Nil
// when the key does not exist.
func (c *Client) GetObject(ctx context.Context, key string, dest any) error {
	data, err := c.Get(ctx, key)
	if err != nil {
		return err
	}

	if data == "" {
		return redis.Nil
	}

	return json.Unmarshal([]byte(data), dest)
}

// Set sets a value in Redis with an optional expiration
func (c *Client) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	if err := c.client.Set(ctx, key, value, expiration).Err(); err != nil {
		c.logger.Error("Failed to set value in Redis", err, "key", key)
		return err
	}
	return nil
}

// SetObject sets an object in Redis by marshaling it to JSON
func (c *Client) SetObject(ctx context.Context, key string, value any, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Error("Failed to marshal object for Redis", err, "key", key)
		return err
	}

	return c.Set(ctx, key, string(data), expiration)
}

// SetNX sets a key only if it does not exist. Returns true if the key was set.
func (c *Client) SetNX(ctx context.Context, key, value string, expiration time.Duration) (bool, error) {
	set, err := c.client.SetNX(ctx, key, value, expiration).Result()
	if err != nil {
		c.logger.Error("Failed to setnx value in Redis", err, "key", key)
		return false, err
	}
	return set, nil
}

// CompareAndSet atomically replaces key's value only if its current value
// equals expected. An empty expected means the key must be absent; an empty
// newValue deletes the key. Returns true if the swap happened.
func (c *Client) CompareAndSet(ctx context.Context, key, expected, newValue string, expiration time.Duration) (bool, error) {
	res, err := casScript.Run(ctx, c.client, []string{key}, expected, newValue, expiration.Milliseconds()).Int()
	if err != nil {
		c.logger.Error("Failed to compare-and-set in Redis", err, "key", key)
		return false, err
	}
	return res == 1, nil
}

// Del deletes a key from Redis
func (c *Client) Del(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Error("Failed to delete key from Redis", err, "key", key)
		return err
	}
	return nil
}

// DelKeys deletes all keys matching a pattern
func (c *Client) DelKeys(ctx context.Context, pattern string) error {
	keys, err := c.Keys(ctx, pattern)
	if err != nil {
		return err
	}

	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Error("Failed to delete keys from Redis", err, "pattern", pattern)
		return err
	}

	return nil
}

// Keys gets all keys matching a pattern
func (c *Client) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys, err := c.client.Keys(ctx, pattern).Result()
	if err != nil {
		c.logger.Error("Failed to get keys from Redis", err, "pattern", pattern)
		return nil, err
	}
	return keys, nil
}

// Exists checks if a key exists in Redis
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	exists, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		c.logger.Error("Failed to check if key exists in Redis", err, "key", key)
		return false, err
	}
	return exists > 0, nil
}

// Expire sets an expiration on a key
func (c *Client) Expire(ctx context.Context, key string, expiration time.Duration) error {
	if err := c.client.Expire(ctx, key, expiration).Err(); err != nil {
		c.logger.Error("Failed to set expiration on key", err, "key", key)
		return err
	}
	return nil
}

// TTL gets the TTL of a key
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := c.client.TTL(ctx, key).Result()
	if err != nil {
		c.logger.Error("Failed to get TTL of key", err, "key", key)
		return 0, err
	}
	return ttl, nil
}

// Incr increments a key
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	value, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		c.logger.Error("Failed to increment key", err, "key", key)
		return 0, err
	}
	return value, nil
}

// IncrBy increments a key by a specific amount
func (c *Client) IncrBy(ctx context.Context, key string, value int64) (int64, error) {
	result, err := c.client.IncrBy(ctx, key, value).Result()
	if err != nil {
		c.logger.Error("Failed to increment key by value", err, "key", key, "value", value)
		return 0, err
	}
	return result, nil
}

// Decr decrements a key
func (c *Client) Decr(ctx context.Context, key string) (int64, error) {
	value, err := c.client.Decr(ctx, key).Result()
	if err != nil {
		c.logger.Error("Failed to decrement key", err, "key", key)
		return 0, err
	}
	return value, nil
}

// HSet sets a hash field
func (c *Client) HSet(ctx context.Context, key, field string, value any) error {
	if err := c.client.HSet(ctx, key, field, value).Err(); err != nil {
		c.logger.Error("Failed to set hash field", err, "key", key, "field", field)
		return err
	}
	return nil
}

// HSetNX sets a hash field only if it does not exist. Returns true if the
// field was set. This is the single-insert primitive behind ballot casting.
func (c *Client) HSetNX(ctx context.Context, key, field string, value any) (bool, error) {
	set, err := c.client.HSetNX(ctx, key, field, value).Result()
	if err != nil {
		c.logger.Error("Failed to hsetnx hash field", err, "key", key, "field", field)
		return false, err
	}
	return set, nil
}

// HGet gets a hash field. A missing field yields an empty string.
func (c *Client) HGet(ctx context.Context, key, field string) (string, error) {
	value, err := c.client.HGet(ctx, key, field).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		c.logger.Error("Failed to get hash field", err, "key", key, "field", field)
		return "", err
	}
	return value, nil
}

// HGetAll gets all fields in a hash
func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	values, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		c.logger.Error("Failed to get all hash fields", err, "key", key)
		return nil, err
	}
	return values, nil
}

// HDel deletes a hash field
func (c *Client) HDel(ctx context.Context, key, field string) error {
	if err := c.client.HDel(ctx, key, field).Err(); err != nil {
		c.logger.Error("Failed to delete hash field", err, "key", key, "field", field)
		return err
	}
	return nil
}

// HLen gets the number of fields in a hash
func (c *Client) HLen(ctx context.Context, key string) (int64, error) {
	length, err := c.client.HLen(ctx, key).Result()
	if err != nil {
		c.logger.Error("Failed to get hash length", err, "key", key)
		return 0, err
	}
	return length, nil
}

// SAdd adds a member to a set
func (c *Client) SAdd(ctx context.Context, key string, members ...any) error {
	if err := c.client.SAdd(ctx, key, members...).Err(); err != nil {
		c.logger.Error("Failed to add members to set", err, "key", key)
		return err
	}
	return nil
}

// SMembers gets all members of a set
func (c *Client) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := c.client.SMembers(ctx, key).Result()
	if err != nil {
		c.logger.Error("Failed to get set members", err, "key", key)
		return nil, err
	}
	return members, nil
}

// SIsMember checks if a value is a member of a set
func (c *Client) SIsMember(ctx context.Context, key string, member any) (bool, error) {
	isMember, err := c.client.SIsMember(ctx, key, member).Result()
	if err != nil {
		c.logger.Error("Failed to check set membership", err, "key", key)
		return false, err
	}
	return isMember, nil
}

// SRem removes a member from a set
func (c *Client) SRem(ctx context.Context, key string, members ...any) error {
	if err := c.client.SRem(ctx, key, members...).Err(); err != nil {
		c.logger.Error("Failed to remove members from set", err, "key", key)
		return err
	}
	return nil
}

// SCard gets the number of members in a set
func (c *Client) SCard(ctx context.Context, key string) (int64, error) {
	count, err := c.client.SCard(ctx, key).Result()
	if err != nil {
		c.logger.Error("Failed to get set cardinality", err, "key", key)
		return 0, err
	}
	return count, nil
}

// Pipeline creates a Redis pipeline
func (c *Client) Pipeline() redis.Pipeliner {
	return c.client.Pipeline()
}

// TxPipeline creates a Redis transaction pipeline
func (c *Client) TxPipeline() redis.Pipeliner {
	return c.client.TxPipeline()
}

// Publish publishes a message to a channel
func (c *Client) Publish(ctx context.Context, channel string, message any) error {
	if err := c.client.Publish(ctx, channel, message).Err(); err != nil {
		c.logger.Error("Failed to publish message", err, "channel", channel)
		return err
	}
	return nil
}

// Subscribe subscribes to channels
func (c *Client) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return c.client.Subscribe(ctx, channels...)
}

// PSubscribe subscribes to channel patterns
func (c *Client) PSubscribe(ctx context.Context, patterns ...string) *redis.PubSub {
	return c.client.PSubscribe(ctx, patterns...)
}

// Logger returns the logger used by the client
func (c *Client) Logger() *utils.Logger {
	return c.logger
}

// FormatKey creates a namespaced Redis key
func FormatKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}
