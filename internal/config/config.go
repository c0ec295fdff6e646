// Package config provides functionality for loading and accessing application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	// Environment is the current running environment (development, staging, production)
	Environment string `mapstructure:"environment"`

	// Server configuration
	Server struct {
		// Port is the HTTP server port; the websocket server listens on Port+1
		Port int `mapstructure:"port"`
		// Host is the HTTP server host
		Host string `mapstructure:"host"`
		// ReadTimeout is the maximum duration for reading the entire request
		ReadTimeout time.Duration `mapstructure:"read_timeout"`
		// WriteTimeout is the maximum duration before timing out writes of the response
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
		// IdleTimeout is the maximum amount of time to wait for the next request
		IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	} `mapstructure:"server"`

	// Database configuration
	Database struct {
		// MongoDB configuration
		MongoDB struct {
			// URI is the MongoDB connection URI
			URI string `mapstructure:"uri"`
			// Database is the MongoDB database name
			Database string `mapstructure:"database"`
			// Timeout is the MongoDB operation timeout
			Timeout time.Duration `mapstructure:"timeout"`
			// MaxPoolSize is the maximum number of connections in the connection pool
			MaxPoolSize uint64 `mapstructure:"max_pool_size"`
			// MinPoolSize is the minimum number of connections in the connection pool
			MinPoolSize uint64 `mapstructure:"min_pool_size"`
		} `mapstructure:"mongodb"`

		// Redis configuration
		Redis struct {
			// Addresses is the list of Redis server addresses
			Addresses []string `mapstructure:"addresses"`
			// Username is the Redis username
			Username string `mapstructure:"username"`
			// Password is the Redis password
			Password string `mapstructure:"password"`
			// Database is the Redis database index
			Database int `mapstructure:"database"`
			// MaxRetries is the maximum number of retries for Redis operations
			MaxRetries int `mapstructure:"max_retries"`
			// PoolSize is the Redis connection pool size
			PoolSize int `mapstructure:"pool_size"`
			// DialTimeout is the timeout for establishing new connections
			DialTimeout time.Duration `mapstructure:"dial_timeout"`
			// ReadTimeout is the timeout for Redis reads
			ReadTimeout time.Duration `mapstructure:"read_timeout"`
			// WriteTimeout is the timeout for Redis writes
			WriteTimeout time.Duration `mapstructure:"write_timeout"`
		} `mapstructure:"redis"`
	} `mapstructure:"database"`

	// Authentication configuration
	Auth struct {
		// JWTSecret is the secret key for signing JWTs
		JWTSecret string `mapstructure:"jwt_secret"`
		// AccessTokenExpiry is the expiry time for access tokens
		AccessTokenExpiry time.Duration `mapstructure:"access_token_expiry"`
		// RefreshTokenExpiry is the expiry time for refresh tokens
		RefreshTokenExpiry time.Duration `mapstructure:"refresh_token_expiry"`
		// RateLimitPerMin caps auth attempts per IP per minute
		RateLimitPerMin int `mapstructure:"rate_limit_per_min"`
		// AllowedOrigins is the list of allowed CORS origins
		AllowedOrigins []string `mapstructure:"allowed_origins"`
	} `mapstructure:"auth"`

	// Media configuration
	Media struct {
		// YouTubeAPIKey authenticates against the YouTube Data API
		YouTubeAPIKey string `mapstructure:"youtube_api_key"`
		// RequestTimeout is the hard deadline on a metadata lookup
		RequestTimeout time.Duration `mapstructure:"request_timeout"`
		// CacheTTL is how long resolved metadata is cached, keyed by video id
		CacheTTL time.Duration `mapstructure:"cache_ttl"`
		// MaxDuration is the maximum allowed track duration in seconds
		MaxDuration int `mapstructure:"max_duration"`
	} `mapstructure:"media"`

	// Room configuration
	Room struct {
		// MaxMembersDefault is the member cap applied when a room does not set one
		MaxMembersDefault int `mapstructure:"max_members_default"`
		// MutinyThresholdDefault is the yes-share a mutiny needs when a room does not set one
		MutinyThresholdDefault float64 `mapstructure:"mutiny_threshold_default"`
		// DJGrace is how long a disconnected DJ keeps the slot before timeout removal
		DJGrace time.Duration `mapstructure:"dj_grace"`
		// InactiveTimeout is the time after which an empty room's transient state expires
		InactiveTimeout time.Duration `mapstructure:"inactive_timeout"`
	} `mapstructure:"room"`

	// Playback configuration
	Playback struct {
		// LeadMin is the minimum scheduling lead before a synchronized start
		LeadMin time.Duration `mapstructure:"lead_min"`
		// LeadMax clamps the scheduling lead
		LeadMax time.Duration `mapstructure:"lead_max"`
	} `mapstructure:"playback"`

	// Vote configuration
	Vote struct {
		// Timeout is the deadline for an open vote session
		Timeout time.Duration `mapstructure:"timeout"`
		// MutinyCooldown blocks a new mutiny against the same DJ after a failed one
		MutinyCooldown time.Duration `mapstructure:"mutiny_cooldown"`
	} `mapstructure:"vote"`

	// Sync configuration
	Sync struct {
		// MaxOffset is the sanity cap on reported clock offsets
		MaxOffset time.Duration `mapstructure:"max_offset"`
	} `mapstructure:"sync"`

	// WebSocket configuration
	WebSocket struct {
		// MaxMessageSize is the maximum message size
		MaxMessageSize int64 `mapstructure:"max_message_size"`
		// WriteWait is the time allowed to write a message to the peer
		WriteWait time.Duration `mapstructure:"write_wait"`
		// PongWait is the time allowed to read the next pong message from the peer
		PongWait time.Duration `mapstructure:"pong_wait"`
		// PingPeriod is the time between ping messages
		PingPeriod time.Duration `mapstructure:"ping_period"`
	} `mapstructure:"websocket"`

	// Logging configuration
	Logging struct {
		// Level is the logging level
		Level string `mapstructure:"level"`
		// Format is the logging format (json or console)
		Format string `mapstructure:"format"`
		// OutputPaths is the list of output paths for logs
		OutputPaths []string `mapstructure:"output_paths"`
	} `mapstructure:"logging"`
}

// LoadConfig loads the configuration from file and environment variables.
// It looks for a configuration file in the following locations:
// 1. Path specified in the CONFIG_FILE environment variable
// 2. ./configs directory
// 3. ../configs directory
// 4. /etc/waveroom directory
func LoadConfig() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("app")
	v.SetConfigType("yaml")

	configFile := os.Getenv("CONFIG_FILE")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("/etc/waveroom")
	}

	if err := v.ReadInConfig(); err != nil {
		// Missing config file is fine, env vars and defaults apply
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Environment-specific overrides, if present
	v.SetConfigName(fmt.Sprintf("app.%s", env))
	if err := v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to merge environment config file: %w", err)
		}
	}

	v.SetEnvPrefix("WAVEROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.Environment = env

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets the default values for the configuration
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")

	// Database defaults
	v.SetDefault("database.mongodb.uri", "mongodb://localhost:27017")
	v.SetDefault("database.mongodb.database", "waveroom")
	v.SetDefault("database.mongodb.timeout", "10s")
	v.SetDefault("database.mongodb.max_pool_size", 100)
	v.SetDefault("database.mongodb.min_pool_size", 10)

	v.SetDefault("database.redis.addresses", []string{"localhost:6379"})
	v.SetDefault("database.redis.database", 0)
	v.SetDefault("database.redis.max_retries", 3)
	v.SetDefault("database.redis.pool_size", 100)
	v.SetDefault("database.redis.dial_timeout", "5s")
	v.SetDefault("database.redis.read_timeout", "3s")
	v.SetDefault("database.redis.write_timeout", "3s")

	// Authentication defaults
	v.SetDefault("auth.access_token_expiry", "15m")
	v.SetDefault("auth.refresh_token_expiry", "168h") // 7 days
	v.SetDefault("auth.rate_limit_per_min", 10)
	v.SetDefault("auth.allowed_origins", []string{"*"})

	// Media defaults
	v.SetDefault("media.request_timeout", "10s")
	v.SetDefault("media.cache_ttl", "1h")
	v.SetDefault("media.max_duration", 600) // 10 minutes

	// Room defaults
	v.SetDefault("room.max_members_default", 50)
	v.SetDefault("room.mutiny_threshold_default", 0.51)
	v.SetDefault("room.dj_grace", "30s")
	v.SetDefault("room.inactive_timeout", "12h")

	// Playback defaults
	v.SetDefault("playback.lead_min", "500ms")
	v.SetDefault("playback.lead_max", "2s")

	// Vote defaults
	v.SetDefault("vote.timeout", "60s")
	v.SetDefault("vote.mutiny_cooldown", "60s")

	// Sync defaults
	v.SetDefault("sync.max_offset", "30s")

	// WebSocket defaults
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.ping_period", "54s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_paths", []string{"stdout"})
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65534 {
		return errors.New("server port must be between 1 and 65534")
	}

	if config.Auth.JWTSecret == "" {
		return errors.New("JWT secret must be set")
	}

	if config.Database.MongoDB.URI == "" {
		return errors.New("MongoDB URI must be set")
	}

	if len(config.Database.Redis.Addresses) == 0 {
		return errors.New("at least one Redis address must be provided")
	}

	if config.Room.MutinyThresholdDefault < 0.5 || config.Room.MutinyThresholdDefault > 1.0 {
		return errors.New("mutiny threshold default must be between 0.5 and 1.0")
	}

	if config.Room.MaxMembersDefault < 2 || config.Room.MaxMembersDefault > 100 {
		return errors.New("max members default must be between 2 and 100")
	}

	if config.Playback.LeadMin <= 0 || config.Playback.LeadMax < config.Playback.LeadMin {
		return errors.New("playback lead bounds must satisfy 0 < lead_min <= lead_max")
	}

	if config.Vote.Timeout <= 0 {
		return errors.New("vote timeout must be positive")
	}

	return nil
}

// GetConfigString returns a formatted string with the current configuration
func GetConfigString(config *Config) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Environment: %s\n", config.Environment))
	sb.WriteString(fmt.Sprintf("Server: %s:%d (ws on %d)\n", config.Server.Host, config.Server.Port, config.Server.Port+1))
	sb.WriteString(fmt.Sprintf("MongoDB Database: %s\n", config.Database.MongoDB.Database))
	sb.WriteString(fmt.Sprintf("Redis Database: %d\n", config.Database.Redis.Database))
	sb.WriteString(fmt.Sprintf("Max Members Default: %d\n", config.Room.MaxMembersDefault))
	sb.WriteString(fmt.Sprintf("Mutiny Threshold Default: %.2f\n", config.Room.MutinyThresholdDefault))
	sb.WriteString(fmt.Sprintf("Vote Timeout: %s\n", config.Vote.Timeout))
	sb.WriteString(fmt.Sprintf("Playback Lead: %s - %s\n", config.Playback.LeadMin, config.Playback.LeadMax))

	return sb.String()
}
