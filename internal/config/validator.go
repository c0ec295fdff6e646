// Package config provides functionality for loading and accessing application configuration.
package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

// ValidateAndFixConfig validates the configuration, fixes recoverable issues
// in place, and returns human-readable warnings for everything it touched.
func ValidateAndFixConfig(config *Config) []string {
	var warnings []string

	// JWT secret
	if config.Auth.JWTSecret == "" {
		warnings = append(warnings, "JWT secret is not set, generating a random one")
		secret, err := generateRandomSecret(32)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to generate JWT secret: %v", err))
		} else {
			config.Auth.JWTSecret = secret
		}
	} else if len(config.Auth.JWTSecret) < 16 {
		warnings = append(warnings, "JWT secret is too short, should be at least 16 characters")
	}

	// Server timeouts
	minTimeout := 1 * time.Second
	maxTimeout := 5 * time.Minute

	if config.Server.ReadTimeout < minTimeout {
		warnings = append(warnings, fmt.Sprintf("Server read timeout is too short (%v), setting to %v", config.Server.ReadTimeout, minTimeout))
		config.Server.ReadTimeout = minTimeout
	} else if config.Server.ReadTimeout > maxTimeout {
		warnings = append(warnings, fmt.Sprintf("Server read timeout is too long (%v), setting to %v", config.Server.ReadTimeout, maxTimeout))
		config.Server.ReadTimeout = maxTimeout
	}

	if config.Server.WriteTimeout < minTimeout {
		warnings = append(warnings, fmt.Sprintf("Server write timeout is too short (%v), setting to %v", config.Server.WriteTimeout, minTimeout))
		config.Server.WriteTimeout = minTimeout
	}

	// MongoDB connection string
	if !strings.HasPrefix(config.Database.MongoDB.URI, "mongodb://") && !strings.HasPrefix(config.Database.MongoDB.URI, "mongodb+srv://") {
		warnings = append(warnings, "MongoDB URI is invalid, must start with mongodb:// or mongodb+srv://")
	}

	// Redis addresses
	for _, addr := range config.Database.Redis.Addresses {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("Invalid Redis address: %s", addr))
			continue
		}
		if host == "" || port == "" {
			warnings = append(warnings, fmt.Sprintf("Redis address has empty host or port: %s", addr))
		}
	}

	// Media configuration
	if config.Media.YouTubeAPIKey == "" {
		warnings = append(warnings, "YouTube API key is not set, media resolution will fail")
	}
	if config.Media.RequestTimeout <= 0 {
		warnings = append(warnings, "Media request timeout must be positive, setting to 10s")
		config.Media.RequestTimeout = 10 * time.Second
	}
	if config.Media.CacheTTL <= 0 {
		warnings = append(warnings, "Media cache TTL must be positive, setting to 1h")
		config.Media.CacheTTL = time.Hour
	}

	// Playback lead bounds
	if config.Playback.LeadMin < 100*time.Millisecond {
		warnings = append(warnings, fmt.Sprintf("Playback lead_min is too short (%v), setting to 500ms", config.Playback.LeadMin))
		config.Playback.LeadMin = 500 * time.Millisecond
	}
	if config.Playback.LeadMax < config.Playback.LeadMin {
		warnings = append(warnings, "Playback lead_max is below lead_min, setting to 2s")
		config.Playback.LeadMax = 2 * time.Second
	}

	// Vote timings
	if config.Vote.Timeout < 5*time.Second {
		warnings = append(warnings, fmt.Sprintf("Vote timeout is too short (%v), setting to 60s", config.Vote.Timeout))
		config.Vote.Timeout = 60 * time.Second
	}
	if config.Vote.MutinyCooldown < 0 {
		warnings = append(warnings, "Mutiny cooldown is negative, setting to 60s")
		config.Vote.MutinyCooldown = 60 * time.Second
	}

	// Sync sanity cap
	if config.Sync.MaxOffset <= 0 {
		warnings = append(warnings, "Sync max offset must be positive, setting to 30s")
		config.Sync.MaxOffset = 30 * time.Second
	}

	// Logging configuration
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
		"dpanic": true, "panic": true, "fatal": true,
	}
	if !validLevels[strings.ToLower(config.Logging.Level)] {
		warnings = append(warnings, fmt.Sprintf("Invalid logging level: %s, setting to 'info'", config.Logging.Level))
		config.Logging.Level = "info"
	}

	if f := strings.ToLower(config.Logging.Format); f != "json" && f != "console" {
		warnings = append(warnings, fmt.Sprintf("Invalid logging format: %s, setting to 'json'", config.Logging.Format))
		config.Logging.Format = "json"
	}

	return warnings
}

// generateRandomSecret generates a random secret string of the specified length
func generateRandomSecret(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}

	return base64.URLEncoding.EncodeToString(bytes)[:length], nil
}

// GetLogLevel converts a string log level to a zap log level
func GetLogLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "dpanic":
		return zapcore.DPanicLevel
	case "panic":
		return zapcore.PanicLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}
