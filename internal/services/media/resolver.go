// Package media provides media resolution functionality.
package media

import (
	"context"
	"time"

	rd "github.com/go-redis/redis/v8"
	"norelock.dev/waveroom/backend/internal/db/redis"
	"norelock.dev/waveroom/backend/internal/models"
	"norelock.dev/waveroom/backend/internal/utils"
)

const mediaCacheKeyPrefix = "media"

// Resolver resolves media URLs to metadata, caching successful lookups in
// Redis. Resolution failures are never cached.
type Resolver struct {
	providers      map[string]Provider
	cache          *redis.Client
	cacheTTL       time.Duration
	requestTimeout time.Duration
	maxDuration    time.Duration
	logger         *utils.Logger
}

// NewResolver creates a new media resolver.
func NewResolver(cache *redis.Client, cacheTTL, requestTimeout, maxDuration time.Duration, logger *utils.Logger) *Resolver {
	return &Resolver{
		providers:      make(map[string]Provider),
		cache:          cache,
		cacheTTL:       cacheTTL,
		requestTimeout: requestTimeout,
		maxDuration:    maxDuration,
		logger:         logger.Named("media_resolver"),
	}
}

// RegisterProvider registers a media provider.
func (r *Resolver) RegisterProvider(provider Provider) {
	r.providers[provider.Type()] = provider
	r.logger.Info("Registered media provider", "type", provider.Type())
}

// ResolveURL resolves a media URL to its metadata. Only YouTube URLs are
// accepted.
func (r *Resolver) ResolveURL(ctx context.Context, url string) (*models.MediaInfo, error) {
	sourceID := utils.ExtractYouTubeID(url)
	if sourceID == "" {
		return nil, models.NewKindError(models.KindInvalidInput, "not a recognized YouTube URL")
	}

	return r.Resolve(ctx, "youtube", sourceID)
}

// Resolve resolves a media item by provider and source ID.
func (r *Resolver) Resolve(ctx context.Context, providerType, sourceID string) (*models.MediaInfo, error) {
	cacheKey := formatMediaCacheKey(providerType, sourceID)

	var cached models.MediaInfo
	err := r.cache.GetObject(ctx, cacheKey, &cached)
	if err == nil {
		return &cached, nil
	}
	if err != rd.Nil {
		// Cache trouble is not a resolution failure
		r.logger.Warn("Media cache read failed", "key", cacheKey, "error", err)
	}

	provider, ok := r.providers[providerType]
	if !ok {
		return nil, models.NewKindError(models.KindInvalidInput, "unknown media provider")
	}

	resolveCtx, cancel := context.WithTimeout(ctx, r.requestTimeout)
	defer cancel()

	info, err := provider.Resolve(resolveCtx, sourceID)
	if err != nil {
		return nil, err
	}

	if r.maxDuration > 0 && time.Duration(info.DurationSeconds)*time.Second > r.maxDuration {
		return nil, models.NewKindError(models.KindInvalidInput, "video exceeds the maximum allowed duration")
	}

	if err := r.cache.SetObject(ctx, cacheKey, info, r.cacheTTL); err != nil {
		r.logger.Warn("Media cache write failed", "key", cacheKey, "error", err)
	}

	return info, nil
}

// formatMediaCacheKey formats a cache key for resolved media
func formatMediaCacheKey(providerType, sourceID string) string {
	return redis.FormatKey(mediaCacheKeyPrefix, providerType+":"+sourceID)
}
