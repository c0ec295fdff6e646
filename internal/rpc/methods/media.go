package methods

import (
	"context"

	"norelock.dev/waveroom/backend/internal/db/redis"
	"norelock.dev/waveroom/backend/internal/rpc"
	"norelock.dev/waveroom/backend/internal/services/media"
	"norelock.dev/waveroom/backend/internal/utils"
)

// MediaHandler handles media-related RPC methods.
type MediaHandler struct {
	resolver *media.Resolver
	logger   *utils.Logger
}

// NewMediaHandler creates a new MediaHandler.
func NewMediaHandler(resolver *media.Resolver, logger *utils.Logger) *MediaHandler {
	return &MediaHandler{
		resolver: resolver,
		logger:   logger,
	}
}

// RegisterMethods registers media-related RPC methods with the router.
// Resolution hits an upstream API, so it is rate limited per user.
func (h *MediaHandler) RegisterMethods(hr rpc.HandlerRegistry, limiter *redis.RateLimiter, resolveLimit redis.RateLimit) {
	auth := hr.Wrap(rpc.AuthMiddleware)
	limited := auth.Wrap(rpc.RateLimitMiddleware(limiter, resolveLimit))

	rpc.Register(limited, rpc.MethodMediaResolve, h.Resolve)
}

// ResolveParams represents the parameters for the Resolve method.
type ResolveParams struct {
	URL string `json:"url"`
}

// Resolve looks up a track's metadata from its URL without queueing it.
// Clients use this to preview a track before submitting.
func (h *MediaHandler) Resolve(ctx context.Context, client *rpc.Client, p *ResolveParams) (any, error) {
	if p.URL == "" {
		return nil, rpc.NewError(rpc.ErrInvalidParams, "url is required", nil)
	}

	info, err := h.resolver.ResolveURL(ctx, p.URL)
	if err != nil {
		return nil, err
	}

	return info, nil
}
