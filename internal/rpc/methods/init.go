// Package methods contains RPC method handlers for the application.
package methods

import (
	"context"

	"norelock.dev/waveroom/backend/internal/db/redis"
	"norelock.dev/waveroom/backend/internal/db/redis/managers"
	"norelock.dev/waveroom/backend/internal/rpc"
	"norelock.dev/waveroom/backend/internal/services/media"
	"norelock.dev/waveroom/backend/internal/services/room"
	"norelock.dev/waveroom/backend/internal/utils"
)

// RegisterAllMethods initializes all RPC method handlers and registers them with the router.
func RegisterAllMethods(
	router *rpc.Router,
	limiter *redis.RateLimiter,
	syncMgr *managers.SyncManager,
	services *room.Services,
	mediaResolver *media.Resolver,
	logger *utils.Logger,
) {
	// Create handlers
	syncHandler := NewSyncHandler(syncMgr, logger)
	roomHandler := NewRoomHandler(services.Rooms, logger)
	djHandler := NewDJHandler(services.DJ, logger)
	queueHandler := NewQueueHandler(services.Queue, logger)
	playbackHandler := NewPlaybackHandler(services.Playback, logger)
	voteHandler := NewVoteHandler(services.Votes, logger)
	chatHandler := NewChatHandler(services.Chat, logger)
	mediaHandler := NewMediaHandler(mediaResolver, logger)

	hr := router.Wrap(rpc.RecoveryMiddleware(logger)).Wrap(rpc.LoggingMiddleware(logger))

	// Register methods
	rpc.RegisterNoParams(hr, "ping", handlePing)

	limits := redis.RateLimitWebSocket()

	syncHandler.RegisterMethods(hr)
	roomHandler.RegisterMethods(hr)
	djHandler.RegisterMethods(hr)
	queueHandler.RegisterMethods(hr, limiter, limits["queue_add"])
	playbackHandler.RegisterMethods(hr)
	voteHandler.RegisterMethods(hr)
	chatHandler.RegisterMethods(hr, limiter, limits["chat_message"])
	mediaHandler.RegisterMethods(hr, limiter, limits["media_resolve"])
	logger.Info("Registered all RPC methods")
}

func handlePing(ctx context.Context, client *rpc.Client) (any, error) {
	return "pong", nil
}
