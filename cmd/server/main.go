package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap/zapcore"
	"norelock.dev/waveroom/backend/internal/api"
	"norelock.dev/waveroom/backend/internal/auth"
	"norelock.dev/waveroom/backend/internal/config"
	"norelock.dev/waveroom/backend/internal/db/mongo"
	"norelock.dev/waveroom/backend/internal/db/mongo/repositories"
	"norelock.dev/waveroom/backend/internal/db/redis"
	"norelock.dev/waveroom/backend/internal/db/redis/managers"
	"norelock.dev/waveroom/backend/internal/rpc"
	"norelock.dev/waveroom/backend/internal/rpc/methods"
	"norelock.dev/waveroom/backend/internal/services/media"
	"norelock.dev/waveroom/backend/internal/services/room"
	"norelock.dev/waveroom/backend/internal/services/system"
	"norelock.dev/waveroom/backend/internal/services/user"
	"norelock.dev/waveroom/backend/internal/utils"
)

// CombinedAuthProvider combines JWT and password providers to implement the
// full auth.Provider interface.
type CombinedAuthProvider struct {
	*auth.JWTProvider
	*auth.PasswordProvider
}

func logLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	case "panic":
		return zapcore.PanicLevel
	default:
		return zapcore.InfoLevel
	}
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("Received shutdown signal")
		cancel()
	}()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := utils.NewLogger(utils.LoggerOptions{
		Development: cfg.Environment == "development",
		Level:       logLevel(cfg.Logging.Level),
		OutputPaths: cfg.Logging.OutputPaths,
	})
	logger.Info("Starting Waveroom server", "environment", cfg.Environment)

	// Datastores
	mongoClient, err := mongo.NewClient(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", err)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logger.Error("Failed to disconnect from MongoDB", err)
		}
	}()

	if err := mongo.EnsureIndexes(ctx, mongoClient); err != nil {
		logger.Fatal("Failed to ensure MongoDB indexes", err)
	}

	redisClient, err := redis.NewClient(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", err)
	}
	defer redisClient.Close()

	// Repositories
	userRepo := repositories.NewUserRepository(mongoClient.Database(), logger)
	roomRepo := repositories.NewRoomRepository(mongoClient.Database(), logger)
	submissionRepo := repositories.NewSubmissionRepository(mongoClient.Database(), logger)
	historyRepo := repositories.NewHistoryRepository(mongoClient.Database(), logger)
	chatRepo := repositories.NewChatRepository(mongoClient.Database(), logger)

	// Redis managers
	sessionMgr := managers.NewSessionManager(redisClient, cfg.Auth.RefreshTokenExpiry)
	presenceMgr := managers.NewPresenceManager(redisClient)
	roomStateMgr := managers.NewRoomStateManager(redisClient)
	syncMgr := managers.NewSyncManager(redisClient, cfg.Sync.MaxOffset)
	pubSubMgr := managers.NewPubSubManager(redisClient)
	rateLimiter := redis.NewRateLimiter(redisClient)

	// Auth providers
	jwtProvider := auth.NewJWTProvider(auth.JWTConfig{
		Secret:               cfg.Auth.JWTSecret,
		Issuer:               "waveroom",
		Audience:             "waveroom-users",
		AccessTokenDuration:  cfg.Auth.AccessTokenExpiry,
		RefreshTokenDuration: cfg.Auth.RefreshTokenExpiry,
	}, logger)
	passwordProvider := auth.NewPasswordProvider(logger)
	authProvider := &CombinedAuthProvider{
		JWTProvider:      jwtProvider,
		PasswordProvider: passwordProvider,
	}

	// Media resolution
	mediaResolver := media.NewResolver(redisClient, cfg.Media.CacheTTL, cfg.Media.RequestTimeout, time.Duration(cfg.Media.MaxDuration)*time.Second, logger)
	mediaResolver.RegisterProvider(media.NewYouTubeProvider(cfg.Media.YouTubeAPIKey, logger))

	// Account service
	userManager := user.NewManager(userRepo, sessionMgr, presenceMgr, authProvider, logger)

	// Room services. The latency tracker closes the loop between the hub's
	// connection registry and the sync manager's RTT records.
	hub := rpc.NewHub(logger)
	latencyTracker := rpc.NewLatencyTracker(hub, syncMgr)
	roomServices := room.NewServices(
		roomRepo,
		submissionRepo,
		historyRepo,
		chatRepo,
		roomStateMgr,
		pubSubMgr,
		latencyTracker,
		mediaResolver,
		passwordProvider,
		cfg,
		logger,
	)
	defer roomServices.Close()

	// System services
	healthService := system.NewHealthService(mongoClient.Client(), redisClient, logger, system.HealthServiceConfig{
		Version:     "1.0.0",
		Environment: cfg.Environment,
	})
	metricsService := system.NewMetricsService(logger)
	maintenanceService := system.NewMaintenanceService(
		system.DefaultMaintenanceConfig(),
		presenceMgr,
		roomRepo,
		chatRepo,
		submissionRepo,
		logger,
	)

	// WebSocket RPC
	rpcRouter := rpc.NewRouter(logger)
	methods.RegisterAllMethods(rpcRouter, rateLimiter, syncMgr, roomServices, mediaResolver, logger)

	rpcServer := rpc.NewServer(
		hub,
		rpcRouter,
		jwtProvider,
		sessionMgr,
		presenceMgr,
		syncMgr,
		roomServices,
		cfg.Room.DJGrace,
		logger,
	)

	bridge := rpc.NewBridge(hub, pubSubMgr, metricsService, logger)
	if err := bridge.Start(); err != nil {
		logger.Fatal("Failed to start event bridge", err)
	}

	healthService.Start(ctx)
	metricsService.Start(ctx, hub, presenceMgr)
	maintenanceService.Start()

	router := api.NewRouter(
		authProvider,
		sessionMgr,
		rateLimiter,
		userManager,
		roomServices.Rooms,
		healthService,
		metricsService,
		logger,
	)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// The websocket listener runs on its own port so the API middleware
	// never touches upgrade requests.
	wsAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port+1)
	wsServer := &http.Server{
		Addr:    wsAddr,
		Handler: http.HandlerFunc(rpcServer.HandleWebSocket),
	}

	go func() {
		logger.Info("Starting HTTP server", "address", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", err)
		}
	}()

	go func() {
		logger.Info("Starting WebSocket server", "address", wsAddr)
		if err := wsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("WebSocket server error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", err)
	}

	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("WebSocket server shutdown error", err)
	}

	if err := rpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("RPC server shutdown error", err)
	}

	if err := pubSubMgr.Close(); err != nil {
		logger.Error("PubSub shutdown error", err)
	}

	maintenanceService.Stop()

	logger.Info("Server shutdown complete")
}
