// Package api provides the HTTP API for the application.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"norelock.dev/waveroom/backend/internal/api/handlers"
	appMiddleware "norelock.dev/waveroom/backend/internal/api/middleware"
	"norelock.dev/waveroom/backend/internal/auth"
	"norelock.dev/waveroom/backend/internal/db/redis"
	"norelock.dev/waveroom/backend/internal/db/redis/managers"
	"norelock.dev/waveroom/backend/internal/services/room"
	"norelock.dev/waveroom/backend/internal/services/system"
	"norelock.dev/waveroom/backend/internal/services/user"
	"norelock.dev/waveroom/backend/internal/utils"
)

// Router is the main HTTP router for the API.
type Router struct {
	*chi.Mux
	logger *utils.Logger
}

// NewRouter creates a new API router. The websocket endpoint lives on its
// own listener; everything else is served here.
func NewRouter(
	authProvider auth.Provider,
	sessionMgr *managers.SessionManager,
	limiter *redis.RateLimiter,
	userManager *user.Manager,
	roomManager *room.Manager,
	healthService *system.HealthService,
	metricsService *system.MetricsService,
	logger *utils.Logger,
) *Router {
	r := chi.NewRouter()
	apiLogger := logger.Named("api")

	recoveryMiddleware := appMiddleware.NewRecoveryMiddleware(apiLogger)
	loggerMiddleware := appMiddleware.NewLoggerMiddleware(apiLogger, metricsService)
	corsMiddleware := appMiddleware.NewCORSMiddleware(appMiddleware.DefaultCORSConfig(), apiLogger)
	authMiddleware := appMiddleware.NewAuthMiddleware(authProvider, sessionMgr, apiLogger)
	rateLimitMiddleware := appMiddleware.NewRateLimitMiddleware(limiter, apiLogger)

	authHandler := handlers.NewAuthHandler(userManager, metricsService, apiLogger)
	roomHandler := handlers.NewRoomHandler(roomManager, apiLogger)
	healthHandler := handlers.NewHealthHandler(healthService, apiLogger)

	r.Use(recoveryMiddleware.Recovery)
	r.Use(loggerMiddleware.Logger)
	r.Use(corsMiddleware.CORS)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Heartbeat("/ping"))

	authLimits := redis.RateLimitAuth()

	// Public routes
	r.Group(func(r chi.Router) {
		r.Get("/health", healthHandler.Check)
		r.Method(http.MethodGet, "/metrics", metricsService.Handler())

		r.Route("/api/auth", func(r chi.Router) {
			r.With(rateLimitMiddleware.Limit(authLimits["register"])).
				Post("/register", authHandler.Register)
			r.With(rateLimitMiddleware.Limit(authLimits["login"])).
				Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
		})
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.RequireAuth)

		r.Post("/api/auth/logout", authHandler.Logout)
		r.Get("/api/users/me", authHandler.Me)

		r.Route("/api/rooms", func(r chi.Router) {
			r.Get("/", roomHandler.List)
			r.Get("/code/{code}", roomHandler.GetByCode)
		})
	})

	return &Router{
		Mux:    r,
		logger: apiLogger,
	}
}
