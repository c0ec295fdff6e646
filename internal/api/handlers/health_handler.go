package handlers

import (
	"net/http"

	"norelock.dev/waveroom/backend/internal/services/system"
	"norelock.dev/waveroom/backend/internal/utils"
)

// HealthHandler handles HTTP requests related to system health.
type HealthHandler struct {
	healthSvc *system.HealthService
	logger    *utils.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(healthSvc *system.HealthService, logger *utils.Logger) *HealthHandler {
	return &HealthHandler{
		healthSvc: healthSvc,
		logger:    logger.Named("health_handler"),
	}
}

// Check reports the cached component health. Serves 503 when any component
// is down so load balancers can drain the node.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	health := h.healthSvc.GetHealth(r.Context())

	statusCode := http.StatusOK
	if health.Status == system.StatusDown {
		statusCode = http.StatusServiceUnavailable
	}

	utils.RespondWithJSON(w, statusCode, health)
}
