// Package handlers contains HTTP handlers for the API.
package handlers

import (
	"net/http"

	"norelock.dev/waveroom/backend/internal/api/middleware"
	"norelock.dev/waveroom/backend/internal/models"
	"norelock.dev/waveroom/backend/internal/utils"
)

// respondDomainError maps a service error onto an HTTP status and the
// standard error body.
func respondDomainError(w http.ResponseWriter, err error) {
	utils.RespondWithJSON(w, models.HTTPStatus(models.Kind(err)), models.NewErrorResponse(err))
}

// callerID returns the authenticated user's ID, writing a 401 when the
// context has none.
func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserID(r.Context())
	if !ok || userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Not authenticated")
		return "", false
	}
	return userID, true
}
