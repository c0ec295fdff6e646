package handlers

import (
	"encoding/json"
	"net/http"

	"norelock.dev/waveroom/backend/internal/api/middleware"
	"norelock.dev/waveroom/backend/internal/models"
	"norelock.dev/waveroom/backend/internal/services/user"
	"norelock.dev/waveroom/backend/internal/utils"
)

// AccountMetrics counts registrations and logins. The metrics service
// implements it.
type AccountMetrics interface {
	IncUserRegistrations()
	IncUserLogins()
}

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	userManager *user.Manager
	metrics     AccountMetrics
	logger      *utils.Logger
}

// NewAuthHandler creates a new auth handler. metrics may be nil.
func NewAuthHandler(userManager *user.Manager, metrics AccountMetrics, logger *utils.Logger) *AuthHandler {
	return &AuthHandler{
		userManager: userManager,
		metrics:     metrics,
		logger:      logger.Named("auth_handler"),
	}
}

// Register handles user registration.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.userManager.Register(r.Context(), req)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.IncUserRegistrations()
	}
	utils.RespondWithJSON(w, http.StatusCreated, resp)
}

// Login handles user login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.userManager.Login(r.Context(), req)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.IncUserLogins()
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

// RefreshRequest carries the refresh token to exchange.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh handles token refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.RefreshToken == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "refreshToken is required")
		return
	}

	resp, err := h.userManager.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, resp)
}

// Logout handles user logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	sessionID, ok := middleware.SessionID(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	if err := h.userManager.Logout(r.Context(), userID, sessionID); err != nil {
		respondDomainError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// Me returns the current user's public information.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	public, err := h.userManager.GetPublicUser(r.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, public)
}
