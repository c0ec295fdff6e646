package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"norelock.dev/waveroom/backend/internal/services/room"
	"norelock.dev/waveroom/backend/internal/utils"
)

// RoomHandler serves room discovery over REST. Everything stateful goes
// through the websocket RPC surface.
type RoomHandler struct {
	rooms  *room.Manager
	logger *utils.Logger
}

// NewRoomHandler creates a new room handler.
func NewRoomHandler(rooms *room.Manager, logger *utils.Logger) *RoomHandler {
	return &RoomHandler{
		rooms:  rooms,
		logger: logger.Named("room_handler"),
	}
}

// List returns active rooms with member counts, most recently updated first.
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	if skip < 0 {
		skip = 0
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rooms, err := h.rooms.ListActiveRooms(r.Context(), skip, limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

// GetByCode looks up an active room by its join code.
func (h *RoomHandler) GetByCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	info, err := h.rooms.RoomInfoByCode(r.Context(), code)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, info)
}
