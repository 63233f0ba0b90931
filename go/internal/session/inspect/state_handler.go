package inspect

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// StateHandler serves point-in-time reads of the session.
type StateHandler struct {
	src Source
}

// NewStateHandler creates a state handler.
func NewStateHandler(src Source) *StateHandler {
	return &StateHandler{src: src}
}

// HandleGetState handles GET /api/session/state
func (h *StateHandler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, h.src.Snapshot())
}

// HandleGetLeaderboard handles GET /api/session/leaderboard
func (h *StateHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, h.src.Leaderboard())
}

// RegisterRoutes registers the state routes.
func (h *StateHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/session/state", h.HandleGetState)
	mux.HandleFunc("/api/session/leaderboard", h.HandleGetLeaderboard)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
