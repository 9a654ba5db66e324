// Package handlers provides HTTP handlers for balance mutation
// notifications. The tracker UI posts a signed delta here after every
// transaction mutation; the handler validates it and puts it on the event
// bus, where the balance service applies it to cached state.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/HomeCherwe/wallet-engine/internal/events"
	"github.com/rs/zerolog"
)

// Handler handles balance event HTTP requests
type Handler struct {
	eventMgr *events.Manager
	log      zerolog.Logger
}

// NewHandler creates a new balances handler
func NewHandler(eventMgr *events.Manager, log zerolog.Logger) *Handler {
	return &Handler{
		eventMgr: eventMgr,
		log:      log.With().Str("handler", "balances").Logger(),
	}
}

// BalanceDeltaRequest is the mutation notification body. Delta is required;
// a nil CardID means the cash balance. Type is the mutation kind and may be
// omitted when the caller does not know it.
type BalanceDeltaRequest struct {
	Type   string   `json:"type"`
	CardID *string  `json:"card_id"`
	Delta  *float64 `json:"delta"`
}

// HandleBalanceDelta handles POST /api/events/balance-delta
func (h *Handler) HandleBalanceDelta(w http.ResponseWriter, r *http.Request) {
	var req BalanceDeltaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode balance delta")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Delta == nil {
		http.Error(w, "delta is required", http.StatusBadRequest)
		return
	}

	kind := events.MutationKind(req.Type)
	switch kind {
	case "", events.MutationInsert, events.MutationUpdate, events.MutationDelete:
	default:
		http.Error(w, "type must be INSERT, UPDATE or DELETE", http.StatusBadRequest)
		return
	}

	h.eventMgr.Emit(events.BalanceDelta, "balances", &events.BalanceDeltaData{
		Kind:   kind,
		CardID: req.CardID,
		Delta:  *req.Delta,
	})

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"accepted": true,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusAccepted, response)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
