// Package handlers provides HTTP handlers for settings operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/HomeCherwe/wallet-engine/internal/modules/settings"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles settings HTTP requests
type Handler struct {
	store *settings.Store
	log   zerolog.Logger
}

// NewHandler creates a new settings handler
func NewHandler(store *settings.Store, log zerolog.Logger) *Handler {
	return &Handler{
		store: store,
		log:   log.With().Str("handler", "settings").Logger(),
	}
}

// HandleGetSettings handles GET /api/settings
func (h *Handler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	metadata := map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if syncedAt, ok := h.store.LastRemoteSync(); ok {
		metadata["last_remote_sync"] = syncedAt.Format(time.RFC3339)
	}

	response := map[string]interface{}{
		"data":     h.store.All(),
		"metadata": metadata,
	}
	h.writeJSON(w, http.StatusOK, response)
}

// HandleUpdateSetting handles PUT /api/settings/{key}. The body is the raw
// JSON value to store under the key.
func (h *Handler) HandleUpdateSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		http.Error(w, "setting key is required", http.StatusBadRequest)
		return
	}

	var value interface{}
	if err := json.NewDecoder(r.Body).Decode(&value); err != nil {
		h.log.Error().Err(err).Str("key", key).Msg("Failed to decode setting value")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.store.Update(key, value); err != nil {
		h.log.Error().Err(err).Str("key", key).Msg("Failed to update setting")
		http.Error(w, "Failed to update setting", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"key":     key,
			"updated": true,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// HandleReset handles POST /api/settings/reset
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Reset(); err != nil {
		h.log.Error().Err(err).Msg("Failed to reset settings")
		http.Error(w, "Failed to reset settings", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"reset": true,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
