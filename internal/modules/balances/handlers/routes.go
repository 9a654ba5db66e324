package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all balance event routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/events/balance-delta", h.HandleBalanceDelta)
}
