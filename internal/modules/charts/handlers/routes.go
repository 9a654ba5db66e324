package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all chart and balance routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/charts/daily", h.HandleDaily)
	r.Get("/balances", h.HandleBalances)
}
