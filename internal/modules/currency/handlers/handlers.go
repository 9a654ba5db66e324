// Package handlers provides HTTP handlers for currency operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/HomeCherwe/wallet-engine/internal/domain"
	"github.com/HomeCherwe/wallet-engine/internal/modules/charts"
	"github.com/HomeCherwe/wallet-engine/internal/modules/currency"
	"github.com/rs/zerolog"
)

// Handler handles currency HTTP requests
type Handler struct {
	service   *currency.Service
	provider  *currency.RateProvider
	converter *currency.Converter
	log       zerolog.Logger
}

// NewHandler creates a new currency handler
func NewHandler(
	service *currency.Service,
	provider *currency.RateProvider,
	converter *currency.Converter,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		service:   service,
		provider:  provider,
		converter: converter,
		log:       log.With().Str("handler", "currency").Logger(),
	}
}

// ConvertRequest represents a request to convert currency
type ConvertRequest struct {
	FromCurrency string  `json:"from_currency"`
	ToCurrency   string  `json:"to_currency"`
	Amount       float64 `json:"amount"`
}

// HandleConvert handles POST /api/currency/convert
func (h *Handler) HandleConvert(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.FromCurrency == "" || req.ToCurrency == "" {
		http.Error(w, "from_currency and to_currency are required", http.StatusBadRequest)
		return
	}

	converted, exact := h.converter.ConvertExact(
		req.Amount,
		domain.CurrencyCode(req.FromCurrency),
		domain.CurrencyCode(req.ToCurrency),
	)

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"from_currency":    req.FromCurrency,
			"to_currency":      req.ToCurrency,
			"original_amount":  req.Amount,
			"converted_amount": charts.Round2(converted),
			"exact":            exact,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetRates handles GET /api/currency/rates
func (h *Handler) HandleGetRates(w http.ResponseWriter, r *http.Request) {
	table := h.provider.Table()
	updatedAt := h.provider.UpdatedAt()

	var updated string
	if !updatedAt.IsZero() {
		updated = updatedAt.Format(time.RFC3339)
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"rates":      table,
			"pairs":      len(table),
			"updated_at": updated,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleSyncRates handles POST /api/currency/rates/sync
func (h *Handler) HandleSyncRates(w http.ResponseWriter, r *http.Request) {
	h.service.SyncRates(r.Context())
	table := h.provider.Table()

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"synced": true,
			"pairs":  len(table),
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
