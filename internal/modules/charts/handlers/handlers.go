// Package handlers provides HTTP handlers for chart and balance queries.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/HomeCherwe/wallet-engine/internal/domain"
	"github.com/HomeCherwe/wallet-engine/internal/modules/charts"
	"github.com/rs/zerolog"
)

// DataSource supplies the cached state the aggregates are computed from.
// Satisfied by balances.Service.
type DataSource interface {
	Cards(ctx context.Context) ([]domain.Card, error)
	Transactions(ctx context.Context, from, to time.Time) ([]domain.Transaction, error)
	Totals(ctx context.Context) (charts.BucketReport, error)
}

const defaultRangeDays = 30

// Handler handles chart HTTP requests
type Handler struct {
	service *charts.Service
	data    DataSource
	log     zerolog.Logger
}

// NewHandler creates a new charts handler
func NewHandler(service *charts.Service, data DataSource, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		data:    data,
		log:     log.With().Str("handler", "charts").Logger(),
	}
}

// HandleDaily handles GET /api/charts/daily.
// Query: mode (spending|earning), currency (ISO code or ALL), from, to
// (YYYY-MM-DD). Defaults: spending, ALL, the last 30 days.
func (h *Handler) HandleDaily(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	mode := domain.ModeSpending
	switch q.Get("mode") {
	case "", string(domain.ModeSpending):
	case string(domain.ModeEarning):
		mode = domain.ModeEarning
	default:
		http.Error(w, "mode must be spending or earning", http.StatusBadRequest)
		return
	}

	currency := domain.AllCurrencies
	if c := q.Get("currency"); c != "" {
		currency = domain.CurrencyCode(c)
	}

	to := time.Now()
	from := to.AddDate(0, 0, -defaultRangeDays)
	var err error
	if v := q.Get("to"); v != "" {
		if to, err = time.ParseInLocation("2006-01-02", v, time.Local); err != nil {
			http.Error(w, "invalid to date", http.StatusBadRequest)
			return
		}
	}
	if v := q.Get("from"); v != "" {
		if from, err = time.ParseInLocation("2006-01-02", v, time.Local); err != nil {
			http.Error(w, "invalid from date", http.StatusBadRequest)
			return
		}
	}

	cards, err := h.data.Cards(r.Context())
	if err != nil {
		h.writeFetchError(w, err, "Failed to fetch cards")
		return
	}
	txs, err := h.data.Transactions(r.Context(), from, to)
	if err != nil {
		h.writeFetchError(w, err, "Failed to fetch transactions")
		return
	}

	index := domain.NewCardIndex(cards)
	series := h.service.DailySeries(txs, index, mode, currency, from, to)
	totals := h.service.PeriodTotals(series)

	for _, p := range series {
		roundTotals(p.Totals)
	}
	roundTotals(totals)

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"series": series,
			"totals": totals,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// HandleBalances handles GET /api/balances
func (h *Handler) HandleBalances(w http.ResponseWriter, r *http.Request) {
	report, err := h.data.Totals(r.Context())
	if err != nil {
		h.writeFetchError(w, err, "Failed to compute balances")
		return
	}

	for _, totals := range report.Buckets {
		roundTotals(totals)
	}
	roundTotals(report.All)

	response := map[string]interface{}{
		"data": report,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// writeFetchError maps data API failures: auth failures surface as 401 so
// the client's auth gate takes over, anything else is a bad upstream.
func (h *Handler) writeFetchError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, domain.ErrUnauthorized) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	h.log.Error().Err(err).Msg(msg)
	http.Error(w, msg, http.StatusBadGateway)
}

func roundTotals(totals map[domain.CurrencyCode]float64) {
	for k, v := range totals {
		totals[k] = charts.Round2(v)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
