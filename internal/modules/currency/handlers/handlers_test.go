package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/HomeCherwe/wallet-engine/internal/domain"
	"github.com/HomeCherwe/wallet-engine/internal/modules/currency"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(table domain.RateTable) chi.Router {
	provider := currency.NewRateProvider()
	if table != nil {
		provider.Replace(table)
	}
	converter := currency.NewConverter(provider)
	h := NewHandler(nil, provider, converter, zerolog.Nop())

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func TestHandleConvert(t *testing.T) {
	router := newTestRouter(domain.RateTable{
		domain.RateKey(domain.USD): 40,
	})

	body := `{"from_currency":"USD","to_currency":"UAH","amount":10}`
	req := httptest.NewRequest("POST", "/currency/convert", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			ConvertedAmount float64 `json:"converted_amount"`
			Exact           bool    `json:"exact"`
		} `json:"data"`
		Metadata struct {
			Timestamp string `json:"timestamp"`
		} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 400.0, resp.Data.ConvertedAmount)
	assert.True(t, resp.Data.Exact)
	assert.NotEmpty(t, resp.Metadata.Timestamp)
}

func TestHandleConvertMissingRateIsInexact(t *testing.T) {
	router := newTestRouter(nil)

	body := `{"from_currency":"EUR","to_currency":"UAH","amount":5}`
	req := httptest.NewRequest("POST", "/currency/convert", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			ConvertedAmount float64 `json:"converted_amount"`
			Exact           bool    `json:"exact"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 5.0, resp.Data.ConvertedAmount)
	assert.False(t, resp.Data.Exact)
}

func TestHandleConvertRejectsBadRequests(t *testing.T) {
	router := newTestRouter(nil)

	req := httptest.NewRequest("POST", "/currency/convert", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest("POST", "/currency/convert", strings.NewReader(`{"amount":1}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetRates(t *testing.T) {
	router := newTestRouter(domain.RateTable{
		domain.RateKey(domain.USD): 40,
		domain.RateKey(domain.EUR): 45,
	})

	req := httptest.NewRequest("GET", "/currency/rates", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Pairs     int                `json:"pairs"`
			Rates     map[string]float64 `json:"rates"`
			UpdatedAt string             `json:"updated_at"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Data.Pairs)
	assert.Equal(t, 40.0, resp.Data.Rates[domain.RateKey(domain.USD)])
	assert.NotEmpty(t, resp.Data.UpdatedAt)
}
