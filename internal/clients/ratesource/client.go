// Package ratesource fetches currency exchange rates from a third-party
// endpoint and derives the UAH-pivot rate table used by the converter.
package ratesource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/HomeCherwe/wallet-engine/internal/clientdata"
	"github.com/HomeCherwe/wallet-engine/internal/domain"
	"github.com/rs/zerolog"
)

// cacheKey is the single clientdata row holding the derived pivot table.
const cacheKey = "uah-pivot"

// Client for the exchange rate endpoint. The endpoint quotes every currency
// against USD: {"rates": {"UAH": 41.5, "EUR": 0.92, ...}}.
type Client struct {
	url       string
	client    *http.Client
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new rate source client.
// cacheRepo is optional - if nil, persistent caching is disabled.
func NewClient(url string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	return &Client{
		url:       url,
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       log.With().Str("client", "ratesource").Logger(),
		cacheRepo: cacheRepo,
	}
}

// ratesPayload is the wire format of the rate endpoint.
type ratesPayload struct {
	Rates map[string]float64 `json:"rates"`
}

// FetchTable returns the UAH-pivot rate table ("<code>->980" -> rate).
//
// Failures are soft: if the endpoint is unreachable, a stale cached table is
// returned when available, otherwise an empty table. A payload without a UAH
// rate also yields an empty table - the converter is built to degrade on
// missing entries, so an empty table is always safe to install.
func (c *Client) FetchTable(ctx context.Context) domain.RateTable {
	payload, err := c.fetch(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("Rate fetch failed, trying cache")
		if cached, ok := c.tableFromCache(); ok {
			return cached
		}
		return domain.RateTable{}
	}

	table := DeriveTable(payload.Rates)
	if len(table) == 0 {
		c.log.Warn().Msg("Rate payload had no UAH rate, returning empty table")
		return table
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("exchangerate", cacheKey, table, clientdata.TTLExchangeRate); err != nil {
			c.log.Warn().Err(err).Msg("Failed to cache rate table")
		}
	}

	return table
}

func (c *Client) fetch(ctx context.Context) (*ratesPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build rate request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rate request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rate endpoint returned status %d", resp.StatusCode)
	}

	var payload ratesPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode rate payload: %w", err)
	}

	return &payload, nil
}

// tableFromCache loads the last derived table, stale data included
// (stale data > no data).
func (c *Client) tableFromCache() (domain.RateTable, bool) {
	if c.cacheRepo == nil {
		return nil, false
	}

	data, err := c.cacheRepo.Get("exchangerate", cacheKey)
	if err != nil || data == nil {
		return nil, false
	}

	var table domain.RateTable
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, false
	}

	c.log.Warn().Int("pairs", len(table)).Msg("Using cached rate table")
	return table, true
}

// DeriveTable converts rates-vs-USD into the UAH-pivot table.
// With 1 USD = rates[X] units of X, the UAH value of 1 unit of X is
// rates["UAH"] / rates[X]. A missing UAH quote makes derivation impossible
// and yields an empty table.
func DeriveTable(rates map[string]float64) domain.RateTable {
	table := domain.RateTable{}

	uahPerUSD, ok := rates["UAH"]
	if !ok || uahPerUSD <= 0 {
		return table
	}

	table[domain.RateKey(domain.USD)] = uahPerUSD
	for code, perUSD := range rates {
		if code == "UAH" || code == "USD" || perUSD <= 0 {
			continue
		}
		table[domain.RateKey(domain.CurrencyCode(code))] = uahPerUSD / perUSD
	}

	return table
}
