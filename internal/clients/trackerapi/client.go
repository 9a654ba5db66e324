// Package trackerapi is a thin REST wrapper around the managed wallet
// backend. The engine only reads transactions and cards from it; mutations
// happen in the UI layer and reach the engine as events.
package trackerapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/HomeCherwe/wallet-engine/internal/domain"
	"github.com/rs/zerolog"
)

// Client talks to the wallet backend REST API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new backend API client.
func NewClient(baseURL, token string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
		log:     log.With().Str("client", "trackerapi").Logger(),
	}
}

// TransactionQuery mirrors the backend's list query parameters
// (cursor-less offset pagination).
type TransactionQuery struct {
	From            int
	To              int
	Search          string
	TransactionType string
	Category        string
	StartDate       *time.Time
	EndDate         *time.Time
	Fields          string
	OrderBy         string
	OrderAsc        bool
	CardID          string
}

func (q TransactionQuery) values() url.Values {
	v := url.Values{}
	if q.From != 0 || q.To != 0 {
		v.Set("from", strconv.Itoa(q.From))
		v.Set("to", strconv.Itoa(q.To))
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.TransactionType != "" {
		v.Set("transaction_type", q.TransactionType)
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.StartDate != nil {
		v.Set("start_date", q.StartDate.Format("2006-01-02"))
	}
	if q.EndDate != nil {
		v.Set("end_date", q.EndDate.Format("2006-01-02"))
	}
	if q.Fields != "" {
		v.Set("fields", q.Fields)
	}
	if q.OrderBy != "" {
		v.Set("order_by", q.OrderBy)
		v.Set("order_asc", strconv.FormatBool(q.OrderAsc))
	}
	if q.CardID != "" {
		v.Set("card_id", q.CardID)
	}
	return v
}

// ListTransactions fetches transactions matching the query.
func (c *Client) ListTransactions(ctx context.Context, q TransactionQuery) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	if err := c.get(ctx, "/api/transactions", q.values(), &txs); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

// ListCards fetches the user's cards.
func (c *Client) ListCards(ctx context.Context) ([]domain.Card, error) {
	var cards []domain.Card
	if err := c.get(ctx, "/api/cards", nil, &cards); err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	return cards, nil
}

// SumsByCard fetches per-card signed transaction sums, keyed by card id.
// The cash pseudo-card is keyed by the empty string.
func (c *Client) SumsByCard(ctx context.Context) (map[string]float64, error) {
	var sums map[string]float64
	if err := c.get(ctx, "/api/transactions/sums", nil, &sums); err != nil {
		return nil, fmt.Errorf("failed to fetch per-card sums: %w", err)
	}
	return sums, nil
}

// GetPreferences fetches the full remote settings object.
func (c *Client) GetPreferences(ctx context.Context) (map[string]interface{}, error) {
	var prefs map[string]interface{}
	if err := c.get(ctx, "/api/preferences", nil, &prefs); err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	if prefs == nil {
		prefs = map[string]interface{}{}
	}
	return prefs, nil
}

// ReplacePreferences replaces the remote settings object wholesale.
func (c *Client) ReplacePreferences(ctx context.Context, prefs map[string]interface{}) error {
	body := map[string]interface{}{"preferences": prefs}
	if err := c.send(ctx, http.MethodPost, "/api/preferences", body); err != nil {
		return fmt.Errorf("failed to replace preferences: %w", err)
	}
	return nil
}

// PatchPreferences sends a partial update carrying only changed
// top-level keys (last-write-wins at the field level).
func (c *Client) PatchPreferences(ctx context.Context, updates map[string]interface{}) error {
	body := map[string]interface{}{"updates": updates}
	if err := c.send(ctx, http.MethodPatch, "/api/preferences", body); err != nil {
		return fmt.Errorf("failed to patch preferences: %w", err)
	}
	return nil
}

// StoreAPISecrets writes third-party API credentials to their separate
// secrets column, never mixed into the preferences object.
func (c *Client) StoreAPISecrets(ctx context.Context, secrets map[string]string) error {
	if err := c.send(ctx, http.MethodPost, "/api/preferences/apis", secrets); err != nil {
		return fmt.Errorf("failed to store api secrets: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	return c.do(req, out)
}

func (c *Client) send(ctx context.Context, method, path string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// 401 is the one fatal error class: it must bubble to the auth gate,
	// never be retried by the cache layer.
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, domain.ErrUnauthorized)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: unexpected status %d", req.Method, req.URL.Path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
