// Package domain contains the core data model of the wallet engine.
// It is pure: no infrastructure dependencies, no I/O.
package domain

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// CurrencyCode is an ISO-4217 alphabetic currency code.
type CurrencyCode string

const (
	UAH  CurrencyCode = "UAH"
	USD  CurrencyCode = "USD"
	EUR  CurrencyCode = "EUR"
	USDT CurrencyCode = "USDT" // treated as USD for rate lookups

	// AllCurrencies is the pseudo-filter meaning "no currency filter".
	AllCurrencies CurrencyCode = "ALL"
)

// UAHNumeric is the ISO-4217 numeric code for the hryvnia, used as the
// pivot in rate table keys ("USD->980").
const UAHNumeric = "980"

// RateTable maps "<fromCode>->980" to the multiplicative rate into UAH.
// Missing entries are a valid state: rates arrive asynchronously and the
// table may be empty or partial during warm-up.
type RateTable map[string]float64

// RateKey builds the table key for converting from the given currency to UAH.
func RateKey(from CurrencyCode) string {
	return string(from) + "->" + UAHNumeric
}

// Rate returns the from->UAH rate, applying the USDT->USD alias.
func (rt RateTable) Rate(from CurrencyCode) (float64, bool) {
	if from == USDT {
		from = USD
	}
	r, ok := rt[RateKey(from)]
	return r, ok
}

// TransferRole identifies which half of a transfer pair a transaction is.
type TransferRole string

const (
	TransferFrom TransferRole = "from"
	TransferTo   TransferRole = "to"
)

// Mode selects which side of the ledger a classification run targets.
type Mode string

const (
	ModeEarning  Mode = "earning"
	ModeSpending Mode = "spending"
)

// Bucket groups cards for balance display.
type Bucket string

const (
	BucketCash    Bucket = "cash"
	BucketCards   Bucket = "cards"
	BucketSavings Bucket = "savings"
	BucketAll     Bucket = "all"
)

// ErrUnauthorized marks the one fatal error class: 401 from the backend.
// It bubbles to the auth gate and is never retried by the cache layer.
var ErrUnauthorized = errors.New("unauthorized")

// Transaction is a single ledger entry as served by the data API.
// The sign of Amount encodes direction: expense < 0, income > 0.
type Transaction struct {
	ID           string       `json:"id"`
	Amount       float64      `json:"amount"`
	CardID       *string      `json:"card_id"` // nil = cash transaction
	Category     string       `json:"category"`
	CreatedAt    time.Time    `json:"created_at"`
	Archived     bool         `json:"archives"`
	IsTransfer   bool         `json:"is_transfer"`
	TransferID   string       `json:"transfer_id,omitempty"`
	TransferRole TransferRole `json:"transfer_role,omitempty"`
	Note         string       `json:"note,omitempty"`
	Currency     CurrencyCode `json:"currency,omitempty"` // empty: resolved via owning card

	// Per-transaction hints used only for single-sided transfer legs whose
	// sibling is missing. Card-derived flags take precedence.
	CountAsIncome bool `json:"count_as_income,omitempty"`
	IsSavings     bool `json:"is_savings,omitempty"`
}

var refundTagRe = regexp.MustCompile(`\[refund_for:([^\]\s]+)\]`)

// RefundFor extracts the refund tag from the note, if present.
// A tagged credit links this transaction to the original expense it refunds.
func (t *Transaction) RefundFor() (string, bool) {
	m := refundTagRe.FindStringSubmatch(t.Note)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// IsExpense reports whether the signed amount encodes an expense.
func (t *Transaction) IsExpense() bool { return t.Amount < 0 }

// IsIncome reports whether the signed amount encodes income.
func (t *Transaction) IsIncome() bool { return t.Amount > 0 }

// Card is a bank card or account owned by the user.
type Card struct {
	ID             string       `json:"id"`
	Bank           string       `json:"bank"`
	Name           string       `json:"name"`
	Currency       CurrencyCode `json:"currency"`
	InitialBalance float64      `json:"initial_balance"`
	Savings        bool         `json:"savings,omitempty"`
}

// savingsHints match savings accounts by bank/name substring, including the
// Ukrainian spelling used by local banks ("накопичувальний").
var savingsHints = []string{"savings", "накопич"}

func containsAny(s string, hints []string) bool {
	s = strings.ToLower(s)
	for _, h := range hints {
		if strings.Contains(s, h) {
			return true
		}
	}
	return false
}

// IsSavings reports whether the card is a savings account, either by the
// explicit flag or by a bank/name substring hint.
func (c *Card) IsSavings() bool {
	if c == nil {
		return false
	}
	return c.Savings || containsAny(c.Bank, savingsHints) || containsAny(c.Name, savingsHints)
}

// IsBinance reports whether the card is a crypto stash on Binance.
// Such cards are treated like savings for classification purposes:
// moving money in or out of them is not real income or expense.
func (c *Card) IsBinance() bool {
	if c == nil {
		return false
	}
	return containsAny(c.Bank, []string{"binance"}) || containsAny(c.Name, []string{"binance"})
}

// IsStash reports whether movements to/from this card are internal
// (savings or binance) rather than real income/expense.
func (c *Card) IsStash() bool {
	return c.IsSavings() || c.IsBinance()
}

var cashHints = []string{"cash", "готівка"}

// BucketFor assigns a card to exactly one display bucket.
func BucketFor(c *Card) Bucket {
	if c == nil {
		return BucketCash
	}
	if c.IsStash() {
		return BucketSavings
	}
	if containsAny(c.Bank, cashHints) || containsAny(c.Name, cashHints) {
		return BucketCash
	}
	return BucketCards
}

// CardIndex is a lookup of cards by id.
type CardIndex map[string]*Card

// NewCardIndex builds a CardIndex from a card list.
func NewCardIndex(cards []Card) CardIndex {
	idx := make(CardIndex, len(cards))
	for i := range cards {
		idx[cards[i].ID] = &cards[i]
	}
	return idx
}

// CardOf resolves the owning card of a transaction, nil for cash.
func (idx CardIndex) CardOf(t *Transaction) *Card {
	if t.CardID == nil {
		return nil
	}
	return idx[*t.CardID]
}

// CurrencyOf resolves the effective currency of a transaction: the explicit
// transaction currency if set, otherwise the owning card's currency,
// otherwise UAH (cash defaults to the local currency).
func (idx CardIndex) CurrencyOf(t *Transaction) CurrencyCode {
	if t.Currency != "" {
		return t.Currency
	}
	if c := idx.CardOf(t); c != nil && c.Currency != "" {
		return c.Currency
	}
	return UAH
}

// Balance computes a card's balance: initial balance plus the sum of signed
// transaction amounts for that card.
func Balance(c *Card, txs []Transaction) float64 {
	total := c.InitialBalance
	for i := range txs {
		if txs[i].CardID != nil && *txs[i].CardID == c.ID {
			total += txs[i].Amount
		}
	}
	return total
}
