// Package classify decides which transactions count toward income and
// expense aggregates. Savings movements, internal transfers and refunds are
// excluded so charts and totals reflect real money in and out.
package classify

import (
	"github.com/HomeCherwe/wallet-engine/internal/domain"
	"github.com/rs/zerolog"
)

// Decision is the classification outcome for a single transaction.
type Decision string

const (
	IncludedIncome  Decision = "included_income"
	IncludedExpense Decision = "included_expense"
	Excluded        Decision = "excluded"
)

// Reason explains an exclusion.
type Reason string

const (
	ReasonArchived         Reason = "archived"
	ReasonSavings          Reason = "savings_card"
	ReasonInternalTransfer Reason = "internal_transfer"
	ReasonCurrencyFilter   Reason = "currency_filter"
	ReasonModeMismatch     Reason = "mode_mismatch"
	ReasonRefund           Reason = "refund_credit"
	ReasonTransferLeg      Reason = "transfer_leg"
)

// Result holds per-transaction decisions. A transaction id appears in
// exactly one of Included or Excluded for a given (mode, currency) pair.
type Result struct {
	Included map[string]Decision
	Excluded map[string]Reason
}

// IncludedIDs returns the set of included transaction ids.
func (r *Result) IncludedIDs() map[string]bool {
	ids := make(map[string]bool, len(r.Included))
	for id := range r.Included {
		ids[id] = true
	}
	return ids
}

// Classifier implements the classification rules. It is stateless and
// never mutates its inputs; classification is deterministic and
// order-independent over the input list.
type Classifier struct {
	log zerolog.Logger
}

// NewClassifier creates a new classifier.
func NewClassifier(log zerolog.Logger) *Classifier {
	return &Classifier{
		log: log.With().Str("service", "classify").Logger(),
	}
}

// Classify partitions transactions into included/excluded for the given
// mode and currency filter (domain.AllCurrencies disables the filter).
func (c *Classifier) Classify(
	txs []domain.Transaction,
	cards domain.CardIndex,
	mode domain.Mode,
	currency domain.CurrencyCode,
) Result {
	res := Result{
		Included: make(map[string]Decision),
		Excluded: make(map[string]Reason),
	}

	// Step 1: archived transactions are dropped unconditionally; the rest
	// partition into transfer groups and plain transactions.
	groups := make(map[string][]*domain.Transaction)
	var plain []*domain.Transaction
	for i := range txs {
		t := &txs[i]
		if t.Archived {
			res.Excluded[t.ID] = ReasonArchived
			continue
		}
		if t.IsTransfer {
			// A transfer without a group id can only ever be single-sided.
			key := t.TransferID
			if key == "" {
				key = "single:" + t.ID
			}
			groups[key] = append(groups[key], t)
			continue
		}
		plain = append(plain, t)
	}

	for _, t := range plain {
		c.classifyPlain(t, cards, mode, currency, &res)
	}

	for _, legs := range groups {
		c.classifyTransferGroup(legs, cards, mode, currency, &res)
	}

	return res
}

// classifyPlain handles non-transfer transactions.
func (c *Classifier) classifyPlain(
	t *domain.Transaction,
	cards domain.CardIndex,
	mode domain.Mode,
	currency domain.CurrencyCode,
	res *Result,
) {
	// Refund credits never count as independent income; they reduce the
	// displayed magnitude of the expense they reference (NetDisplayAmounts).
	if _, isRefund := t.RefundFor(); isRefund && t.IsIncome() {
		res.Excluded[t.ID] = ReasonRefund
		return
	}

	// Movements on savings-class cards are not real income or expense.
	if cards.CardOf(t).IsStash() {
		res.Excluded[t.ID] = ReasonSavings
		return
	}

	if !currencyMatches(t, cards, currency) {
		res.Excluded[t.ID] = ReasonCurrencyFilter
		return
	}

	c.includeByMode(t, mode, res)
}

// classifyTransferGroup handles a set of legs sharing a transfer_id.
func (c *Classifier) classifyTransferGroup(
	legs []*domain.Transaction,
	cards domain.CardIndex,
	mode domain.Mode,
	currency domain.CurrencyCode,
	res *Result,
) {
	from, to := splitLegs(legs)

	// Malformed groups (duplicate roles, more than two legs) are excluded
	// wholesale apart from the resolved pair.
	for _, leg := range legs {
		if leg != from && leg != to {
			res.Excluded[leg.ID] = ReasonTransferLeg
		}
	}

	if from != nil && to != nil {
		fromStash := cards.CardOf(from).IsStash()
		toStash := cards.CardOf(to).IsStash()

		// Both sides savings, or neither: an internal move, never income
		// or expense for either leg.
		if fromStash == toStash {
			res.Excluded[from.ID] = ReasonInternalTransfer
			res.Excluded[to.ID] = ReasonInternalTransfer
			return
		}

		// Exactly one side is savings: the non-savings leg is the one that
		// counts. Money leaving savings credits the non-savings side
		// (income); money entering savings debits it (expense).
		var counting, stash *domain.Transaction
		if fromStash {
			counting, stash = to, from
		} else {
			counting, stash = from, to
		}
		res.Excluded[stash.ID] = ReasonInternalTransfer

		if !currencyMatches(counting, cards, currency) {
			res.Excluded[counting.ID] = ReasonCurrencyFilter
			return
		}
		c.includeByMode(counting, mode, res)
		return
	}

	// Single-sided group: the sibling is missing or was filtered out
	// upstream. Fall back to the transaction-level flags; card-derived
	// savings state takes precedence over them.
	if from != nil {
		c.classifySingleLeg(from, cards, mode, currency, res)
	}
	if to != nil {
		c.classifySingleLeg(to, cards, mode, currency, res)
	}
}

// classifySingleLeg applies the flag-based fallback for a lone transfer leg.
func (c *Classifier) classifySingleLeg(
	t *domain.Transaction,
	cards domain.CardIndex,
	mode domain.Mode,
	currency domain.CurrencyCode,
	res *Result,
) {
	if cards.CardOf(t).IsStash() || t.IsSavings {
		res.Excluded[t.ID] = ReasonSavings
		return
	}

	// Debit legs of a lone transfer are never spending on their own.
	if t.IsExpense() {
		res.Excluded[t.ID] = ReasonTransferLeg
		return
	}

	// Credit legs landing outside savings count as income only when
	// explicitly flagged.
	if !t.CountAsIncome {
		res.Excluded[t.ID] = ReasonTransferLeg
		return
	}

	if !currencyMatches(t, cards, currency) {
		res.Excluded[t.ID] = ReasonCurrencyFilter
		return
	}
	c.includeByMode(t, mode, res)
}

// includeByMode includes a transaction when its sign matches the mode.
func (c *Classifier) includeByMode(t *domain.Transaction, mode domain.Mode, res *Result) {
	switch {
	case mode == domain.ModeSpending && t.IsExpense():
		res.Included[t.ID] = IncludedExpense
	case mode == domain.ModeEarning && t.IsIncome():
		res.Included[t.ID] = IncludedIncome
	default:
		res.Excluded[t.ID] = ReasonModeMismatch
	}
}

// currencyMatches applies the currency filter (ALL disables it).
func currencyMatches(t *domain.Transaction, cards domain.CardIndex, currency domain.CurrencyCode) bool {
	if currency == domain.AllCurrencies || currency == "" {
		return true
	}
	return cards.CurrencyOf(t) == currency
}

// splitLegs resolves the from/to legs of a transfer group. Groups with
// duplicate roles or more than two legs are malformed; extra legs are left
// unresolved and handled as single-sided.
func splitLegs(legs []*domain.Transaction) (from, to *domain.Transaction) {
	for _, leg := range legs {
		switch leg.TransferRole {
		case domain.TransferFrom:
			if from == nil {
				from = leg
			}
		case domain.TransferTo:
			if to == nil {
				to = leg
			}
		}
	}
	return from, to
}
