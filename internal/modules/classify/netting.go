package classify

import (
	"github.com/HomeCherwe/wallet-engine/internal/domain"
)

// ConvertFn converts an amount between currencies, reporting exactness.
// Matched by (*currency.Converter).ConvertExact.
type ConvertFn = func(amount float64, from, to domain.CurrencyCode) (float64, bool)

// NetDisplayAmounts computes the signed display amount for every ledger row.
//
// A refund credit (a credit whose note carries "[refund_for:<id>]") is not a
// row of its own: its amount, converted into the referenced expense's
// currency, shrinks that expense's displayed magnitude. A refund whose
// referenced expense is not in the list falls back to a plain row so money
// never silently disappears. Archived transactions are omitted.
func (c *Classifier) NetDisplayAmounts(
	txs []domain.Transaction,
	cards domain.CardIndex,
	convert ConvertFn,
) map[string]float64 {
	byID := make(map[string]*domain.Transaction, len(txs))
	for i := range txs {
		byID[txs[i].ID] = &txs[i]
	}

	display := make(map[string]float64)
	for i := range txs {
		t := &txs[i]
		if t.Archived {
			continue
		}

		target, isRefund := t.RefundFor()
		if isRefund && t.IsIncome() {
			expense, ok := byID[target]
			if ok && expense.IsExpense() && !expense.Archived {
				amount := t.Amount
				if convert != nil {
					amount, _ = convert(amount, cards.CurrencyOf(t), cards.CurrencyOf(expense))
				}
				display[expense.ID] = displayOrBase(display, expense) + amount
				continue
			}
			// Dangling refund tag: keep the row as-is.
		}

		display[t.ID] = displayOrBase(display, t)
	}

	return display
}

// displayOrBase returns the running display amount for a transaction,
// seeding it from the raw amount on first touch. Refunds may be processed
// before or after their expense; both orders converge.
func displayOrBase(display map[string]float64, t *domain.Transaction) float64 {
	if v, ok := display[t.ID]; ok {
		return v
	}
	return t.Amount
}
