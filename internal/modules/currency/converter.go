package currency

import (
	"github.com/HomeCherwe/wallet-engine/internal/domain"
)

// Converter converts amounts between currencies through the UAH pivot.
// It never errors: missing rates degrade to the best computable value
// during rate warm-up, and ConvertExact lets callers distinguish degraded
// results from exact ones.
type Converter struct {
	provider *RateProvider
}

// NewConverter creates a converter reading rates from the provider.
func NewConverter(provider *RateProvider) *Converter {
	return &Converter{provider: provider}
}

// Convert converts amount from one currency to another.
//
// Fallback policy on a missing rate: if the from->UAH leg is missing the
// pre-conversion amount is returned; if the UAH->to leg is missing the UAH
// intermediate is returned. Callers must treat converted totals as
// approximate during rate warm-up.
func (c *Converter) Convert(amount float64, from, to domain.CurrencyCode) float64 {
	v, _ := c.ConvertExact(amount, from, to)
	return v
}

// ConvertExact converts amount and reports whether the result is exact
// (false when a missing rate forced a fallback).
func (c *Converter) ConvertExact(amount float64, from, to domain.CurrencyCode) (float64, bool) {
	if from == to {
		return amount, true
	}

	table := c.provider.Table()

	// Leg 1: from -> UAH.
	intermediate := amount
	if from != domain.UAH {
		rate, ok := table.Rate(from)
		if !ok {
			return amount, false
		}
		intermediate = amount * rate
	}

	// Leg 2: UAH -> to.
	if to == domain.UAH {
		return intermediate, true
	}
	rate, ok := table.Rate(to)
	if !ok {
		return intermediate, false
	}
	return intermediate / rate, true
}
