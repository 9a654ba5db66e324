// Package currency implements multi-currency conversion through the UAH
// pivot, plus the rate table lifecycle (async sync, atomic swap).
package currency

import (
	"sync"
	"time"

	"github.com/HomeCherwe/wallet-engine/internal/domain"
)

// RateProvider holds the current rate table. Rates arrive asynchronously:
// the table starts empty and is swapped wholesale by the sync job, so
// readers may observe a partial or empty table during warm-up and must
// tolerate degraded conversions.
type RateProvider struct {
	mu        sync.RWMutex
	table     domain.RateTable
	updatedAt time.Time
}

// NewRateProvider creates a provider with an empty table.
func NewRateProvider() *RateProvider {
	return &RateProvider{table: domain.RateTable{}}
}

// Table returns the current rate table.
func (p *RateProvider) Table() domain.RateTable {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.table
}

// UpdatedAt returns when the table was last replaced; zero if never.
func (p *RateProvider) UpdatedAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.updatedAt
}

// Replace swaps in a new table atomically.
func (p *RateProvider) Replace(table domain.RateTable) {
	if table == nil {
		table = domain.RateTable{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.table = table
	p.updatedAt = time.Now()
}
