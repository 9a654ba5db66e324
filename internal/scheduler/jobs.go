package scheduler

import (
	"context"
	"time"

	"github.com/HomeCherwe/wallet-engine/internal/modules/balances"
	"github.com/HomeCherwe/wallet-engine/internal/modules/currency"
)

const jobTimeout = 30 * time.Second

// RateSyncJob refreshes the exchange rate table. Fetch failures degrade
// inside the currency service, so the job itself never fails.
type RateSyncJob struct {
	service *currency.Service
}

// NewRateSyncJob creates a new rate sync job.
func NewRateSyncJob(service *currency.Service) *RateSyncJob {
	return &RateSyncJob{service: service}
}

// Run executes one rate sync.
func (j *RateSyncJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	j.service.SyncRates(ctx)
	return nil
}

// Name returns the job name for scheduling and logging.
func (j *RateSyncJob) Name() string {
	return "rate_sync"
}

// ReconcileJob periodically refetches balances from source. Optimistic
// deltas keep displayed totals current between runs; this bounds the drift
// they can accumulate from missed or duplicated events.
type ReconcileJob struct {
	balances *balances.Service
}

// NewReconcileJob creates a new balance reconcile job.
func NewReconcileJob(balances *balances.Service) *ReconcileJob {
	return &ReconcileJob{balances: balances}
}

// Run executes one reconcile pass.
func (j *ReconcileJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	j.balances.Reconcile(ctx)
	return nil
}

// Name returns the job name for scheduling and logging.
func (j *ReconcileJob) Name() string {
	return "balance_reconcile"
}
