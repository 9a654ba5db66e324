// Package balances holds the cached card and sum state behind balance
// displays. Mutations reach it as bus events carrying signed deltas, which
// it applies to the cached sums instead of refetching; periodic
// reconciliation refetches from source to bound drift from missed or
// duplicated events.
package balances

import (
	"context"
	"sync"
	"time"

	"github.com/HomeCherwe/wallet-engine/internal/cache"
	"github.com/HomeCherwe/wallet-engine/internal/clients/trackerapi"
	"github.com/HomeCherwe/wallet-engine/internal/domain"
	"github.com/HomeCherwe/wallet-engine/internal/events"
	"github.com/HomeCherwe/wallet-engine/internal/modules/charts"
	"github.com/rs/zerolog"
)

// DataAPI is the slice of the tracker API the service reads from.
type DataAPI interface {
	ListCards(ctx context.Context) ([]domain.Card, error)
	SumsByCard(ctx context.Context) (map[string]float64, error)
	ListTransactions(ctx context.Context, q trackerapi.TransactionQuery) ([]domain.Transaction, error)
}

// Aggregator computes bucket totals from cards and per-card sums.
// Satisfied by charts.Service.
type Aggregator interface {
	BucketTotals(cards []domain.Card, sums map[string]float64) charts.BucketReport
}

// Service caches cards and per-card transaction sums and keeps them
// consistent with mutations flowing over the event bus.
type Service struct {
	api        DataAPI
	aggregator Aggregator
	eventMgr   *events.Manager
	log        zerolog.Logger

	cards *cache.Resource[[]domain.Card]
	sums  *cache.Resource[map[string]float64]

	// refreshMu guards refreshCancel: a newer full refresh cancels the
	// in-flight one so only the newest result lands.
	refreshMu     sync.Mutex
	refreshCancel context.CancelFunc

	unsubscribe events.Unsubscribe
}

// NewService creates the balance service, subscribes it to balance delta
// events and announces its cache invalidations on the bus.
func NewService(
	api DataAPI,
	aggregator Aggregator,
	eventMgr *events.Manager,
	cardsTTL, sumsTTL time.Duration,
	log zerolog.Logger,
) *Service {
	s := &Service{
		api:        api,
		aggregator: aggregator,
		eventMgr:   eventMgr,
		log:        log.With().Str("service", "balances").Logger(),
		cards:      cache.New[[]domain.Card]("cards", cardsTTL, log),
		sums:       cache.New[map[string]float64]("card_sums", sumsTTL, log),
	}
	if eventMgr != nil {
		s.unsubscribe = eventMgr.Bus().Subscribe(events.BalanceDelta, s.onBalanceDelta)
		s.cards.OnInvalidate(s.emitCacheInvalidated)
		s.sums.OnInvalidate(s.emitCacheInvalidated)
	}
	return s
}

// emitCacheInvalidated announces a dropped resource cache so stream
// consumers know their displayed state may be about to change.
func (s *Service) emitCacheInvalidated(name string) {
	s.eventMgr.Emit(events.CacheInvalidated, "balances", &events.CacheInvalidatedData{
		Resource: name,
	})
}

// Cards returns the card list, cached.
func (s *Service) Cards(ctx context.Context) ([]domain.Card, error) {
	return s.cards.Get(ctx, s.api.ListCards)
}

// Sums returns per-card signed transaction sums, cached. The empty key
// holds the cash sum.
func (s *Service) Sums(ctx context.Context) (map[string]float64, error) {
	return s.sums.Get(ctx, s.api.SumsByCard)
}

// Transactions fetches transactions in [from, to] from the data API.
// Transaction lists are not cached; date-ranged queries rarely repeat.
func (s *Service) Transactions(ctx context.Context, from, to time.Time) ([]domain.Transaction, error) {
	return s.api.ListTransactions(ctx, trackerapi.TransactionQuery{
		StartDate: &from,
		EndDate:   &to,
	})
}

// Totals computes the bucket balance report from cached state.
func (s *Service) Totals(ctx context.Context) (charts.BucketReport, error) {
	cards, err := s.Cards(ctx)
	if err != nil {
		return charts.BucketReport{}, err
	}
	sums, err := s.Sums(ctx)
	if err != nil {
		return charts.BucketReport{}, err
	}
	return s.aggregator.BucketTotals(cards, sums), nil
}

// onBalanceDelta keeps cached sums in step with a mutation. Updates and
// deletes carry enough information to adjust the affected card's sum in
// place; inserts may change derived state the delta cannot describe, so
// they also trigger a full refresh.
func (s *Service) onBalanceDelta(event *events.Event) {
	data, ok := event.Data.(*events.BalanceDeltaData)
	if !ok {
		s.log.Warn().Str("type", string(event.Type)).Msg("Unexpected balance delta payload")
		return
	}

	key := ""
	if data.CardID != nil {
		key = *data.CardID
	}

	applied := s.sums.Mutate(func(sums map[string]float64) map[string]float64 {
		next := make(map[string]float64, len(sums)+1)
		for k, v := range sums {
			next[k] = v
		}
		next[key] += data.Delta
		return next
	})

	s.log.Debug().
		Str("card_id", key).
		Float64("delta", data.Delta).
		Bool("applied", applied).
		Msg("Balance delta received")

	if data.Kind == events.MutationInsert {
		go s.refresh()
	}
}

// refresh refetches sums from source, newest-wins: starting a refresh
// cancels any in-flight one, and a cancelled fetch never updates state.
func (s *Service) refresh() {
	s.refreshMu.Lock()
	if s.refreshCancel != nil {
		s.refreshCancel()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	s.refreshCancel = cancel
	s.refreshMu.Unlock()
	defer cancel()

	s.sums.Invalidate()
	if _, err := s.sums.Get(ctx, s.api.SumsByCard); err != nil {
		if ctx.Err() != nil {
			// Superseded by a newer refresh; not a failure.
			return
		}
		s.log.Warn().Err(err).Msg("Balance refresh failed, cache stays stale")
	}
}

// Reconcile drops all cached state and refetches from source. Runs on a
// schedule to bound drift accumulated from optimistic deltas.
func (s *Service) Reconcile(ctx context.Context) {
	s.cards.Invalidate()
	s.sums.Invalidate()

	if _, err := s.Cards(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Card reconcile failed")
	}
	if _, err := s.Sums(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Sum reconcile failed")
	}
	s.log.Debug().Msg("Balance reconcile completed")
}

// Close detaches the service from the event bus.
func (s *Service) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}
