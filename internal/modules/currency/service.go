package currency

import (
	"context"
	"time"

	"github.com/HomeCherwe/wallet-engine/internal/domain"
	"github.com/HomeCherwe/wallet-engine/internal/events"
	"github.com/rs/zerolog"
)

// TableFetcher fetches a fresh rate table from the outside world.
// Satisfied by ratesource.Client.
type TableFetcher interface {
	FetchTable(ctx context.Context) domain.RateTable
}

// Service owns the rate sync cycle: fetch, swap, announce.
type Service struct {
	provider *RateProvider
	fetcher  TableFetcher
	eventMgr *events.Manager
	log      zerolog.Logger
}

// NewService creates a new currency service.
func NewService(provider *RateProvider, fetcher TableFetcher, eventMgr *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		provider: provider,
		fetcher:  fetcher,
		eventMgr: eventMgr,
		log:      log.With().Str("service", "currency").Logger(),
	}
}

// SyncRates fetches the latest rate table and installs it. A degraded fetch
// yields an empty table, which is still installed so staleness is visible
// via UpdatedAt.
func (s *Service) SyncRates(ctx context.Context) {
	table := s.fetcher.FetchTable(ctx)
	s.provider.Replace(table)

	s.log.Info().Int("pairs", len(table)).Msg("Rate table replaced")

	if s.eventMgr != nil {
		s.eventMgr.Emit(events.RatesUpdated, "currency", &events.RatesUpdatedData{
			Pairs:     len(table),
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
}
