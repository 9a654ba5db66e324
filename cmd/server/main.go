// Package main is the entry point for the wallet engine: the local-first
// state layer behind a personal finance tracker. It keeps user settings in
// a durable local snapshot with debounced remote sync, caches card and
// balance state, converts currencies through the UAH pivot, classifies
// transactions for income/expense aggregates and propagates balance deltas
// over an in-process event bus.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/HomeCherwe/wallet-engine/internal/clientdata"
	"github.com/HomeCherwe/wallet-engine/internal/clients/ratesource"
	"github.com/HomeCherwe/wallet-engine/internal/clients/trackerapi"
	"github.com/HomeCherwe/wallet-engine/internal/config"
	"github.com/HomeCherwe/wallet-engine/internal/database"
	"github.com/HomeCherwe/wallet-engine/internal/events"
	"github.com/HomeCherwe/wallet-engine/internal/modules/balances"
	balanceshandlers "github.com/HomeCherwe/wallet-engine/internal/modules/balances/handlers"
	"github.com/HomeCherwe/wallet-engine/internal/modules/charts"
	chartshandlers "github.com/HomeCherwe/wallet-engine/internal/modules/charts/handlers"
	"github.com/HomeCherwe/wallet-engine/internal/modules/classify"
	"github.com/HomeCherwe/wallet-engine/internal/modules/currency"
	currencyhandlers "github.com/HomeCherwe/wallet-engine/internal/modules/currency/handlers"
	"github.com/HomeCherwe/wallet-engine/internal/modules/settings"
	settingshandlers "github.com/HomeCherwe/wallet-engine/internal/modules/settings/handlers"
	"github.com/HomeCherwe/wallet-engine/internal/scheduler"
	"github.com/HomeCherwe/wallet-engine/internal/server"
	"github.com/HomeCherwe/wallet-engine/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting wallet engine")

	// Databases: settings (durable local-first state) and cache (ephemeral
	// client data, speed over durability).
	settingsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "settings.db"),
		Profile: database.ProfileStandard,
		Name:    "settings",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open settings database")
	}
	defer settingsDB.Close()
	if err := settingsDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate settings database")
	}

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()
	if err := cacheDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate cache database")
	}

	// Event bus: synchronous fan-out of balance deltas, settings changes
	// and rate updates.
	bus := events.NewBus(log)
	defer bus.Close()
	eventMgr := events.NewManager(bus, log)

	// External clients.
	clientDataRepo := clientdata.NewRepository(cacheDB.Conn())
	tracker := trackerapi.NewClient(cfg.TrackerAPIBaseURL, cfg.TrackerAPIToken, log)
	rateClient := ratesource.NewClient(cfg.RateSourceURL, clientDataRepo, log)

	// Currency conversion.
	rateProvider := currency.NewRateProvider()
	converter := currency.NewConverter(rateProvider)
	currencyService := currency.NewService(rateProvider, rateClient, eventMgr, log)

	// Classification and aggregation.
	classifier := classify.NewClassifier(log)
	chartsService := charts.NewService(classifier, converter, log)

	// Cached balance state, kept current by bus deltas.
	balanceService := balances.NewService(tracker, chartsService, eventMgr, cfg.CardsTTL, cfg.SumsTTL, log)
	defer balanceService.Close()

	// Settings: local snapshot is authoritative; remote sync is debounced.
	settingsRepo := settings.NewRepository(settingsDB.Conn())
	settingsStore := settings.NewStore(settingsRepo, tracker, eventMgr,
		cfg.SettingsDebounce, cfg.SettingsInitTimeout, log)

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := settingsStore.Initialize(initCtx); err != nil {
		initCancel()
		log.Fatal().Err(err).Msg("Failed to initialize settings")
	}
	initCancel()
	defer settingsStore.Close()

	// Warm up the rate table; degraded fetches fall back to the persistent
	// cache inside the client.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		currencyService.SyncRates(ctx)
	}()

	// Background jobs.
	sched := scheduler.New(eventMgr, log)
	if err := sched.AddJob("@hourly", scheduler.NewRateSyncJob(currencyService)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register rate sync job")
	}
	reconcileSchedule := "@every " + cfg.ReconcileInterval.String()
	if err := sched.AddJob(reconcileSchedule, scheduler.NewReconcileJob(balanceService)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register reconcile job")
	}
	if err := sched.AddJob("@daily", clientdata.NewCleanupJob(clientDataRepo, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cleanup job")
	}
	sched.Start()

	// HTTP server.
	srv := server.New(server.Config{
		Log:      log,
		Cfg:      cfg,
		EventBus: bus,
		CurrencyHandler: currencyhandlers.NewHandler(
			currencyService, rateProvider, converter, log),
		SettingsHandler: settingshandlers.NewHandler(settingsStore, log),
		ChartsHandler:   chartshandlers.NewHandler(chartsService, balanceService, log),
		BalancesHandler: balanceshandlers.NewHandler(eventMgr, log),
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
