// Package server provides the HTTP server and routing for the wallet engine.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/HomeCherwe/wallet-engine/internal/config"
	"github.com/HomeCherwe/wallet-engine/internal/events"
	balanceshandlers "github.com/HomeCherwe/wallet-engine/internal/modules/balances/handlers"
	chartshandlers "github.com/HomeCherwe/wallet-engine/internal/modules/charts/handlers"
	currencyhandlers "github.com/HomeCherwe/wallet-engine/internal/modules/currency/handlers"
	settingshandlers "github.com/HomeCherwe/wallet-engine/internal/modules/settings/handlers"
)

// Config holds server configuration
type Config struct {
	Log      zerolog.Logger
	Cfg      *config.Config
	EventBus *events.Bus

	CurrencyHandler *currencyhandlers.Handler
	SettingsHandler *settingshandlers.Handler
	ChartsHandler   *chartshandlers.Handler
	BalancesHandler *balanceshandlers.Handler
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    *config.Config

	currencyHandler *currencyhandlers.Handler
	settingsHandler *settingshandlers.Handler
	chartsHandler   *chartshandlers.Handler
	balancesHandler *balanceshandlers.Handler
	systemHandlers  *SystemHandlers
	eventsStream    *EventsStreamHandler
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:          chi.NewRouter(),
		log:             cfg.Log.With().Str("component", "server").Logger(),
		cfg:             cfg.Cfg,
		currencyHandler: cfg.CurrencyHandler,
		settingsHandler: cfg.SettingsHandler,
		chartsHandler:   cfg.ChartsHandler,
		balancesHandler: cfg.BalancesHandler,
		systemHandlers:  NewSystemHandlers(cfg.Log),
		eventsStream:    NewEventsStreamHandler(cfg.EventBus, cfg.Log),
	}

	s.setupMiddleware(cfg.Cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Cfg.Port),
		Handler: s.router,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/system/status", s.systemHandlers.HandleSystemStatus)

		// SSE stream carries no timeout; everything else times out at 60s.
		r.Get("/events/stream", s.eventsStream.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			s.currencyHandler.RegisterRoutes(r)
			s.settingsHandler.RegisterRoutes(r)
			s.chartsHandler.RegisterRoutes(r)
			s.balancesHandler.RegisterRoutes(r)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
