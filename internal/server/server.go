package server

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dukerupert/shoplist/internal/backup"
	"github.com/dukerupert/shoplist/internal/handler"
	"github.com/dukerupert/shoplist/internal/metrics"
	"github.com/dukerupert/shoplist/internal/middleware"
	"github.com/dukerupert/shoplist/internal/repository"
	"github.com/dukerupert/shoplist/internal/state"
	"github.com/dukerupert/shoplist/internal/store"
	ws "github.com/dukerupert/shoplist/internal/websocket"
)

// Options carries the settings the HTTP layer needs.
type Options struct {
	// RateLimit is intents per minute per client IP; 0 disables limiting.
	RateLimit int
}

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	shared      *state.Controller
	factory     *state.Factory
	listH       *handler.ListHandler
	settingsH   *handler.SettingsHandler
	backupH     *handler.BackupHandler
	rateLimiter *middleware.RateLimiter
	registry    *prometheus.Registry
	logger      *slog.Logger
}

// New wires stores, the repository and the shared controller. backups may
// be nil. Call Close to release the controller and websocket sessions.
func New(db *sql.DB, opts Options, backups *backup.Manager, logger *slog.Logger) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.NewCollector(registry)

	repo := repository.New(store.NewItemStore(db), rec, logger.With("component", "repository"))
	factory := state.NewFactory(repo, rec, logger.With("component", "state"))
	shared := factory.New(state.KindShopping)

	hub := ws.NewHub(rec, logger.With("component", "websocket"))

	var bh handler.Backups
	if backups != nil {
		bh = backups
	}

	return &Server{
		db:          db,
		hub:         hub,
		shared:      shared,
		factory:     factory,
		listH:       handler.NewListHandler(shared, logger),
		settingsH:   handler.NewSettingsHandler(store.NewSettingsStore(db), hub, logger),
		backupH:     handler.NewBackupHandler(bh, logger),
		rateLimiter: middleware.NewRateLimiter(opts.RateLimit),
		registry:    registry,
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// Close drops every websocket session and stops the shared controller.
func (s *Server) Close() {
	s.hub.CloseAll()
	s.shared.Close()
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(s.logger.With("component", "http")))
	r.Use(chimw.Recoverer)

	r.Get("/health", handler.Health(s.db, store.NewItemStore(s.db)))
	r.Method(http.MethodGet, "/metrics", metrics.Handler(s.registry))

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.listH.State)
		r.With(middleware.RateLimit(s.rateLimiter, middleware.RealIP)).Post("/intents", s.listH.PostIntent)
		r.Get("/categories/suggest", s.listH.SuggestCategory)

		r.Get("/settings/theme", s.settingsH.GetTheme)
		r.Put("/settings/theme", s.settingsH.UpdateTheme)

		r.Get("/backups", s.backupH.List)
		r.Post("/backups", s.backupH.Run)
	})

	r.Get("/ws", ws.HandleWebSocket(s.hub, s.factory, s.logger))

	return r
}
