package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/strefethen/sonos-display-go/internal/api"
	"github.com/strefethen/sonos-display-go/internal/auth"
	"github.com/strefethen/sonos-display-go/internal/config"
	"github.com/strefethen/sonos-display-go/internal/db"
	"github.com/strefethen/sonos-display-go/internal/demaster"
	"github.com/strefethen/sonos-display-go/internal/display"
	"github.com/strefethen/sonos-display-go/internal/history"
	"github.com/strefethen/sonos-display-go/internal/nowplaying"
	"github.com/strefethen/sonos-display-go/internal/poller"
	"github.com/strefethen/sonos-display-go/internal/sonosapi"
	"github.com/strefethen/sonos-display-go/internal/stream"
)

// Options controls server wiring.
type Options struct {
	Logger *log.Logger
	// Fetcher replaces the control API client. Used by tests.
	Fetcher poller.StateFetcher
}

// App owns every long-running component of the daemon.
type App struct {
	Handler http.Handler

	logger   *log.Logger
	engine   *nowplaying.Engine
	poller   *poller.Poller
	detail   *display.DetailControls
	renderer *display.LogRenderer
	hub      *stream.Hub
	history  *history.Service
	dbPair   *db.DBPair
}

// New builds the engine, its producers and consumers, and the HTTP handler.
func New(cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	engine := nowplaying.New(nowplaying.Options{
		Room:        cfg.SonosRoom,
		PushTimeout: cfg.PushTimeout(),
		Stations:    nowplaying.DefaultStations().Merge(cfg.Stations),
		Cleaner:     newCleaner(cfg, logger),
		Logger:      logger,
	})

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = sonosapi.NewClient(cfg.SonosAPIHost, cfg.SonosAPIPort, cfg.SonosTimeout())
	}
	statePoller := poller.New(fetcher, engine, poller.Options{
		Interval:     cfg.PollInterval(),
		PushInterval: cfg.PushPollInterval(),
		MaxBackoff:   cfg.PollMaxBackoff(),
		Logger:       logger,
	})

	detail := display.NewDetailControls(cfg.ShowDetails, cfg.ShowDetailsTimeout())

	app := &App{
		logger:   logger,
		engine:   engine,
		poller:   statePoller,
		detail:   detail,
		renderer: display.NewLogRenderer(engine, detail, logger),
		hub:      stream.NewHub(engine, detail, logger),
	}

	if cfg.HistoryEnabled {
		logger.Printf("Using database: %s", cfg.SQLiteDBPath)
		dbPair, err := db.Init(cfg.SQLiteDBPath)
		if err != nil {
			return nil, err
		}
		service, err := history.NewService(dbPair, engine, history.Options{
			RetentionDays: cfg.HistoryRetentionDays,
			PruneSchedule: cfg.HistoryPruneSchedule,
			Logger:        logger,
		})
		if err != nil {
			dbPair.Close()
			return nil, err
		}
		app.dbPair = dbPair
		app.history = service
	}

	protect := auth.RequireToken(cfg.AdminJWTSecret, logger)
	if cfg.AdminJWTSecret == "" {
		logger.Printf("AUTH: ADMIN_JWT_SECRET not set, operator routes are open")
	}

	router := chi.NewRouter()
	router.Use(middleware.StripSlashes)
	router.Use(api.RequestLogger(logger, "/"))
	router.Use(api.RequestIDMiddleware)
	router.Use(api.RecovererMiddleware)

	app.registerHealthRoutes(router)
	nowplaying.RegisterRoutes(router, engine, protect)
	display.RegisterRoutes(router, detail, protect)
	stream.RegisterRoutes(router, app.hub)
	if app.history != nil {
		history.RegisterRoutes(router, app.history)
	}
	app.Handler = router

	return app, nil
}

// newCleaner picks the track name cleanup used before fingerprinting.
func newCleaner(cfg config.Config, logger *log.Logger) nowplaying.Cleaner {
	switch {
	case !cfg.DemasterEnabled:
		return nil
	case cfg.DemasterOffline:
		return demaster.Offline{}
	default:
		return demaster.NewClient(demaster.Config{
			APIURL:     cfg.DemasterAPIURL,
			RatePerSec: cfg.DemasterRatePerSec,
			Logger:     logger,
		})
	}
}

// Engine exposes the reconciliation engine.
func (a *App) Engine() *nowplaying.Engine { return a.engine }

// Run starts the engine, poller and consumers and blocks until ctx is
// cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.engine.Run(ctx) })
	g.Go(func() error { return a.poller.Run(ctx) })
	g.Go(func() error { return a.renderer.Run(ctx) })
	g.Go(func() error { return a.hub.Run(ctx) })
	if a.history != nil {
		g.Go(func() error { return a.history.Run(ctx) })
	}
	return g.Wait()
}

// Close releases the detail timer and the database.
func (a *App) Close() error {
	a.detail.Stop()
	if a.dbPair != nil {
		return a.dbPair.Close()
	}
	return nil
}

func (a *App) registerHealthRoutes(router chi.Router) {
	router.Method(http.MethodGet, "/health", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		status := "healthy"
		historyStatus := "disabled"
		if a.history != nil {
			historyStatus = "healthy"
			if !a.history.IsHealthy() {
				historyStatus = "unhealthy"
				status = "degraded"
			}
		}
		response := map[string]any{
			"status":      status,
			"service":     "sonos-display",
			"room":        a.engine.Room(),
			"push_active": a.engine.IsPushActive(),
			"history":     historyStatus,
			"clients":     a.hub.ClientCount(),
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
		}
		return api.WriteJSON(w, http.StatusOK, response)
	}))
	router.Method(http.MethodGet, "/health/live", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		return api.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}))
}
