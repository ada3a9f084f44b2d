package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/icco/specimens/handlers"
	"github.com/icco/specimens/lib/config"
	"github.com/icco/specimens/lib/db"
	"github.com/icco/specimens/lib/health"
	"github.com/icco/specimens/lib/history"
	"github.com/icco/specimens/lib/metrics"
	"github.com/icco/specimens/lib/render"
	"github.com/icco/specimens/lib/report"
	"github.com/icco/specimens/lib/source"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// App wires the data sources, the report pipeline and the run history.
type App struct {
	logger    *slog.Logger
	cfg       *config.Config
	env       config.Env
	db        *gorm.DB
	conn      *source.Connection
	renderer  *render.Renderer
	assembler *report.Assembler
	pipeline  *report.Pipeline
	recorder  *history.Recorder
	router    *chi.Mux
}

// NewApp opens the run database and every configured source.
func NewApp(ctx context.Context, cfg *config.Config, env config.Env, logger *slog.Logger) (*App, error) {
	gormDB, err := db.Open(ctx, env.DBPath, logger)
	if err != nil {
		return nil, err
	}

	conn, err := source.Connect(cfg, logger)
	if err != nil {
		closeDB(gormDB, logger)
		return nil, err
	}

	renderer, err := render.New(render.Options{Logger: logger})
	if err != nil {
		_ = conn.Close()
		closeDB(gormDB, logger)
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	assembler := report.NewAssembler(renderer, logger, len(report.Charts))
	app := &App{
		logger:    logger,
		cfg:       cfg,
		env:       env,
		db:        gormDB,
		conn:      conn,
		renderer:  renderer,
		assembler: assembler,
		pipeline:  report.NewPipeline(conn, assembler, logger),
		recorder:  history.NewRecorder(gormDB, clockwork.NewRealClock(), logger),
		router:    chi.NewRouter(),
	}

	app.setupRoutes()
	return app, nil
}

func (a *App) setupRoutes() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.RealIP)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(metrics.Middleware)

	a.router.Get("/", handlers.HandleReport(a.pipeline, a.recorder, a.cfg.Names()))
	a.router.Get("/charts/{id}.png", handlers.HandleChartImage(a.pipeline))
	a.router.Get("/history", handlers.HandleHistory(a.recorder))
	a.router.Get("/health", health.Check(a.db, a.conn))
	a.router.Handle("/metrics", promhttp.Handler())

	origins := a.env.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	a.router.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
		r.Get("/report", handlers.HandleReportJSON(a.pipeline, a.recorder))
		r.Post("/sources/{name}/reload", handlers.HandleReloadSource(a.conn))
	})
}

// ServeHTTP makes App an http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// Run builds and records one report.
func (a *App) Run(ctx context.Context, req report.Request) (*report.Report, error) {
	return a.recorder.Track(ctx, func() (*report.Report, error) {
		return a.pipeline.Run(ctx, req)
	})
}

// Close stops the render pool and releases every connection.
func (a *App) Close() {
	a.assembler.Stop()
	a.renderer.Close()
	if err := a.conn.Close(); err != nil {
		a.logger.Warn("Failed to close data sources", slog.Any("error", err))
	}
	closeDB(a.db, a.logger)
}

func closeDB(gormDB *gorm.DB, logger *slog.Logger) {
	sqlDB, err := gormDB.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Warn("Failed to close database", slog.Any("error", err))
	}
}
