// Package app wires configuration into the plan manager, the generation
// orchestrator and their storage.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"genline/internal/analyzer"
	"genline/internal/config"
	"genline/internal/db"
	"genline/internal/events"
	"genline/internal/generate"
	"genline/internal/migrate"
	"genline/internal/plan"
	"genline/internal/render"
	"genline/internal/store"
	"genline/internal/typemap"
)

// ErrNoEventLog is returned when the event log is read without the sqlite backend.
var ErrNoEventLog = errors.New("event log requires the sqlite store backend")

type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    store.Store
	Events   events.Recorder
	Plans    *plan.Manager
	Renderer *render.Templates
	Executor *generate.Orchestrator

	db       *sql.DB
	eventLog *events.Writer
}

// Build assembles an App from cfg. The caller must Close it.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	switch cfg.Store.Backend {
	case config.BackendSQLite:
		conn, err := db.Open(ctx, db.Config{Workspace: cfg.Store.Workspace})
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		if err := migrate.Migrate(ctx, conn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("migrate store: %w", err)
		}
		a.db = conn
		a.Store = store.SQLite{DB: conn, MaxPlans: cfg.Plans.MaxCached}
		a.eventLog = &events.Writer{DB: conn}
		a.Events = a.eventLog
	default:
		mem, err := store.NewMemory(cfg.Plans.MaxCached, logger)
		if err != nil {
			return nil, err
		}
		a.Store = mem
		a.Events = events.LogRecorder{Logger: logger}
	}

	renderer, err := render.New(logger, cfg.Generation.TemplateCache, cfg.Generation.TemplatesDir)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Renderer = renderer

	a.Plans = &plan.Manager{
		Store:    a.Store,
		Analyzer: analyzer.FS{Logger: logger},
		Events:   a.Events,
		Logger:   logger,
		Policy: plan.Policy{
			TTL:          cfg.Plans.TTL,
			IDStrategy:   plan.IDStrategy(cfg.Plans.IDStrategy),
			UpdatePolicy: plan.UpdatePolicy(cfg.Plans.UpdatePolicy),
		},
	}
	a.Executor = &generate.Orchestrator{
		Plans:            a.Plans,
		Renderer:         renderer,
		Types:            typemap.New(logger),
		Validator:        generate.NoopValidator{},
		Events:           a.Events,
		Logger:           logger,
		Parallelism:      cfg.Generation.Parallelism,
		GeneratorVersion: cfg.Generation.GeneratorVersion,
		StandardsVersion: cfg.Generation.StandardsVersion,
	}
	logger.Debug("app ready", "backend", cfg.Store.Backend, "id_strategy", cfg.Plans.IDStrategy, "update_policy", cfg.Plans.UpdatePolicy)
	return a, nil
}

// EventLog returns the persisted lifecycle log, or ErrNoEventLog.
func (a *App) EventLog() (*events.Writer, error) {
	if a.eventLog == nil {
		return nil, ErrNoEventLog
	}
	return a.eventLog, nil
}

func (a *App) Close() error {
	var errs []error
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
