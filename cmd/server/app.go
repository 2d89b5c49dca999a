package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/tasktrack/internal/config"
	"github.com/phrazzld/tasktrack/internal/events"
	"github.com/phrazzld/tasktrack/internal/lifecycle"
	"github.com/phrazzld/tasktrack/internal/platform/migrate"
	"github.com/phrazzld/tasktrack/internal/service"
	"github.com/phrazzld/tasktrack/internal/store"
	"github.com/phrazzld/tasktrack/internal/task"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	handles store.HandleFactory

	// Event system
	eventEmitter *events.InMemoryEventEmitter
	lifecycle    *lifecycle.Manager

	// Background processing
	engine *task.Engine

	taskService service.TaskService
}

// newApplication creates a new application instance with all dependencies initialized.
// The database connection must already be open and migrated.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.handles, err = newHandleFactory(cfg.Database.Driver, db, logger)
	if err != nil {
		return nil, err
	}

	app.eventEmitter = events.NewInMemoryEventEmitter(logger)
	app.eventEmitter.RegisterHandler(events.NewLogHandler(logger))

	app.lifecycle = lifecycle.NewManager(app.eventEmitter, logger)

	app.engine = task.NewEngine(
		app.handles,
		app.lifecycle,
		task.SimulatedWorkload{Duration: cfg.Processing.WorkloadDuration},
		engineConfig(cfg.Processing),
		logger,
	)

	app.taskService, err = service.NewTaskService(app.handles, app.lifecycle, app.engine, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

func engineConfig(cfg config.ProcessingConfig) task.Config {
	engineCfg := task.DefaultConfig()
	engineCfg.WorkerCount = cfg.WorkerCount
	engineCfg.QueueSize = cfg.QueueSize
	engineCfg.JobTimeout = cfg.JobTimeout
	engineCfg.StuckTaskAge = cfg.StuckTaskAge
	engineCfg.StuckTaskCheckInterval = cfg.StuckTaskCheckInterval
	return engineCfg
}

// serve opens and migrates the database, then runs the application until
// ctx is cancelled or the process receives SIGINT/SIGTERM.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := openDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}

	if err := migrate.Up(ctx, db, cfg.Database.Driver, logger); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	app, err := newApplication(cfg, logger, db)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}

// Run starts the engine and the HTTP server, and blocks until shutdown.
func (app *application) Run(ctx context.Context) error {
	if err := app.engine.Start(ctx); err != nil {
		app.cleanup()
		return fmt.Errorf("failed to start task engine: %w", err)
	}

	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// stopEngine waits for running jobs within ctx's deadline.
func (app *application) stopEngine(ctx context.Context) error {
	if err := app.engine.Stop(ctx); err != nil {
		app.logger.Error("Task engine did not stop cleanly", "error", err)
		return err
	}
	app.logger.Info("Task engine stopped")
	return nil
}

// cleanup releases the database connection.
func (app *application) cleanup() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
