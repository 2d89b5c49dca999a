package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
)

// startHTTPServer serves router until ctx is cancelled, a shutdown signal
// arrives or the listener fails. Shutdown stops accepting requests first and
// then stops the task engine, both within server.shutdown_timeout.
func (app *application) startHTTPServer(ctx context.Context, router http.Handler) error {
	server := &http.Server{
		Addr:    net.JoinHostPort("", strconv.Itoa(app.config.Server.Port)),
		Handler: router,
	}

	serverCtx, cancelServer := context.WithCancel(ctx)
	defer cancelServer()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdownCh)

	serveErr := make(chan error, 1)
	go func() {
		app.logger.Info("Starting server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error("Server failed", "error", err)
			serveErr <- err
			cancelServer()
		}
	}()

	select {
	case sig := <-shutdownCh:
		app.logger.Info("Shutting down server...", "signal", sig.String())
	case <-serverCtx.Done():
		app.logger.Info("Server context canceled, shutting down...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
	defer shutdownCancel()

	var errs []error
	select {
	case err := <-serveErr:
		errs = append(errs, err)
	default:
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("Server shutdown failed", "error", err)
		errs = append(errs, fmt.Errorf("server shutdown failed: %w", err))
	}

	if err := app.stopEngine(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("task engine shutdown failed: %w", err))
	}

	app.cleanup()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	app.logger.Info("Server shutdown completed")
	return nil
}
