// cmd/service/serve.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github-activity-tracker/internal/api"
	"github-activity-tracker/internal/model"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Poll GitHub on an interval and serve the activity over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	scheduler := a.newScheduler()
	updates, unsubscribe := scheduler.Subscribe()
	defer unsubscribe()
	go a.logSnapshots(updates)

	scheduler.Start(ctx)
	defer scheduler.Stop()

	server := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           api.NewRouter(scheduler, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server listening", "addr", a.cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	a.logger.Info("Application started. Waiting for shutdown signal...")
	select {
	case <-ctx.Done():
		a.logger.Info("Shutdown signal received. Exiting.")
	case err := <-serveErr:
		return fmt.Errorf("http server failed: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

// logSnapshots reports every published snapshot until the channel closes.
func (a *app) logSnapshots(updates <-chan model.Snapshot) {
	for snap := range updates {
		if snap.GlobalError != "" {
			a.logger.Warn("Cycle failed", "error", snap.GlobalError)
			continue
		}
		a.logger.Info("Activity updated",
			"activities", len(snap.Result.Activities),
			"account_errors", len(snap.Result.Errors),
			"completed_at", snap.CompletedAt)
	}
}
