package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/prerender/api"
	"github.com/use-agent/prerender/api/handler"
	"github.com/use-agent/prerender/config"
	"github.com/use-agent/prerender/engine"
	"github.com/use-agent/prerender/prerender"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the HTTP API over a serial render queue.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(config.Load())
	},
}

func serve(cfg *config.Config) error {
	slog.Info("prerender starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"driver", cfg.Browser.Driver,
		"outputRoot", cfg.Output.Root,
	)

	// ── 1. Browser driver ───────────────────────────────────────────
	launcher, err := engine.NewLauncher(cfg.Browser)
	if err != nil {
		return err
	}

	// ── 2. Render queue (single worker) ─────────────────────────────
	q := handler.NewQueue(prerender.NewRenderer(launcher), cfg.Queue)
	workerCtx, stopWorker := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		q.Run(workerCtx)
	}()

	// ── 3. Router and HTTP server ───────────────────────────────────
	router := api.NewRouter(q, cfg, time.Now())
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// ── 4. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		slog.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		stopWorker()
		<-workerDone
		return fmt.Errorf("HTTP server error: %w", err)
	}

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// Cancelling the worker aborts the running job; its browser is closed
	// before Run returns.
	stopWorker()
	<-workerDone

	slog.Info("prerender stopped")
	return nil
}
