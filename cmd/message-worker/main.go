// Package main is the entrypoint for the benefit claims message worker.
//
// Startup:
//  1. Load configuration (dotenv, SSM, environment).
//  2. Build the worker: database pool, repositories, providers, handlers,
//     dispatcher and per-type scheduler.
//  3. Run the scheduler and the ops HTTP server side by side until SIGINT or
//     SIGTERM, then drain in-flight ticks and shut the server down.
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

	"golang.org/x/sync/errgroup"

	"benefitclaims/internal/app"
	"benefitclaims/internal/config"
	"benefitclaims/internal/core"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := app.NewLogger(cfg.LogLevel).With("service", cfg.Service)
	slog.SetDefault(logger)
	logger.Info("message worker starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer worker.Close()

	srv, err := core.NewServer(cfg.Server, core.Deps{
		Processor: worker.Scheduler,
		Queue:     worker.Queue,
		Messages:  worker.Messages,
		Failures:  worker.Failures,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating ops server: %w", err)
	}
	srv.Version = cfg.Build.Version
	srv.HealthProbes = []core.HealthProbe{
		core.ProbeFunc{ProbeName: "database", Fn: worker.Ping},
	}
	srv.MountRoutes()

	return serve(ctx, cfg.Server, worker, srv.HTTPServer(), logger)
}

// serve runs the scheduler and the HTTP server until ctx is cancelled or
// either of them fails.
func serve(ctx context.Context, cfg config.ServerConfig, worker *app.App, httpServer *http.Server, logger *slog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("message scheduler started", "worker_id", worker.WorkerID)
		return worker.Scheduler.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("ops server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("ops server shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("message worker stopped cleanly")
	return nil
}
