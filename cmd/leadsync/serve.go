package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Priya8975/leadsync/internal/api"
	"github.com/Priya8975/leadsync/internal/engine"
	ws "github.com/Priya8975/leadsync/internal/websocket"
	"github.com/Priya8975/leadsync/internal/worker"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the sync endpoint and run scheduled syncs",
		Long: `Start the HTTP server exposing /api/v1/sync, /api/v1/sync/status,
/api/v1/health, /metrics and the /ws live feed.

When sync.schedule_interval is set, a scheduler also runs syncs on that
interval and follows resume tokens until upstream is caught up.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rootOpts)
		},
	}
}

func runServe(rootOpts *RootOptions) error {
	cfg, logger, err := rootOpts.load(os.Stdout)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	// Upstream settings are checked per request so the service still answers
	// health and status while misconfigured.
	configErr := cfg.RequireSync()
	if configErr != nil {
		logger.Warn("sync disabled until configuration is complete", "error", configErr)
	}

	hub := ws.NewHub(logger)
	a.syncer.AddListener(hub)

	deps := api.Deps{
		Version:   version,
		Secret:    cfg.Server.Secret,
		Upstream:  engine.DefaultUpstream,
		Runner:    a.syncer,
		ConfigErr: configErr,
		Cursors:   a.cursors,
		Stats:     a.pg,
		DB:        a.pg,
		Hub:       hub,
		Logger:    logger,
	}
	if a.redis != nil {
		deps.Reports = a.redis
		deps.Breaker = a.breaker
	}

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if cfg.Sync.ScheduleInterval > 0 && configErr == nil {
		scheduler := worker.NewScheduler(a.syncer, cfg.Sync.ScheduleInterval, engine.Options{}, logger)
		g.Go(func() error {
			scheduler.Start(gctx)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		return err
	}
	logger.Info("server stopped")
	return nil
}
