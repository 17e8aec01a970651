package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Priya8975/leadsync/internal/config"
	"github.com/Priya8975/leadsync/internal/engine"
	"github.com/Priya8975/leadsync/internal/metrics"
	"github.com/Priya8975/leadsync/internal/notify"
	"github.com/Priya8975/leadsync/internal/store"
	"github.com/Priya8975/leadsync/internal/upstream"
)

// app holds the connected components shared by serve and run.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	pg      *store.PostgresStore
	cursors *store.CursorStore
	redis   *store.RedisStore
	breaker *engine.CircuitBreaker
	nats    *notify.Publisher
	syncer  *engine.Syncer
}

// openApp connects to Postgres, applies migrations and builds the syncer.
// Redis and NATS are wired only when configured; a connection failure there
// is logged and the component is left out.
func openApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	if err := cfg.Require(config.KeyDatabaseURL); err != nil {
		return nil, err
	}

	if err := store.Migrate(cfg.Database.URL); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("database migrations applied")

	pg, err := store.NewPostgres(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	pg.SetChunkSize(cfg.Sync.ChunkSize)
	logger.Info("connected to PostgreSQL")

	a := &app{
		cfg:     cfg,
		logger:  logger,
		pg:      pg,
		cursors: store.NewCursorStore(pg, cfg.Sync.CursorID),
	}

	client := upstream.NewClient(upstream.Config{
		BaseURL:          cfg.Upstream.URL,
		Token:            cfg.Upstream.Token,
		Collection:       cfg.Upstream.Collection,
		ExcludedCampaign: cfg.Sync.ExcludedCampaign,
		Timeout:          cfg.Upstream.Timeout,
	}, logger)

	a.syncer = engine.NewSyncer(client, a.cursors, pg, engine.Config{
		BatchSize:         cfg.Sync.BatchSize,
		MaxPages:          cfg.Sync.MaxPages,
		TimeBudget:        cfg.Sync.TimeBudget,
		BatchDelay:        cfg.Sync.BatchDelay,
		Location:          cfg.Location(),
		Upstream:          engine.DefaultUpstream,
		RequestsPerSecond: cfg.Sync.RequestsPerSecond,
		Views:             cfg.Sync.RefreshViews,
	}, logger).
		WithViews(pg).
		AddListener(metrics.Listener{})

	if cfg.Redis.URL != "" {
		rs, err := store.NewRedis(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Warn("redis unavailable, continuing without run reports and upstream guards", "error", err)
		} else {
			a.redis = rs
			a.breaker = engine.NewCircuitBreaker(rs.Client(), logger, cfg.Breaker.FailureThreshold, cfg.Breaker.Cooldown)
			a.syncer.WithReports(rs).WithBreaker(a.breaker)
			if cfg.Sync.RequestsPerSecond > 0 {
				a.syncer.WithLimiter(engine.NewRateLimiter(rs.Client(), logger))
			}
			logger.Info("connected to Redis")
		}
	}

	if cfg.NATS.URL != "" {
		pub, err := notify.Connect(cfg.NATS.URL, cfg.NATS.Subject, logger)
		if err != nil {
			logger.Warn("nats unavailable, run notifications disabled", "error", err)
		} else {
			a.nats = pub
			a.syncer.AddListener(pub)
			logger.Info("connected to NATS", "subject", cfg.NATS.Subject)
		}
	}

	return a, nil
}

func (a *app) Close() {
	if a.nats != nil {
		a.nats.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("error closing redis", "error", err)
		}
	}
	a.pg.Close()
}
