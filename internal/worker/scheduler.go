package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/Priya8975/leadsync/internal/domain"
	"github.com/Priya8975/leadsync/internal/engine"
)

// Runner executes one sync run.
type Runner interface {
	Run(ctx context.Context, opts engine.Options) (*domain.RunReport, error)
}

// FollowResult summarizes a chain of runs linked by resume tokens.
type FollowResult struct {
	Runs   int
	Synced int
	Last   *domain.RunReport
}

// Follow runs repeatedly, passing each run's resume token to the next, until
// a run completes, fails, or ctx is done. maxRuns <= 0 means no limit.
func Follow(ctx context.Context, runner Runner, opts engine.Options, maxRuns int) (FollowResult, error) {
	var res FollowResult
	for {
		report, err := runner.Run(ctx, opts)
		if report != nil {
			res.Runs++
			res.Synced += report.Synced
			res.Last = report
		}
		if err != nil {
			return res, err
		}
		if !report.HasMore || ctx.Err() != nil {
			return res, nil
		}
		if maxRuns > 0 && res.Runs >= maxRuns {
			return res, nil
		}

		opts.ResumeToken = report.ResumeToken
		opts.Since = nil
		opts.Reset = false
	}
}

// Scheduler triggers sync runs on a fixed interval and follows resume
// tokens until upstream is caught up.
type Scheduler struct {
	runner   Runner
	logger   *slog.Logger
	interval time.Duration
	opts     engine.Options
}

// NewScheduler creates a scheduler that runs every interval.
func NewScheduler(runner Runner, interval time.Duration, opts engine.Options, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		logger:   logger,
		interval: interval,
		opts:     opts,
	}
}

// Start runs once immediately, then on every tick, until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("scheduler started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	res, err := Follow(ctx, s.runner, s.opts, 0)
	if err != nil {
		s.logger.Error("scheduled sync failed", "error", err, "runs", res.Runs, "synced", res.Synced)
		return
	}
	if res.Last != nil {
		s.logger.Info("scheduled sync finished",
			"runs", res.Runs,
			"synced", res.Synced,
			"state", res.Last.State,
			"cursor", res.Last.Cursor.String(),
		)
	}
}
