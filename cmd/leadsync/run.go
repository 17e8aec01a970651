package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Priya8975/leadsync/internal/domain"
	"github.com/Priya8975/leadsync/internal/engine"
	"github.com/Priya8975/leadsync/internal/worker"
	"github.com/spf13/cobra"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Since   string
	Cursor  string
	Batch   int
	Pages   int
	Budget  time.Duration
	Reset   bool
	Follow  bool
	MaxRuns int
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one timeboxed sync",
		Long: `Run one sync from the stored cursor, or from --cursor, --since or --reset,
and print the run report.

Example:
  leadsync run
  leadsync run --since 2025-09-01 --budget 5m
  leadsync run --follow -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Since, "since", "", "start after this timestamp (ISO-8601 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.Cursor, "cursor", "", "resume token from a previous run")
	cmd.Flags().IntVar(&opts.Batch, "batch", 0, "page size (default sync.batch_size)")
	cmd.Flags().IntVar(&opts.Pages, "pages", 0, "maximum pages per run (default sync.max_pages)")
	cmd.Flags().DurationVar(&opts.Budget, "budget", 0, "time budget per run (default sync.time_budget)")
	cmd.Flags().BoolVar(&opts.Reset, "reset", false, "start from the beginning of the log")
	cmd.Flags().BoolVar(&opts.Follow, "follow", false, "keep running with the resume token until caught up")
	cmd.Flags().IntVar(&opts.MaxRuns, "max-runs", 0, "stop following after this many runs (0 = no limit)")
	cmd.MarkFlagsMutuallyExclusive("since", "cursor", "reset")

	return cmd
}

func (o *RunOptions) engineOptions() (engine.Options, error) {
	opts := engine.Options{
		ResumeToken: o.Cursor,
		Reset:       o.Reset,
		BatchSize:   o.Batch,
		MaxPages:    o.Pages,
		TimeBudget:  o.Budget,
	}
	if o.Since != "" {
		ts, err := domain.ParseTimestamp(o.Since)
		if err != nil {
			return opts, fmt.Errorf("invalid --since: %w", err)
		}
		opts.Since = &ts
	}
	if o.Batch < 0 || o.Pages < 0 || o.Budget < 0 {
		return opts, fmt.Errorf("--batch, --pages and --budget must not be negative")
	}
	return opts, nil
}

func runSync(cmd *cobra.Command, opts *RunOptions) error {
	runOpts, err := opts.engineOptions()
	if err != nil {
		return err
	}

	cfg, logger, err := opts.load(os.Stderr)
	if err != nil {
		return err
	}
	if err := cfg.RequireSync(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()

	if !opts.Follow {
		report, err := a.syncer.Run(ctx, runOpts)
		if report != nil {
			if perr := printReport(out, opts.Output, report); perr != nil {
				return perr
			}
		}
		return err
	}

	res, err := worker.Follow(ctx, a.syncer, runOpts, opts.MaxRuns)
	if res.Last != nil {
		if perr := printFollow(out, opts.Output, res); perr != nil {
			return perr
		}
	}
	return err
}
