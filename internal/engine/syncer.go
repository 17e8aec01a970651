package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Priya8975/leadsync/internal/domain"
	"github.com/google/uuid"
)

const (
	DefaultBatchSize  = 1000
	DefaultBatchDelay = 120 * time.Millisecond
	DefaultUpstream   = "directus"
)

// Fetcher reads one page of events strictly after cursor.
type Fetcher interface {
	FetchPage(ctx context.Context, cursor domain.Cursor, limit int) ([]domain.RawEvent, error)
}

// UnseekableCounter reports upstream events that cannot be fetched because
// they lack a seek field. Fetchers that filter such events out implement it.
type UnseekableCounter interface {
	CountUnseekable(ctx context.Context) (int, error)
}

// CursorStore persists the sync position.
type CursorStore interface {
	Read(ctx context.Context) (domain.Cursor, error)
	Write(ctx context.Context, cursor domain.Cursor) error
}

// StagingWriter upserts staging records and returns how many were written.
type StagingWriter interface {
	UpsertStaging(ctx context.Context, records []domain.StagingRecord) (int, error)
}

// UniquesWriter inserts absent unique buckets and returns how many were new.
type UniquesWriter interface {
	UpsertUniques(ctx context.Context, uniques []domain.UniqueLead) (int, error)
}

// Writer is the downstream store.
type Writer interface {
	StagingWriter
	UniquesWriter
}

// Limiter throttles upstream requests.
type Limiter interface {
	Wait(ctx context.Context, upstream string, limit int) error
}

// Breaker guards upstream.
type Breaker interface {
	AllowRequest(ctx context.Context, upstream string) (string, bool)
	RecordSuccess(ctx context.Context, upstream string)
	RecordFailure(ctx context.Context, upstream string)
}

// ReportStore keeps finished run reports.
type ReportStore interface {
	SaveRunReport(ctx context.Context, report domain.RunReport) error
}

// ViewRefresher refreshes derived views after a complete run.
type ViewRefresher interface {
	RefreshViews(ctx context.Context, views []string) error
}

// Config holds the defaults applied to every run.
type Config struct {
	BatchSize         int
	MaxPages          int
	TimeBudget        time.Duration
	BatchDelay        time.Duration
	Location          *time.Location
	Upstream          string
	RequestsPerSecond int
	Views             []string
}

// Options override the start position and budgets of one run. Zero values
// fall back to Config.
type Options struct {
	// Start position, in order of precedence: ResumeToken, Since, Reset,
	// then the stored cursor.
	ResumeToken string
	Since       *time.Time
	Reset       bool

	BatchSize  int
	MaxPages   int
	TimeBudget time.Duration
}

// Syncer runs the fetch, write and advance loop.
type Syncer struct {
	fetcher Fetcher
	cursors CursorStore
	writer  Writer
	cfg     Config
	logger  *slog.Logger

	limiter   Limiter
	breaker   Breaker
	reports   ReportStore
	views     ViewRefresher
	listeners *FanOut

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
	newID func() string
}

func NewSyncer(fetcher Fetcher, cursors CursorStore, writer Writer, cfg Config, logger *slog.Logger) *Syncer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Upstream == "" {
		cfg.Upstream = DefaultUpstream
	}

	return &Syncer{
		fetcher:   fetcher,
		cursors:   cursors,
		writer:    writer,
		cfg:       cfg,
		logger:    logger,
		listeners: NewFanOut(logger),
		now:       time.Now,
		sleep:     sleepContext,
		newID:     uuid.NewString,
	}
}

// WithLimiter throttles upstream requests through l.
func (s *Syncer) WithLimiter(l Limiter) *Syncer {
	s.limiter = l
	return s
}

// WithBreaker refuses runs while b reports upstream as failing.
func (s *Syncer) WithBreaker(b Breaker) *Syncer {
	s.breaker = b
	return s
}

// WithReports saves every finished report to r.
func (s *Syncer) WithReports(r ReportStore) *Syncer {
	s.reports = r
	return s
}

// WithViews refreshes Config.Views through v after each complete run.
func (s *Syncer) WithViews(v ViewRefresher) *Syncer {
	s.views = v
	return s
}

// AddListener registers run listeners.
func (s *Syncer) AddListener(listeners ...Listener) *Syncer {
	s.listeners.Add(listeners...)
	return s
}

// Run synchronizes until upstream is caught up or a budget is exhausted.
// Budgets and ctx are checked only between iterations; an iteration that has
// started runs to completion or failure. On failure the returned report holds
// the counters of the batches committed before the error.
func (s *Syncer) Run(ctx context.Context, opts Options) (*domain.RunReport, error) {
	batchSize := firstPositive(opts.BatchSize, s.cfg.BatchSize)
	maxPages := firstPositive(opts.MaxPages, s.cfg.MaxPages)
	budget := opts.TimeBudget
	if budget <= 0 {
		budget = s.cfg.TimeBudget
	}

	report := &domain.RunReport{
		RunID:     s.newID(),
		State:     domain.StateIdle,
		StartedAt: s.now().UTC(),
	}
	logger := s.logger.With("run_id", report.RunID)

	// Iteration I/O is detached from caller cancellation.
	runCtx := context.WithoutCancel(ctx)

	start, stored, err := s.startPosition(runCtx, opts)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidToken) {
			return nil, err
		}
		return s.fail(runCtx, logger, report, &WriteError{Stage: StageCursor, Err: err})
	}
	report.StartCursor = start
	report.Cursor = start

	if s.breaker != nil {
		if state, ok := s.breaker.AllowRequest(runCtx, s.cfg.Upstream); !ok {
			logger.Warn("upstream circuit open, skipping run", "state", state)
			return s.fail(runCtx, logger, report, &FetchError{Err: ErrCircuitOpen})
		}
	}

	logger.Info("sync run started",
		"start_cursor", start.String(),
		"batch_size", batchSize,
		"max_pages", maxPages,
		"time_budget", budget,
	)

	var deadline time.Time
	if budget > 0 {
		deadline = report.StartedAt.Add(budget)
	}
	cursor := start

	for {
		if report.Pages > 0 {
			if maxPages > 0 && report.Pages >= maxPages {
				return s.timebox(runCtx, logger, report, domain.StopPageBudget)
			}
			if !deadline.IsZero() && !s.now().Before(deadline) {
				return s.timebox(runCtx, logger, report, domain.StopTimeBudget)
			}
			if s.cfg.BatchDelay > 0 {
				s.sleep(ctx, s.cfg.BatchDelay)
			}
		}
		if ctx.Err() != nil {
			return s.timebox(runCtx, logger, report, domain.StopCancelled)
		}
		if s.limiter != nil && s.cfg.RequestsPerSecond > 0 {
			if err := s.limiter.Wait(ctx, s.cfg.Upstream, s.cfg.RequestsPerSecond); err != nil {
				return s.timebox(runCtx, logger, report, domain.StopCancelled)
			}
		}

		report.State = domain.StateFetching
		events, err := s.fetcher.FetchPage(runCtx, cursor, batchSize)
		if err == nil {
			err = checkPage(cursor, events)
		}
		if err != nil {
			if s.breaker != nil {
				s.breaker.RecordFailure(runCtx, s.cfg.Upstream)
			}
			return s.fail(runCtx, logger, report, &FetchError{Err: err})
		}
		if s.breaker != nil {
			s.breaker.RecordSuccess(runCtx, s.cfg.Upstream)
		}

		if len(events) == 0 {
			return s.done(runCtx, logger, report)
		}

		report.State = domain.StateWriting
		proj := Project(events, s.cfg.Location, s.now())
		if proj.MoneyUnparsed > 0 {
			logger.Warn("unparseable money values stored as null",
				"page", report.Pages+1,
				"count", proj.MoneyUnparsed,
			)
		}

		staged, err := s.writer.UpsertStaging(runCtx, proj.Staging)
		if err != nil {
			return s.fail(runCtx, logger, report, &WriteError{Stage: StageStaging, Err: err})
		}
		inserted, err := s.writer.UpsertUniques(runCtx, proj.Uniques)
		if err != nil {
			return s.fail(runCtx, logger, report, &WriteError{Stage: StageUniques, Err: err})
		}

		report.State = domain.StateCursorAdvancing
		next := events[len(events)-1].Position()
		if next.After(stored) {
			if err := s.cursors.Write(runCtx, next); err != nil {
				return s.fail(runCtx, logger, report, &WriteError{Stage: StageCursor, Err: err})
			}
			stored = next
		}

		cursor = next
		report.Cursor = next
		report.Pages++
		report.Synced += len(events)
		report.Staged += staged
		report.Uniques += inserted
		report.MoneyUnparsed += proj.MoneyUnparsed

		logger.Info("batch committed",
			"page", report.Pages,
			"records", len(events),
			"uniques_inserted", inserted,
			"cursor", next.String(),
		)
		s.listeners.Batch(runCtx, domain.BatchProgress{
			RunID:     report.RunID,
			Page:      report.Pages,
			Records:   len(events),
			Synced:    report.Synced,
			Cursor:    next,
			Timestamp: s.now().UTC(),
		})

		if len(events) < batchSize {
			return s.done(runCtx, logger, report)
		}
	}
}

// startPosition resolves where the run begins and returns the stored cursor.
// The stored cursor only moves forward unless the run is an explicit reset.
func (s *Syncer) startPosition(ctx context.Context, opts Options) (start, stored domain.Cursor, err error) {
	var fromToken domain.Cursor
	if opts.ResumeToken != "" {
		if fromToken, err = domain.ParseToken(opts.ResumeToken); err != nil {
			return start, stored, err
		}
	}

	if !opts.Reset {
		if stored, err = s.cursors.Read(ctx); err != nil {
			return start, stored, fmt.Errorf("reading cursor: %w", err)
		}
	}

	switch {
	case opts.ResumeToken != "":
		start = fromToken
	case opts.Since != nil:
		start = domain.Cursor{CreatedAt: opts.Since.UTC()}
	case opts.Reset:
		start = domain.Cursor{}
	default:
		start = stored
	}
	return start, stored, nil
}

// checkPage rejects pages that are unordered, do not move past cursor, or
// hold events without a seek position.
func checkPage(cursor domain.Cursor, events []domain.RawEvent) error {
	prev := cursor
	for i, e := range events {
		if e.EventKey == "" || e.CreatedAt.IsZero() {
			return fmt.Errorf("event %d (lead %q): %w", i, e.LeadID.OrEmpty(), ErrUnseekableEvent)
		}
		pos := e.Position()
		if !pos.After(prev) {
			return fmt.Errorf("event %d at %s: %w", i, pos, ErrCursorStalled)
		}
		prev = pos
	}
	return nil
}

func (s *Syncer) done(ctx context.Context, logger *slog.Logger, report *domain.RunReport) (*domain.RunReport, error) {
	report.State = domain.StateDone
	report.StopReason = domain.StopCaughtUp
	report.HasMore = false
	report.ResumeToken = ""

	if counter, ok := s.fetcher.(UnseekableCounter); ok {
		n, err := counter.CountUnseekable(ctx)
		switch {
		case err != nil:
			logger.Warn("counting unseekable upstream events failed", "error", err)
		case n > 0:
			report.Unseekable = n
			logger.Warn("upstream events without event_key or created_at are not synced", "count", n)
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("%d upstream events without event_key or created_at are not synced", n))
		}
	}

	if s.views != nil && len(s.cfg.Views) > 0 {
		if err := s.views.RefreshViews(ctx, s.cfg.Views); err != nil {
			logger.Error("refreshing views failed", "error", err)
			report.Warnings = append(report.Warnings, err.Error())
		}
	}

	s.finish(ctx, logger, report)
	return report, nil
}

func (s *Syncer) timebox(ctx context.Context, logger *slog.Logger, report *domain.RunReport, reason domain.StopReason) (*domain.RunReport, error) {
	report.State = domain.StateTimeboxed
	report.StopReason = reason
	report.HasMore = true
	report.ResumeToken = report.Cursor.Token()

	s.finish(ctx, logger, report)
	return report, nil
}

func (s *Syncer) fail(ctx context.Context, logger *slog.Logger, report *domain.RunReport, err error) (*domain.RunReport, error) {
	report.State = domain.StateFailed
	report.StopReason = domain.StopError
	report.Error = err.Error()
	report.ResumeToken = report.Cursor.Token()

	logger.Error("sync run failed",
		"error", err,
		"synced", report.Synced,
		"cursor", report.Cursor.String(),
	)
	s.finish(ctx, logger, report)
	return report, err
}

func (s *Syncer) finish(ctx context.Context, logger *slog.Logger, report *domain.RunReport) {
	report.FinishedAt = s.now().UTC()

	if report.State != domain.StateFailed {
		logger.Info("sync run finished",
			"state", report.State,
			"stop_reason", report.StopReason,
			"synced", report.Synced,
			"pages", report.Pages,
			"cursor", report.Cursor.String(),
			"duration", report.FinishedAt.Sub(report.StartedAt),
		)
	}

	if s.reports != nil {
		if err := s.reports.SaveRunReport(ctx, *report); err != nil {
			logger.Error("saving run report failed", "error", err)
		}
	}
	s.listeners.Finish(ctx, *report)
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
