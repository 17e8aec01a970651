package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Priya8975/leadsync/internal/config"
	"github.com/Priya8975/leadsync/internal/domain"
	"github.com/Priya8975/leadsync/internal/engine"
)

const maxBatchSize = 10000

// Runner executes one sync run.
type Runner interface {
	Run(ctx context.Context, opts engine.Options) (*domain.RunReport, error)
}

type SyncHandler struct {
	runner    Runner
	configErr error
	logger    *slog.Logger
}

// NewSyncHandler creates the sync trigger handler. When configErr is set
// every request is answered with 503 and the missing settings.
func NewSyncHandler(runner Runner, configErr error, logger *slog.Logger) *SyncHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncHandler{runner: runner, configErr: configErr, logger: logger}
}

type syncResponse struct {
	RunID         string            `json:"run_id"`
	Synced        int               `json:"synced"`
	Since         *time.Time        `json:"since,omitempty"`
	Cursor        domain.Cursor     `json:"cursor"`
	LastCreatedAt *time.Time        `json:"last_created_at"`
	HasMore       bool              `json:"has_more"`
	NextCursor    string            `json:"next_cursor,omitempty"`
	State         domain.RunState   `json:"state"`
	StopReason    domain.StopReason `json:"stop_reason"`
	Pages         int               `json:"pages"`
	Staged        int               `json:"staged"`
	Uniques       int               `json:"uniques"`
	MoneyUnparsed int               `json:"money_unparsed"`
	Error         string            `json:"error,omitempty"`
	Warnings      []string          `json:"warnings,omitempty"`
}

type configErrorResponse struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing"`
}

// Sync runs one timeboxed sync and reports the outcome.
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	if h.configErr != nil {
		var cfgErr *config.ConfigurationError
		if errors.As(h.configErr, &cfgErr) {
			respondJSON(w, http.StatusServiceUnavailable, configErrorResponse{
				Error:   cfgErr.Error(),
				Missing: cfgErr.Missing,
			})
			return
		}
		respondError(w, http.StatusServiceUnavailable, h.configErr.Error())
		return
	}

	opts, err := parseSyncOptions(r)
	if err != nil {
		h.logger.Debug("rejected sync request", "error", err)
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.runner.Run(r.Context(), opts)
	if err != nil {
		status := errorStatus(err)
		if report == nil {
			respondError(w, status, err.Error())
			return
		}
		respondJSON(w, status, newSyncResponse(report))
		return
	}

	respondJSON(w, http.StatusOK, newSyncResponse(report))
}

func errorStatus(err error) int {
	var fetchErr *engine.FetchError
	var writeErr *engine.WriteError
	switch {
	case errors.Is(err, domain.ErrInvalidToken):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway
	case errors.As(err, &writeErr):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func newSyncResponse(report *domain.RunReport) syncResponse {
	resp := syncResponse{
		RunID:         report.RunID,
		Synced:        report.Synced,
		Cursor:        report.Cursor,
		HasMore:       report.HasMore,
		NextCursor:    report.ResumeToken,
		State:         report.State,
		StopReason:    report.StopReason,
		Pages:         report.Pages,
		Staged:        report.Staged,
		Uniques:       report.Uniques,
		MoneyUnparsed: report.MoneyUnparsed,
		Error:         report.Error,
		Warnings:      report.Warnings,
	}
	if !report.StartCursor.CreatedAt.IsZero() {
		since := report.StartCursor.CreatedAt
		resp.Since = &since
	}
	if !report.Cursor.CreatedAt.IsZero() {
		last := report.Cursor.CreatedAt
		resp.LastCreatedAt = &last
	}
	return resp
}

// parseSyncOptions reads since, cursor, batch, pages, budget and reset from
// the query string.
func parseSyncOptions(r *http.Request) (engine.Options, error) {
	q := r.URL.Query()
	var opts engine.Options

	if v := q.Get("since"); v != "" {
		ts, err := domain.ParseTimestamp(v)
		if err != nil {
			return opts, fmt.Errorf("invalid since: %w", err)
		}
		opts.Since = &ts
	}

	opts.ResumeToken = q.Get("cursor")

	if v := q.Get("batch"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxBatchSize {
			return opts, fmt.Errorf("invalid batch: must be between 1 and %d", maxBatchSize)
		}
		opts.BatchSize = n
	}

	if v := q.Get("pages"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return opts, fmt.Errorf("invalid pages: must be a positive integer")
		}
		opts.MaxPages = n
	}

	if v := q.Get("budget"); v != "" {
		d, err := parseBudget(v)
		if err != nil {
			return opts, err
		}
		opts.TimeBudget = d
	}

	if v := q.Get("reset"); v != "" {
		reset, err := strconv.ParseBool(strings.ToLower(v))
		if err != nil {
			return opts, fmt.Errorf("invalid reset: %q", v)
		}
		opts.Reset = reset
	}

	return opts, nil
}

// parseBudget accepts a Go duration ("45s") or whole seconds ("45").
func parseBudget(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 1 {
			return 0, fmt.Errorf("invalid budget: must be positive")
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid budget: %q", v)
	}
	return d, nil
}
