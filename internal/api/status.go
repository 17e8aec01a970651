package api

import (
	"context"
	"net/http"

	"github.com/Priya8975/leadsync/internal/domain"
	"github.com/Priya8975/leadsync/internal/engine"
	"github.com/Priya8975/leadsync/internal/store"
)

// CursorReader reads the stored sync position.
type CursorReader interface {
	Read(ctx context.Context) (domain.Cursor, error)
}

// ReportReader returns the last finished run.
type ReportReader interface {
	LastRunReport(ctx context.Context) (*domain.RunReport, error)
}

// StatsReader returns downstream table statistics.
type StatsReader interface {
	GetSyncStats(ctx context.Context) (*store.SyncStats, error)
}

// BreakerReader exposes the upstream circuit state.
type BreakerReader interface {
	GetState(ctx context.Context, upstream string) engine.CircuitBreakerState
}

// ClientCounter reports connected live-feed clients.
type ClientCounter interface {
	ClientCount() int
}

// StatusHandler reports where the sync stands. Every dependency except the
// cursor reader is optional.
type StatusHandler struct {
	cursors  CursorReader
	reports  ReportReader
	stats    StatsReader
	breaker  BreakerReader
	clients  ClientCounter
	upstream string
}

type statusResponse struct {
	Cursor           domain.Cursor               `json:"cursor"`
	ResumeToken      string                      `json:"resume_token,omitempty"`
	LastRun          *domain.RunReport           `json:"last_run,omitempty"`
	Stats            *store.SyncStats            `json:"stats,omitempty"`
	CircuitBreaker   *engine.CircuitBreakerState `json:"circuit_breaker,omitempty"`
	WebSocketClients int                         `json:"websocket_clients"`
	Warnings         []string                    `json:"warnings,omitempty"`
}

// Status returns the stored cursor plus whatever optional state is available.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.cursors == nil {
		respondError(w, http.StatusServiceUnavailable, "sync store not configured")
		return
	}

	cursor, err := h.cursors.Read(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read cursor")
		return
	}

	resp := statusResponse{Cursor: cursor, ResumeToken: cursor.Token()}

	if h.reports != nil {
		last, err := h.reports.LastRunReport(r.Context())
		if err != nil {
			resp.Warnings = append(resp.Warnings, "last run unavailable")
		}
		resp.LastRun = last
	}

	if h.stats != nil {
		stats, err := h.stats.GetSyncStats(r.Context())
		if err != nil {
			resp.Warnings = append(resp.Warnings, "stats unavailable")
		}
		resp.Stats = stats
	}

	if h.breaker != nil {
		st := h.breaker.GetState(r.Context(), h.upstream)
		resp.CircuitBreaker = &st
	}

	if h.clients != nil {
		resp.WebSocketClients = h.clients.ClientCount()
	}

	respondJSON(w, http.StatusOK, resp)
}
