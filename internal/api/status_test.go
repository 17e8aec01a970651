package api

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/Priya8975/leadsync/internal/domain"
	"github.com/Priya8975/leadsync/internal/engine"
	"github.com/Priya8975/leadsync/internal/store"
	"github.com/stretchr/testify/assert"
)

type fakeReports struct {
	report *domain.RunReport
	err    error
}

func (f fakeReports) LastRunReport(ctx context.Context) (*domain.RunReport, error) {
	return f.report, f.err
}

type fakeStats struct{}

func (fakeStats) GetSyncStats(ctx context.Context) (*store.SyncStats, error) {
	return &store.SyncStats{StagedEvents: 10, UniqueLeads: 4}, nil
}

type fakeBreaker struct{}

func (fakeBreaker) GetState(ctx context.Context, upstream string) engine.CircuitBreakerState {
	return engine.CircuitBreakerState{State: engine.CircuitClosed}
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func TestStatus_ReportsCursorAndOptionalState(t *testing.T) {
	cursor := domain.Cursor{CreatedAt: last, EventKey: "e3"}
	r := NewRouter(Deps{
		Upstream: "directus",
		Runner:   &fakeRunner{},
		Cursors:  fakeCursors{cursor: cursor},
		Reports:  fakeReports{report: doneReport()},
		Stats:    fakeStats{},
		Breaker:  fakeBreaker{},
	})

	rec, body := serve(t, r, http.MethodGet, "/api/v1/sync/status")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, cursor.Token(), body["resume_token"])
	assert.Equal(t, "e3", body["cursor"].(map[string]any)["last_event_key"])
	assert.Equal(t, "run-1", body["last_run"].(map[string]any)["run_id"])
	assert.Equal(t, float64(10), body["stats"].(map[string]any)["staged_events"])
	assert.Equal(t, engine.CircuitClosed, body["circuit_breaker"].(map[string]any)["state"])
	assert.Nil(t, body["warnings"])
}

func TestStatus_DegradesOnOptionalFailures(t *testing.T) {
	r := NewRouter(Deps{
		Runner:  &fakeRunner{},
		Cursors: fakeCursors{},
		Reports: fakeReports{err: errors.New("redis down")},
	})

	rec, body := serve(t, r, http.MethodGet, "/api/v1/sync/status")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"last run unavailable"}, body["warnings"])
}

func TestStatus_CursorFailure(t *testing.T) {
	r := NewRouter(Deps{Runner: &fakeRunner{}, Cursors: fakeCursors{err: errors.New("db down")}})

	rec, _ := serve(t, r, http.MethodGet, "/api/v1/sync/status")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealth(t *testing.T) {
	rec, body := serve(t, NewRouter(Deps{Version: "1.2.3", DB: fakePinger{}}), http.MethodGet, "/api/v1/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "1.2.3", body["version"])

	rec, body = serve(t, NewRouter(Deps{DB: fakePinger{err: errors.New("down")}}), http.MethodGet, "/api/v1/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", body["status"])
}
