package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Priya8975/leadsync/internal/config"
	"github.com/Priya8975/leadsync/internal/domain"
	"github.com/Priya8975/leadsync/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	report *domain.RunReport
	err    error
	got    engine.Options
	calls  int
}

func (f *fakeRunner) Run(ctx context.Context, opts engine.Options) (*domain.RunReport, error) {
	f.calls++
	f.got = opts
	return f.report, f.err
}

type fakeCursors struct {
	cursor domain.Cursor
	err    error
}

func (f fakeCursors) Read(ctx context.Context) (domain.Cursor, error) {
	return f.cursor, f.err
}

var last = time.Date(2025, 9, 15, 10, 0, 0, 0, time.UTC)

func doneReport() *domain.RunReport {
	return &domain.RunReport{
		RunID:      "run-1",
		State:      domain.StateDone,
		StopReason: domain.StopCaughtUp,
		Synced:     3,
		Staged:     3,
		Uniques:    2,
		Pages:      1,
		Cursor:     domain.Cursor{CreatedAt: last, EventKey: "e3"},
	}
}

func newTestRouter(runner Runner, secret string) http.Handler {
	return NewRouter(Deps{
		Version: "test",
		Secret:  secret,
		Runner:  runner,
		Cursors: fakeCursors{cursor: domain.Cursor{CreatedAt: last, EventKey: "e3"}},
	})
}

func serve(t *testing.T, h http.Handler, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func TestSync_Success(t *testing.T) {
	runner := &fakeRunner{report: doneReport()}
	rec, body := serve(t, newTestRouter(runner, ""), http.MethodGet, "/api/v1/sync")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), body["synced"])
	assert.Equal(t, false, body["has_more"])
	assert.Equal(t, "done", body["state"])
	assert.Equal(t, "2025-09-15T10:00:00Z", body["last_created_at"])
}

func TestSync_ParsesOptions(t *testing.T) {
	runner := &fakeRunner{report: doneReport()}
	token := domain.Cursor{CreatedAt: last, EventKey: "e1"}.Token()
	target := "/api/v1/sync?since=2025-09-01&cursor=" + token + "&batch=250&pages=4&budget=30&reset=true"

	rec, _ := serve(t, newTestRouter(runner, ""), http.MethodPost, target)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NotNil(t, runner.got.Since)
	assert.Equal(t, time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), *runner.got.Since)
	assert.Equal(t, token, runner.got.ResumeToken)
	assert.Equal(t, 250, runner.got.BatchSize)
	assert.Equal(t, 4, runner.got.MaxPages)
	assert.Equal(t, 30*time.Second, runner.got.TimeBudget)
	assert.True(t, runner.got.Reset)
}

func TestSync_BudgetAcceptsDuration(t *testing.T) {
	d, err := parseBudget("1m30s")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = parseBudget("0")
	assert.Error(t, err)
	_, err = parseBudget("soon")
	assert.Error(t, err)
}

func TestSync_RejectsBadParams(t *testing.T) {
	tests := []string{
		"/api/v1/sync?since=yesterday",
		"/api/v1/sync?batch=0",
		"/api/v1/sync?batch=abc",
		"/api/v1/sync?pages=-1",
		"/api/v1/sync?budget=never",
		"/api/v1/sync?reset=maybe",
	}
	for _, target := range tests {
		t.Run(target, func(t *testing.T) {
			runner := &fakeRunner{report: doneReport()}
			rec, body := serve(t, newTestRouter(runner, ""), http.MethodGet, target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, body["error"])
			assert.Equal(t, 0, runner.calls)
		})
	}
}

func TestSync_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid token", domain.ErrInvalidToken, http.StatusBadRequest},
		{"fetch", &engine.FetchError{Err: errors.New("boom")}, http.StatusBadGateway},
		{"circuit open", &engine.FetchError{Err: engine.ErrCircuitOpen}, http.StatusServiceUnavailable},
		{"write", &engine.WriteError{Stage: engine.StageStaging, Err: errors.New("boom")}, http.StatusInternalServerError},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, errorStatus(tt.err))
		})
	}
}

func TestSync_FailedRunKeepsCounters(t *testing.T) {
	report := doneReport()
	report.State = domain.StateFailed
	report.StopReason = domain.StopError
	report.Error = "writing staging: boom"
	report.ResumeToken = report.Cursor.Token()

	runner := &fakeRunner{
		report: report,
		err:    &engine.WriteError{Stage: engine.StageStaging, Err: errors.New("boom")},
	}
	rec, body := serve(t, newTestRouter(runner, ""), http.MethodGet, "/api/v1/sync")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "failed", body["state"])
	assert.Equal(t, float64(3), body["synced"])
	assert.Equal(t, report.ResumeToken, body["next_cursor"])
	assert.Equal(t, "writing staging: boom", body["error"])
}

func TestSync_InvalidTokenWithoutReport(t *testing.T) {
	runner := &fakeRunner{err: domain.ErrInvalidToken}
	rec, body := serve(t, newTestRouter(runner, ""), http.MethodGet, "/api/v1/sync?cursor=garbage")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "invalid resume token")
}

func TestSync_ConfigurationError(t *testing.T) {
	r := NewRouter(Deps{
		Runner:    &fakeRunner{},
		ConfigErr: &config.ConfigurationError{Missing: []string{"upstream.url", "upstream.token"}},
	})
	rec, body := serve(t, r, http.MethodGet, "/api/v1/sync")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.ElementsMatch(t, []any{"upstream.url", "upstream.token"}, body["missing"])
}

func TestSync_RequiresSecret(t *testing.T) {
	runner := &fakeRunner{report: doneReport()}
	r := newTestRouter(runner, "s3cret")

	rec, _ := serve(t, r, http.MethodGet, "/api/v1/sync")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = serve(t, r, http.MethodGet, "/api/v1/sync?secret=wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = serve(t, r, http.MethodGet, "/api/v1/sync?secret=s3cret")
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, runner.calls)
}
