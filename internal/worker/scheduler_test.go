package worker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Priya8975/leadsync/internal/domain"
	"github.com/Priya8975/leadsync/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRunner returns canned reports in order and records the options.
type scriptedRunner struct {
	mu      sync.Mutex
	reports []*domain.RunReport
	errs    []error
	calls   []engine.Options
}

func (r *scriptedRunner) Run(ctx context.Context, opts engine.Options) (*domain.RunReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := len(r.calls)
	r.calls = append(r.calls, opts)
	if i >= len(r.reports) {
		return &domain.RunReport{State: domain.StateDone}, nil
	}
	var err error
	if i < len(r.errs) {
		err = r.errs[i]
	}
	return r.reports[i], err
}

func (r *scriptedRunner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestFollow_ChainsResumeTokens(t *testing.T) {
	since := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	runner := &scriptedRunner{reports: []*domain.RunReport{
		{Synced: 2000, HasMore: true, ResumeToken: "v1.first", State: domain.StateTimeboxed},
		{Synced: 500, State: domain.StateDone},
	}}

	res, err := Follow(context.Background(), runner, engine.Options{Since: &since, MaxPages: 2}, 0)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Runs)
	assert.Equal(t, 2500, res.Synced)
	assert.Equal(t, domain.StateDone, res.Last.State)

	require.Len(t, runner.calls, 2)
	assert.Equal(t, &since, runner.calls[0].Since)
	assert.Nil(t, runner.calls[1].Since)
	assert.Equal(t, "v1.first", runner.calls[1].ResumeToken)
	assert.Equal(t, 2, runner.calls[1].MaxPages)
}

func TestFollow_StopsOnError(t *testing.T) {
	boom := errors.New("upstream down")
	runner := &scriptedRunner{
		reports: []*domain.RunReport{
			{Synced: 10, HasMore: true, ResumeToken: "v1.a"},
			{Synced: 3, State: domain.StateFailed},
		},
		errs: []error{nil, boom},
	}

	res, err := Follow(context.Background(), runner, engine.Options{}, 0)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, res.Runs)
	assert.Equal(t, 13, res.Synced)
}

func TestFollow_MaxRuns(t *testing.T) {
	runner := &scriptedRunner{reports: []*domain.RunReport{
		{HasMore: true, ResumeToken: "a"},
		{HasMore: true, ResumeToken: "b"},
		{HasMore: true, ResumeToken: "c"},
	}}

	res, err := Follow(context.Background(), runner, engine.Options{}, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Runs)
	assert.True(t, res.Last.HasMore)
}

func TestScheduler_RunsImmediatelyAndStops(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	runner := &scriptedRunner{}
	s := NewScheduler(runner, time.Hour, engine.Options{}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return runner.Calls() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
