package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/Priya8975/leadsync/internal/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestListener_RecordsProgress(t *testing.T) {
	ctx := context.Background()
	l := Listener{}

	batchesBefore := testutil.ToFloat64(BatchesTotal)
	syncedBefore := testutil.ToFloat64(EventsSyncedTotal)
	ts := time.Date(2025, 9, 15, 10, 0, 0, 0, time.UTC)

	l.OnBatch(ctx, domain.BatchProgress{Records: 250, Cursor: domain.Cursor{CreatedAt: ts, EventKey: "k"}})

	assert.Equal(t, batchesBefore+1, testutil.ToFloat64(BatchesTotal))
	assert.Equal(t, syncedBefore+250, testutil.ToFloat64(EventsSyncedTotal))
	assert.Equal(t, float64(ts.Unix()), testutil.ToFloat64(CursorTimestamp))

	runs := RunsTotal.WithLabelValues("done", "caught_up")
	runsBefore := testutil.ToFloat64(runs)

	l.OnFinish(ctx, domain.RunReport{
		State:      domain.StateDone,
		StopReason: domain.StopCaughtUp,
		StartedAt:  ts,
		FinishedAt: ts.Add(2 * time.Second),
		Uniques:    3,
		Unseekable: 4,
	})

	assert.Equal(t, runsBefore+1, testutil.ToFloat64(runs))
	assert.Equal(t, float64(4), testutil.ToFloat64(UnseekableEvents))

	// a timeboxed run did not count, so the gauge keeps its value
	l.OnFinish(ctx, domain.RunReport{State: domain.StateTimeboxed, StopReason: domain.StopPageBudget})
	assert.Equal(t, float64(4), testutil.ToFloat64(UnseekableEvents))
}
