package metrics

import (
	"context"

	"github.com/Priya8975/leadsync/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Run metrics
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsync_runs_total",
			Help: "Total number of sync runs by final state and stop reason",
		},
		[]string{"state", "stop_reason"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leadsync_run_duration_seconds",
			Help:    "Duration of sync runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"state"},
	)

	// Record metrics
	EventsSyncedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leadsync_events_synced_total",
			Help: "Total number of upstream events committed downstream",
		},
	)

	UniquesInsertedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leadsync_uniques_inserted_total",
			Help: "Total number of new unique lead buckets",
		},
	)

	MoneyUnparsedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leadsync_money_unparsed_total",
			Help: "Total number of monetary values stored as null because they could not be parsed",
		},
	)

	BatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leadsync_batches_total",
			Help: "Total number of committed batches",
		},
	)

	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leadsync_batch_records",
			Help:    "Number of records per committed batch",
			Buckets: prometheus.ExponentialBuckets(1, 4, 7),
		},
	)

	// Cursor position
	CursorTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leadsync_cursor_timestamp_seconds",
			Help: "created_at of the last committed event, as a unix timestamp",
		},
	)

	UnseekableEvents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leadsync_unseekable_events",
			Help: "Upstream events skipped for lacking event_key or created_at, as of the last complete run",
		},
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsync_http_requests_total",
			Help: "Total number of HTTP requests to the sync API",
		},
		[]string{"route", "status"},
	)
)

// Listener records run progress into the collectors above.
type Listener struct{}

func (Listener) OnBatch(ctx context.Context, p domain.BatchProgress) {
	BatchesTotal.Inc()
	BatchSize.Observe(float64(p.Records))
	EventsSyncedTotal.Add(float64(p.Records))
	if !p.Cursor.CreatedAt.IsZero() {
		CursorTimestamp.Set(float64(p.Cursor.CreatedAt.Unix()))
	}
}

func (Listener) OnFinish(ctx context.Context, r domain.RunReport) {
	RunsTotal.WithLabelValues(string(r.State), string(r.StopReason)).Inc()
	RunDuration.WithLabelValues(string(r.State)).Observe(r.FinishedAt.Sub(r.StartedAt).Seconds())
	UniquesInsertedTotal.Add(float64(r.Uniques))
	MoneyUnparsedTotal.Add(float64(r.MoneyUnparsed))
	if r.State == domain.StateDone {
		UnseekableEvents.Set(float64(r.Unseekable))
	}
}
