package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/Priya8975/leadsync/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDatabase starts a PostgreSQL container and applies the migrations.
func setupTestDatabase(t *testing.T) *PostgresStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("leadsync_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, Migrate(connStr))
	// a second run is a no-op
	require.NoError(t, Migrate(connStr))

	s, err := NewPostgres(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

var t0 = time.Date(2025, 9, 15, 10, 0, 0, 0, time.UTC)

func money(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func stagingRecord(key string, cost string) domain.StagingRecord {
	r := domain.StagingRecord{
		EventKey:   key,
		LeadID:     domain.NewNullString("L-" + key),
		Status:     domain.NewNullString("1"),
		CampaignID: domain.NewNullString("100"),
		TID:        domain.NewNullString("t-" + key),
		CreatedAt:  t0,
		Raw:        json.RawMessage(`{"source":"test"}`),
	}
	if cost != "" {
		r.Cost = money(cost)
	}
	return r
}

func TestPostgres_CursorRoundTrip(t *testing.T) {
	s := setupTestDatabase(t)
	ctx := context.Background()
	cursors := NewCursorStore(s, "")

	got, err := cursors.Read(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	want := domain.Cursor{CreatedAt: t0.Add(1500 * time.Microsecond), EventKey: "abc"}
	require.NoError(t, cursors.Write(ctx, want))
	require.NoError(t, cursors.Write(ctx, want))

	got, err = cursors.Read(ctx)
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.Equal(want.CreatedAt))
	assert.Equal(t, want.EventKey, got.EventKey)

	other, err := NewCursorStore(s, "other").Read(ctx)
	require.NoError(t, err)
	assert.True(t, other.IsZero())
}

func TestPostgres_UpsertStagingIsIdempotent(t *testing.T) {
	s := setupTestDatabase(t)
	s.SetChunkSize(2)
	ctx := context.Background()

	records := []domain.StagingRecord{
		stagingRecord("a", "0.15"),
		stagingRecord("b", ""),
		stagingRecord("c", "1234.56"),
		stagingRecord("a", "0.20"),
	}

	n, err := s.UpsertStaging(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = s.UpsertStaging(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	stats, err := s.GetSyncStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.StagedEvents)
	assert.Equal(t, 1, stats.NullCostEvents)

	var cost string
	err = s.Pool().QueryRow(ctx, `SELECT cost::text FROM events_staging WHERE event_key = 'a'`).Scan(&cost)
	require.NoError(t, err)
	assert.Equal(t, "0.20", cost)
}

func TestPostgres_UpsertUniquesFirstWriteWins(t *testing.T) {
	s := setupTestDatabase(t)
	ctx := context.Background()

	first := domain.UniqueLead{Day: "2025-09-15", AffiliateID: "aff", TID: "t1", Cost: money("0.15")}
	retry := first
	retry.Cost = money("9.99")

	n, err := s.UpsertUniques(ctx, []domain.UniqueLead{first, retry})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.UpsertUniques(ctx, []domain.UniqueLead{retry})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	count, err := s.CountUniques(ctx, "2025-09-15")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	var cost string
	err = s.Pool().QueryRow(ctx, `SELECT cost::text FROM lead_uniques_day_grp WHERE t_id = 't1'`).Scan(&cost)
	require.NoError(t, err)
	assert.Equal(t, "0.15", cost)
}

func TestPostgres_RefreshViews(t *testing.T) {
	s := setupTestDatabase(t)
	ctx := context.Background()

	var uniques []domain.UniqueLead
	for i := 0; i < 3; i++ {
		uniques = append(uniques, domain.UniqueLead{
			Day: "2025-09-15", CampaignID: "100", TID: fmt.Sprintf("t%d", i), Cost: money("0.10"),
		})
	}
	_, err := s.UpsertUniques(ctx, uniques)
	require.NoError(t, err)

	require.NoError(t, s.RefreshViews(ctx, []string{"lead_metrics_day"}))

	var leads int
	var total string
	err = s.Pool().QueryRow(ctx,
		`SELECT leads, total_cost::text FROM lead_metrics_day WHERE campaign_id = '100'`,
	).Scan(&leads, &total)
	require.NoError(t, err)
	assert.Equal(t, 3, leads)
	assert.Equal(t, "0.30", total)

	assert.Error(t, s.RefreshViews(ctx, []string{"no_such_view"}))
}
