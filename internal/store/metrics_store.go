package store

import (
	"context"
	"fmt"
	"time"
)

// SyncStats holds aggregated figures about the downstream tables.
type SyncStats struct {
	StagedEvents    int        `json:"staged_events"`
	UniqueLeads     int        `json:"unique_leads"`
	EventsNoTID     int        `json:"events_without_t_id"`
	NullCostEvents  int        `json:"null_cost_events"`
	LatestCreatedAt *time.Time `json:"latest_created_at,omitempty"`
	LastSyncedAt    *time.Time `json:"last_synced_at,omitempty"`
}

// GetSyncStats returns aggregated statistics from the staging and uniques tables.
func (s *PostgresStore) GetSyncStats(ctx context.Context) (*SyncStats, error) {
	var m SyncStats

	// Staging counts and freshness
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE t_id IS NULL OR t_id = '') AS no_tid,
			COUNT(*) FILTER (WHERE cost IS NULL) AS null_cost,
			MAX(created_at),
			MAX(synced_at)
		FROM events_staging
	`).Scan(&m.StagedEvents, &m.EventsNoTID, &m.NullCostEvents, &m.LatestCreatedAt, &m.LastSyncedAt)
	if err != nil {
		return nil, fmt.Errorf("querying staging stats: %w", err)
	}

	// Unique leads
	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM lead_uniques_day_grp
	`).Scan(&m.UniqueLeads)
	if err != nil {
		return nil, fmt.Errorf("querying unique leads: %w", err)
	}

	return &m, nil
}
