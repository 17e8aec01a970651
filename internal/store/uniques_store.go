package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Priya8975/leadsync/internal/domain"
	"github.com/jackc/pgx/v5"
)

const insertUniqueSQL = `
	INSERT INTO lead_uniques_day_grp (day, affiliate_id, offer_id, campaign_id, t_id, cost)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (day, affiliate_id, offer_id, campaign_id, t_id) DO NOTHING
`

// UpsertUniques inserts bucket rows that do not exist yet. Existing rows,
// including their cost, are never touched. It returns the number of rows
// actually inserted.
func (s *PostgresStore) UpsertUniques(ctx context.Context, uniques []domain.UniqueLead) (int, error) {
	rows := collapseUniques(uniques)
	if len(rows) == 0 {
		return 0, nil
	}

	inserted := 0
	for _, c := range chunks(len(rows), s.chunkSize) {
		batch := &pgx.Batch{}
		for _, u := range rows[c[0]:c[1]] {
			day, err := time.Parse(time.DateOnly, u.Day)
			if err != nil {
				return inserted, fmt.Errorf("parsing bucket day %q: %w", u.Day, err)
			}
			batch.Queue(insertUniqueSQL,
				day, u.AffiliateID, u.OfferID, u.CampaignID, u.TID, decimalArg(u.Cost),
			)
		}

		n, err := s.sendBatch(ctx, batch)
		if err != nil {
			return inserted, fmt.Errorf("inserting uniques chunk [%d:%d]: %w", c[0], c[1], err)
		}
		inserted += int(n)
	}
	return inserted, nil
}

// CountUniques returns the number of bucket rows for one day.
func (s *PostgresStore) CountUniques(ctx context.Context, day string) (int, error) {
	d, err := time.Parse(time.DateOnly, day)
	if err != nil {
		return 0, fmt.Errorf("parsing day %q: %w", day, err)
	}

	var n int
	err = s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM lead_uniques_day_grp WHERE day = $1`, d,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting uniques: %w", err)
	}
	return n, nil
}

func collapseUniques(uniques []domain.UniqueLead) []domain.UniqueLead {
	seen := make(map[[5]string]struct{}, len(uniques))
	out := make([]domain.UniqueLead, 0, len(uniques))
	for _, u := range uniques {
		k := u.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, u)
	}
	return out
}
