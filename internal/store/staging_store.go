package store

import (
	"context"
	"fmt"

	"github.com/Priya8975/leadsync/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const upsertStagingSQL = `
	INSERT INTO events_staging (
		event_key, lead_id, status, revenue, cost, currency,
		offer_id, campaign_id, affiliate_id, sub_id, t_id, created_at, raw, synced_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
	ON CONFLICT (event_key) DO UPDATE SET
		lead_id      = EXCLUDED.lead_id,
		status       = EXCLUDED.status,
		revenue      = EXCLUDED.revenue,
		cost         = EXCLUDED.cost,
		currency     = EXCLUDED.currency,
		offer_id     = EXCLUDED.offer_id,
		campaign_id  = EXCLUDED.campaign_id,
		affiliate_id = EXCLUDED.affiliate_id,
		sub_id       = EXCLUDED.sub_id,
		t_id         = EXCLUDED.t_id,
		created_at   = EXCLUDED.created_at,
		raw          = EXCLUDED.raw,
		synced_at    = NOW()
`

// UpsertStaging writes records keyed by event key: new keys are inserted,
// existing ones overwritten. When a key repeats in records the last one
// wins. Each chunk commits in its own transaction; the first failing chunk
// aborts the call and is returned.
func (s *PostgresStore) UpsertStaging(ctx context.Context, records []domain.StagingRecord) (int, error) {
	rows := collapseStaging(records)
	if len(rows) == 0 {
		return 0, nil
	}

	written := 0
	for _, c := range chunks(len(rows), s.chunkSize) {
		batch := &pgx.Batch{}
		for _, r := range rows[c[0]:c[1]] {
			batch.Queue(upsertStagingSQL,
				r.EventKey, r.LeadID.Ptr(), r.Status.Ptr(),
				decimalArg(r.Revenue), decimalArg(r.Cost), r.Currency.Ptr(),
				r.OfferID.Ptr(), r.CampaignID.Ptr(), r.AffiliateID.Ptr(), r.SubID.Ptr(), r.TID.Ptr(),
				r.CreatedAt.UTC(), jsonArg(r.Raw),
			)
		}

		if _, err := s.sendBatch(ctx, batch); err != nil {
			return written, fmt.Errorf("upserting staging chunk [%d:%d]: %w", c[0], c[1], err)
		}
		written += c[1] - c[0]
	}
	return written, nil
}

// sendBatch runs the batch inside a transaction, checks every result and
// returns the total number of affected rows.
func (s *PostgresStore) sendBatch(ctx context.Context, batch *pgx.Batch) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var affected int64
	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return 0, fmt.Errorf("executing statement %d: %w", i, err)
		}
		affected += tag.RowsAffected()
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("closing batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return affected, nil
}

func collapseStaging(records []domain.StagingRecord) []domain.StagingRecord {
	index := make(map[string]int, len(records))
	out := make([]domain.StagingRecord, 0, len(records))
	for _, r := range records {
		if i, ok := index[r.EventKey]; ok {
			out[i] = r
			continue
		}
		index[r.EventKey] = len(out)
		out = append(out, r)
	}
	return out
}

func decimalArg(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.StringFixed(2)
	return &s
}

func jsonArg(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
