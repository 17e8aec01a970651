package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// RefreshViews refreshes each materialized view in order and stops at the
// first failure.
func (s *PostgresStore) RefreshViews(ctx context.Context, views []string) error {
	for _, name := range views {
		if name == "" {
			continue
		}
		ident := pgx.Identifier{name}
		if _, err := s.pool.Exec(ctx, "REFRESH MATERIALIZED VIEW "+ident.Sanitize()); err != nil {
			return fmt.Errorf("refreshing view %s: %w", name, err)
		}
	}
	return nil
}
