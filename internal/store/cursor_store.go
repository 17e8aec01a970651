package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Priya8975/leadsync/internal/domain"
	"github.com/jackc/pgx/v5"
)

// DefaultCursorID is the sync_state row tracking the Directus events sync.
const DefaultCursorID = "directus-events"

// CursorStore persists the singleton sync position in sync_state.
type CursorStore struct {
	store *PostgresStore
	id    string
}

func NewCursorStore(s *PostgresStore, id string) *CursorStore {
	if id == "" {
		id = DefaultCursorID
	}
	return &CursorStore{store: s, id: id}
}

// Read returns the stored cursor, or the zero cursor when none was written.
func (c *CursorStore) Read(ctx context.Context) (domain.Cursor, error) {
	var (
		createdAt *time.Time
		eventKey  *string
	)
	err := c.store.pool.QueryRow(ctx, `
		SELECT last_created_at, last_event_key
		FROM sync_state WHERE id = $1
	`, c.id).Scan(&createdAt, &eventKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Cursor{}, nil
		}
		return domain.Cursor{}, fmt.Errorf("querying sync state: %w", err)
	}

	var cursor domain.Cursor
	if createdAt != nil {
		cursor.CreatedAt = createdAt.UTC()
	}
	if eventKey != nil {
		cursor.EventKey = *eventKey
	}
	return cursor, nil
}

// Write replaces the stored cursor. Last writer wins.
func (c *CursorStore) Write(ctx context.Context, cursor domain.Cursor) error {
	var createdAt *time.Time
	if !cursor.CreatedAt.IsZero() {
		ts := cursor.CreatedAt.UTC()
		createdAt = &ts
	}

	_, err := c.store.pool.Exec(ctx, `
		INSERT INTO sync_state (id, last_created_at, last_event_key, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE SET
			last_created_at = EXCLUDED.last_created_at,
			last_event_key  = EXCLUDED.last_event_key,
			updated_at      = NOW()
	`, c.id, createdAt, cursor.EventKey)
	if err != nil {
		return fmt.Errorf("upserting sync state: %w", err)
	}
	return nil
}
