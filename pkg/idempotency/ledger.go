package idempotency

import (
	"context"
	"fmt"

	"github.com/dmehra2102/bookingflow/pkg/pgtx"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ledger is the durable processed-event set of one consuming service.
// Presence of an event_id means the side effect was applied; the insert runs
// in the same transaction as the side effect, so a crash between "applied"
// and "recorded" rolls back both.
//
// The key is (event_id, consumer): one event fans out to several services,
// and each must apply its own side effect exactly once. Services sharing a
// database therefore never shadow each other's entries.
type Ledger struct {
	pool     *pgxpool.Pool
	consumer string
}

func NewLedger(pool *pgxpool.Pool, consumer string) *Ledger {
	return &Ledger{pool: pool, consumer: consumer}
}

// MarkProcessed records eventID for this consumer and reports whether it was
// new. A false return means a duplicate delivery; the caller must not reapply
// the effect.
func (l *Ledger) MarkProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	ex := pgtx.From(ctx, l.pool)
	tag, err := ex.Exec(ctx, `
		INSERT INTO processed_events (event_id, consumer, event_type, processed_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (event_id, consumer) DO NOTHING
	`, eventID, l.consumer, eventType)
	if err != nil {
		return false, fmt.Errorf("insert processed event: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Migrate creates the ledger table. Entries grow monotonically; retention is
// an external concern.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS processed_events (
			event_id     UUID NOT NULL,
			consumer     TEXT NOT NULL,
			event_type   TEXT NOT NULL,
			processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (event_id, consumer)
		)
	`)
	if err != nil {
		return fmt.Errorf("create processed_events: %w", err)
	}
	return nil
}
