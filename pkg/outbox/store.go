package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmehra2102/bookingflow/pkg/pgtx"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists outbox entries in the service's own database.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Insert appends an entry. It picks up the ambient transaction from ctx, so
// repositories call it inside the same transaction as the domain mutation.
func (s *PGStore) Insert(ctx context.Context, e Entry) error {
	var headers []byte
	if len(e.Headers) > 0 {
		b, err := json.Marshal(e.Headers)
		if err != nil {
			return fmt.Errorf("marshal outbox headers: %w", err)
		}
		headers = b
	}

	ex := pgtx.From(ctx, s.pool)
	_, err := ex.Exec(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, headers, traceparent, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, e.ID, e.AggregateType, e.AggregateID, e.EventType, e.Payload, headers, e.Traceparent, string(StatusPending), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// LockBatch claims up to batchSize pending entries, oldest first, with
// FOR UPDATE SKIP LOCKED so concurrent relay instances never double-claim a
// row. Claimed rows move to in_progress under a lease so a crashed relay's
// claim expires instead of wedging delivery.
func (s *PGStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		WITH claimed AS (
			SELECT id
			FROM outbox
			WHERE status = 'pending'
			ORDER BY created_at
			FOR UPDATE SKIP LOCKED
			LIMIT $1
		)
		UPDATE outbox
		SET status = 'in_progress', relay_id = $2, lease_until = NOW() + $3::interval
		WHERE id IN (SELECT id FROM claimed)
		RETURNING id, aggregate_type, aggregate_id, event_type, payload, headers, traceparent, retry_count, created_at
	`, batchSize, relayID, lease.String())
	if err != nil {
		return nil, fmt.Errorf("lock outbox batch: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var headers []byte
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload, &headers, &e.Traceparent, &e.RetryCount, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		if len(headers) > 0 {
			if err := json.Unmarshal(headers, &e.Headers); err != nil {
				return nil, fmt.Errorf("unmarshal outbox headers: %w", err)
			}
		}
		e.Status = StatusInProgress
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PGStore) MarkSent(ctx context.Context, ids []string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE outbox SET status = 'sent', lease_until = NULL WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return fmt.Errorf("mark outbox sent: %w", err)
	}
	return nil
}

// Release returns an entry whose publish failed to pending so the next cycle
// retries it. Never loss: the row stays until some cycle succeeds.
func (s *PGStore) Release(ctx context.Context, id string, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE outbox
		SET status = 'pending', relay_id = NULL, lease_until = NULL,
		    retry_count = retry_count + 1, last_error = $2
		WHERE id = $1
	`, id, errMsg)
	if err != nil {
		return fmt.Errorf("release outbox entry: %w", err)
	}
	return nil
}

// ReapExpired returns rows stranded in_progress by a crashed relay to
// pending once their lease ran out.
func (s *PGStore) ReapExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE outbox
		SET status = 'pending', relay_id = NULL, lease_until = NULL
		WHERE status = 'in_progress' AND lease_until < NOW()
	`)
	if err != nil {
		return 0, fmt.Errorf("reap expired outbox leases: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Migrate creates the outbox table, indexed for the relay's polling query.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS outbox (
			id             UUID PRIMARY KEY,
			aggregate_type TEXT NOT NULL,
			aggregate_id   TEXT NOT NULL,
			event_type     TEXT NOT NULL,
			payload        JSONB NOT NULL,
			headers        JSONB,
			traceparent    TEXT,
			status         TEXT NOT NULL DEFAULT 'pending',
			retry_count    INT NOT NULL DEFAULT 0,
			last_error     TEXT,
			relay_id       TEXT,
			lease_until    TIMESTAMPTZ,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("create outbox: %w", err)
	}
	_, err = pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS outbox_pending_idx ON outbox (status, created_at)
	`)
	if err != nil {
		return fmt.Errorf("index outbox: %w", err)
	}
	return nil
}
