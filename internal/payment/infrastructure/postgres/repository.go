package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmehra2102/bookingflow/internal/payment/domain"
	"github.com/dmehra2102/bookingflow/pkg/idempotency"
	"github.com/dmehra2102/bookingflow/pkg/outbox"
	"github.com/dmehra2102/bookingflow/pkg/pgtx"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	log    *slog.Logger
	pool   *pgxpool.Pool
	outbox *outbox.PGStore
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool, store *outbox.PGStore) *Repository {
	return &Repository{log: log, pool: pool, outbox: store}
}

func (r *Repository) SaveWithOutbox(ctx context.Context, p domain.Payment, e outbox.Entry) error {
	return pgtx.WithinTx(ctx, r.pool, func(txCtx context.Context) error {
		ex := pgtx.From(txCtx, r.pool)
		_, err := ex.Exec(txCtx, `
			INSERT INTO payments (booking_id, amount_cents, status, reason, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (booking_id) DO UPDATE
			SET amount_cents = $2, status = $3, reason = $4, updated_at = $6
		`, p.BookingID, p.AmountCents, string(p.Status), p.Reason, p.CreatedAt, p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("upsert payment: %w", err)
		}
		return r.outbox.Insert(txCtx, e)
	})
}

// Migrate bootstraps the payment service schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS payments (
			booking_id   TEXT PRIMARY KEY,
			amount_cents BIGINT NOT NULL,
			status       TEXT NOT NULL,
			reason       TEXT NOT NULL DEFAULT '',
			created_at   TIMESTAMPTZ NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create payments: %w", err)
	}
	if err := outbox.Migrate(ctx, pool); err != nil {
		return err
	}
	return idempotency.Migrate(ctx, pool)
}
