package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmehra2102/bookingflow/internal/booking/domain"
	"github.com/dmehra2102/bookingflow/pkg/idempotency"
	"github.com/dmehra2102/bookingflow/pkg/outbox"
	"github.com/dmehra2102/bookingflow/pkg/pgtx"
	"github.com/jackc/pgx/v5"
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

func (r *Repository) CreateWithOutbox(ctx context.Context, b domain.Booking, e outbox.Entry) error {
	return pgtx.WithinTx(ctx, r.pool, func(txCtx context.Context) error {
		ex := pgtx.From(txCtx, r.pool)
		_, err := ex.Exec(txCtx, `
			INSERT INTO bookings (id, customer, amount_cents, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, b.ID, b.Customer, b.AmountCents, string(b.Status), b.CreatedAt, b.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		return r.outbox.Insert(txCtx, e)
	})
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Booking, error) {
	var b domain.Booking
	err := pgtx.From(ctx, r.pool).QueryRow(ctx, `
		SELECT id, customer, amount_cents, status, created_at, updated_at
		FROM bookings WHERE id = $1
	`, id).Scan(&b.ID, &b.Customer, &b.AmountCents, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Booking{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Booking{}, fmt.Errorf("select booking: %w", err)
	}
	return b, nil
}

// TransitionWithOutbox performs the guarded saga transition. The row is read
// under FOR UPDATE and the state machine decides: a redelivered or late
// payment event against a terminal booking updates nothing and no outbox
// entry is written.
func (r *Repository) TransitionWithOutbox(ctx context.Context, id string, to domain.Status, e outbox.Entry) (bool, error) {
	transitioned := false
	err := pgtx.WithinTx(ctx, r.pool, func(txCtx context.Context) error {
		ex := pgtx.From(txCtx, r.pool)
		var b domain.Booking
		err := ex.QueryRow(txCtx, `
			SELECT id, customer, amount_cents, status, created_at, updated_at
			FROM bookings WHERE id = $1
			FOR UPDATE
		`, id).Scan(&b.ID, &b.Customer, &b.AmountCents, &b.Status, &b.CreatedAt, &b.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock booking: %w", err)
		}

		if err := b.TransitionTo(to); err != nil {
			if errors.Is(err, domain.ErrAlreadyFinal) {
				// Already terminal: ack cleanly, emit nothing.
				return nil
			}
			return err
		}

		_, err = ex.Exec(txCtx, `
			UPDATE bookings SET status = $2, updated_at = $3 WHERE id = $1
		`, id, string(b.Status), b.UpdatedAt)
		if err != nil {
			return fmt.Errorf("transition booking: %w", err)
		}
		transitioned = true
		return r.outbox.Insert(txCtx, e)
	})
	if err != nil {
		return false, err
	}
	return transitioned, nil
}

// Migrate bootstraps the booking service schema: the aggregate table, the
// outbox and the consumer ledger.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS bookings (
			id           UUID PRIMARY KEY,
			customer     TEXT NOT NULL,
			amount_cents BIGINT NOT NULL,
			status       TEXT NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create bookings: %w", err)
	}
	if err := outbox.Migrate(ctx, pool); err != nil {
		return err
	}
	return idempotency.Migrate(ctx, pool)
}
