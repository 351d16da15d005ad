package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/dmehra2102/bookingflow/internal/payment/domain"
	"github.com/dmehra2102/bookingflow/pkg/consumer"
	"github.com/dmehra2102/bookingflow/pkg/event"
	"github.com/dmehra2102/bookingflow/pkg/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	payments []domain.Payment
	entries  []outbox.Entry
	err      error
}

func (r *memoryRepo) SaveWithOutbox(_ context.Context, p domain.Payment, e outbox.Entry) error {
	if r.err != nil {
		return r.err
	}
	r.payments = append(r.payments, p)
	r.entries = append(r.entries, e)
	return nil
}

type gatewayFunc func(ctx context.Context, bookingID string, amountCents int64) error

func (f gatewayFunc) Charge(ctx context.Context, bookingID string, amountCents int64) error {
	return f(ctx, bookingID, amountCents)
}

func newTestService(repo PaymentRepository, g Gateway) *Service {
	return NewService(slog.New(slog.DiscardHandler), repo, g)
}

func TestProcessChargeSucceeds(t *testing.T) {
	repo := &memoryRepo{}
	svc := newTestService(repo, gatewayFunc(func(context.Context, string, int64) error { return nil }))

	require.NoError(t, svc.Process(context.Background(), "b-1", 4200))

	require.Len(t, repo.payments, 1)
	assert.Equal(t, domain.StatusCompleted, repo.payments[0].Status)

	require.Len(t, repo.entries, 1)
	entry := repo.entries[0]
	assert.Equal(t, domain.EventPaymentCompleted, entry.EventType)
	assert.Equal(t, "payment", entry.AggregateType)
	assert.Equal(t, "b-1", entry.AggregateID)

	var e domain.PaymentCompleted
	require.NoError(t, json.Unmarshal(entry.Payload, &e))
	assert.Equal(t, "b-1", e.BookingID)
	assert.Equal(t, int64(4200), e.AmountCents)
}

func TestProcessChargeDeclined(t *testing.T) {
	// A decline is a business outcome, not a processing failure: the handler
	// succeeds and payment.failed carries the saga forward.
	repo := &memoryRepo{}
	svc := newTestService(repo, gatewayFunc(func(context.Context, string, int64) error {
		return fmt.Errorf("amount over limit: %w", ErrDeclined)
	}))
	require.NoError(t, svc.Process(context.Background(), "b-1", 9_999_999))

	require.Len(t, repo.payments, 1)
	assert.Equal(t, domain.StatusFailed, repo.payments[0].Status)

	require.Len(t, repo.entries, 1)
	assert.Equal(t, domain.EventPaymentFailed, repo.entries[0].EventType)

	var e domain.PaymentFailed
	require.NoError(t, json.Unmarshal(repo.entries[0].Payload, &e))
	assert.Equal(t, "b-1", e.BookingID)
	assert.NotEmpty(t, e.Reason)
}

func TestProcessGatewayTransportError(t *testing.T) {
	// A transport error is retryable: nothing persists and the error
	// propagates so the runtime republishes the delivery.
	repo := &memoryRepo{}
	transport := errors.New("gateway timeout")
	svc := newTestService(repo, gatewayFunc(func(context.Context, string, int64) error { return transport }))

	err := svc.Process(context.Background(), "b-1", 4200)
	require.ErrorIs(t, err, transport)
	assert.Empty(t, repo.payments)
	assert.Empty(t, repo.entries)
}

func TestBookingEventHandler(t *testing.T) {
	envelope := func(eventType, payload string) event.Envelope {
		return event.Envelope{EventType: eventType, EventID: "ev-1", Payload: []byte(payload)}
	}

	t.Run("booking created is processed", func(t *testing.T) {
		repo := &memoryRepo{}
		svc := newTestService(repo, gatewayFunc(func(context.Context, string, int64) error { return nil }))
		h := NewBookingEventHandler(svc)

		err := h.Handle(context.Background(), envelope("booking.created", `{"booking_id":"b-1","customer":"alice","amount_cents":4200}`))
		require.NoError(t, err)
		require.Len(t, repo.payments, 1)
		assert.Equal(t, "b-1", repo.payments[0].BookingID)
	})

	t.Run("other booking events ignored", func(t *testing.T) {
		repo := &memoryRepo{}
		svc := newTestService(repo, gatewayFunc(func(context.Context, string, int64) error { return nil }))
		h := NewBookingEventHandler(svc)

		require.NoError(t, h.Handle(context.Background(), envelope("booking.confirmed", `{"booking_id":"b-1"}`)))
		assert.Empty(t, repo.payments)
	})

	t.Run("bad payload is permanent", func(t *testing.T) {
		h := NewBookingEventHandler(newTestService(&memoryRepo{}, gatewayFunc(func(context.Context, string, int64) error { return nil })))

		err := h.Handle(context.Background(), envelope("booking.created", `not json`))
		require.ErrorIs(t, err, consumer.ErrPermanent)

		err = h.Handle(context.Background(), envelope("booking.created", `{"customer":"alice"}`))
		require.ErrorIs(t, err, consumer.ErrPermanent)
	})
}
