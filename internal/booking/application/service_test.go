package application

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/dmehra2102/bookingflow/internal/booking/domain"
	"github.com/dmehra2102/bookingflow/pkg/consumer"
	"github.com/dmehra2102/bookingflow/pkg/event"
	"github.com/dmehra2102/bookingflow/pkg/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryRepo mirrors the postgres repository contract in memory: create and
// transition append the outbox entry only when the row actually changes.
type memoryRepo struct {
	bookings map[string]domain.Booking
	entries  []outbox.Entry
	err      error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{bookings: map[string]domain.Booking{}}
}

func (r *memoryRepo) CreateWithOutbox(_ context.Context, b domain.Booking, e outbox.Entry) error {
	if r.err != nil {
		return r.err
	}
	r.bookings[b.ID] = b
	r.entries = append(r.entries, e)
	return nil
}

func (r *memoryRepo) Get(_ context.Context, id string) (domain.Booking, error) {
	b, ok := r.bookings[id]
	if !ok {
		return domain.Booking{}, domain.ErrNotFound
	}
	return b, nil
}

func (r *memoryRepo) TransitionWithOutbox(_ context.Context, id string, to domain.Status, e outbox.Entry) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	b, ok := r.bookings[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if err := b.TransitionTo(to); err != nil {
		if errors.Is(err, domain.ErrAlreadyFinal) {
			return false, nil
		}
		return false, err
	}
	r.bookings[id] = b
	r.entries = append(r.entries, e)
	return true, nil
}

func newTestService(repo BookingRepository) *Service {
	return NewService(slog.New(slog.DiscardHandler), repo)
}

func TestCreateBookingWritesOutboxEntry(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	b, err := svc.CreateBooking(context.Background(), "alice", 4200)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, b.Status)

	require.Len(t, repo.entries, 1)
	entry := repo.entries[0]
	assert.Equal(t, domain.EventBookingCreated, entry.EventType)
	assert.Equal(t, "booking", entry.AggregateType)
	assert.Equal(t, b.ID, entry.AggregateID)
	assert.Equal(t, outbox.StatusPending, entry.Status)

	var e domain.BookingCreated
	require.NoError(t, json.Unmarshal(entry.Payload, &e))
	assert.Equal(t, b.ID, e.BookingID)
	assert.Equal(t, "alice", e.Customer)
	assert.Equal(t, int64(4200), e.AmountCents)
}

func TestCreateBookingValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	_, err := svc.CreateBooking(context.Background(), "", 100)
	require.Error(t, err)
	_, err = svc.CreateBooking(context.Background(), "alice", 0)
	require.Error(t, err)
	assert.Empty(t, repo.entries, "invalid input must not reach the outbox")
}

func TestConfirmFromPayment(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	b, err := svc.CreateBooking(context.Background(), "alice", 4200)
	require.NoError(t, err)

	require.NoError(t, svc.ConfirmFromPayment(context.Background(), b.ID))

	got, err := svc.GetBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, got.Status)

	require.Len(t, repo.entries, 2)
	assert.Equal(t, domain.EventBookingConfirmed, repo.entries[1].EventType)
}

func TestCancelFromPayment(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	b, err := svc.CreateBooking(context.Background(), "alice", 4200)
	require.NoError(t, err)

	require.NoError(t, svc.CancelFromPayment(context.Background(), b.ID, "card declined"))

	got, err := svc.GetBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)

	require.Len(t, repo.entries, 2)
	entry := repo.entries[1]
	assert.Equal(t, domain.EventBookingCancelled, entry.EventType)

	var e domain.BookingCancelled
	require.NoError(t, json.Unmarshal(entry.Payload, &e))
	assert.Equal(t, "card declined", e.Reason)
}

func TestConfirmAfterTerminalIsNoOp(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	b, err := svc.CreateBooking(context.Background(), "alice", 4200)
	require.NoError(t, err)
	require.NoError(t, svc.CancelFromPayment(context.Background(), b.ID, "card declined"))

	// Redelivered payment.completed after the booking already cancelled.
	require.NoError(t, svc.ConfirmFromPayment(context.Background(), b.ID))

	got, err := svc.GetBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status, "terminal state must not move")
	assert.Len(t, repo.entries, 2, "a no-op transition must not emit")
}

func TestPaymentEventHandler(t *testing.T) {
	envelope := func(eventType, payload string) event.Envelope {
		return event.Envelope{EventType: eventType, EventID: "ev-1", Payload: []byte(payload)}
	}

	t.Run("payment completed confirms", func(t *testing.T) {
		repo := newMemoryRepo()
		svc := newTestService(repo)
		b, err := svc.CreateBooking(context.Background(), "alice", 4200)
		require.NoError(t, err)
		h := NewPaymentEventHandler(svc)

		err = h.Handle(context.Background(), envelope("payment.completed", `{"booking_id":"`+b.ID+`","amount_cents":4200}`))
		require.NoError(t, err)

		got, _ := svc.GetBooking(context.Background(), b.ID)
		assert.Equal(t, domain.StatusConfirmed, got.Status)
	})

	t.Run("payment failed cancels", func(t *testing.T) {
		repo := newMemoryRepo()
		svc := newTestService(repo)
		b, err := svc.CreateBooking(context.Background(), "alice", 4200)
		require.NoError(t, err)
		h := NewPaymentEventHandler(svc)

		err = h.Handle(context.Background(), envelope("payment.failed", `{"booking_id":"`+b.ID+`","reason":"card declined"}`))
		require.NoError(t, err)

		got, _ := svc.GetBooking(context.Background(), b.ID)
		assert.Equal(t, domain.StatusCancelled, got.Status)
	})

	t.Run("unknown event type ignored", func(t *testing.T) {
		h := NewPaymentEventHandler(newTestService(newMemoryRepo()))
		err := h.Handle(context.Background(), envelope("payment.refunded", `{}`))
		require.NoError(t, err)
	})

	t.Run("bad payload is permanent", func(t *testing.T) {
		h := NewPaymentEventHandler(newTestService(newMemoryRepo()))
		err := h.Handle(context.Background(), envelope("payment.completed", `not json`))
		require.ErrorIs(t, err, consumer.ErrPermanent)

		err = h.Handle(context.Background(), envelope("payment.completed", `{}`))
		require.ErrorIs(t, err, consumer.ErrPermanent)
	})
}
