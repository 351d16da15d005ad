package application

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/dmehra2102/bookingflow/internal/booking/domain"
	"github.com/dmehra2102/bookingflow/pkg/outbox"
	"github.com/dmehra2102/bookingflow/pkg/tracing"
)

const aggregateType = "booking"

// Service owns the booking aggregate. Every emission goes through the
// outbox: no code path here publishes to the broker directly.
type Service struct {
	log  *slog.Logger
	repo BookingRepository
}

func NewService(log *slog.Logger, repo BookingRepository) *Service {
	return &Service{log: log, repo: repo}
}

// CreateBooking starts the saga: the booking row and the booking.created
// outbox entry commit together or not at all.
func (s *Service) CreateBooking(ctx context.Context, customer string, amountCents int64) (domain.Booking, error) {
	b, err := domain.NewBooking(customer, amountCents)
	if err != nil {
		return domain.Booking{}, err
	}

	payload, err := json.Marshal(domain.BookingCreated{
		BookingID:   b.ID,
		Customer:    b.Customer,
		AmountCents: b.AmountCents,
	})
	if err != nil {
		return domain.Booking{}, err
	}

	entry := outbox.NewEntry(aggregateType, b.ID, domain.EventBookingCreated, payload)
	entry.Traceparent = tracing.Traceparent(ctx)

	if err := s.repo.CreateWithOutbox(ctx, b, entry); err != nil {
		return domain.Booking{}, err
	}
	s.log.Info("booking created", "booking_id", b.ID, "amount_cents", b.AmountCents)
	return b, nil
}

func (s *Service) GetBooking(ctx context.Context, id string) (domain.Booking, error) {
	return s.repo.Get(ctx, id)
}

// ConfirmFromPayment is the confirmation saga step: payment.completed moves
// the booking to CONFIRMED and emits booking.confirmed. Redelivery against a
// terminal booking is a silent no-op.
func (s *Service) ConfirmFromPayment(ctx context.Context, bookingID string) error {
	payload, err := json.Marshal(domain.BookingConfirmed{BookingID: bookingID})
	if err != nil {
		return err
	}
	entry := outbox.NewEntry(aggregateType, bookingID, domain.EventBookingConfirmed, payload)
	entry.Traceparent = tracing.Traceparent(ctx)

	transitioned, err := s.repo.TransitionWithOutbox(ctx, bookingID, domain.StatusConfirmed, entry)
	if err != nil {
		return err
	}
	if !transitioned {
		s.log.Info("booking already terminal, confirm skipped", "booking_id", bookingID)
		return nil
	}
	s.log.Info("booking confirmed", "booking_id", bookingID)
	return nil
}

// CancelFromPayment is the cancellation saga step for payment.failed.
func (s *Service) CancelFromPayment(ctx context.Context, bookingID, reason string) error {
	payload, err := json.Marshal(domain.BookingCancelled{BookingID: bookingID, Reason: reason})
	if err != nil {
		return err
	}
	entry := outbox.NewEntry(aggregateType, bookingID, domain.EventBookingCancelled, payload)
	entry.Traceparent = tracing.Traceparent(ctx)

	transitioned, err := s.repo.TransitionWithOutbox(ctx, bookingID, domain.StatusCancelled, entry)
	if err != nil {
		return err
	}
	if !transitioned {
		s.log.Info("booking already terminal, cancel skipped", "booking_id", bookingID)
		return nil
	}
	s.log.Info("booking cancelled", "booking_id", bookingID, "reason", reason)
	return nil
}
