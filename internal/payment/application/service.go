package application

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/dmehra2102/bookingflow/internal/payment/domain"
	"github.com/dmehra2102/bookingflow/pkg/outbox"
	"github.com/dmehra2102/bookingflow/pkg/tracing"
)

const aggregateType = "payment"

// Service is the payment saga step: charge the booking, then persist the
// outcome and the next event atomically through the outbox.
type Service struct {
	log     *slog.Logger
	repo    PaymentRepository
	gateway Gateway
}

func NewService(log *slog.Logger, repo PaymentRepository, gateway Gateway) *Service {
	return &Service{log: log, repo: repo, gateway: gateway}
}

// Process charges one booking. A gateway transport error is returned as-is
// so the consumer runtime retries the delivery; a decline emits
// payment.failed and succeeds.
func (s *Service) Process(ctx context.Context, bookingID string, amountCents int64) error {
	now := time.Now().UTC()
	p := domain.Payment{
		BookingID:   bookingID,
		AmountCents: amountCents,
		Status:      domain.StatusCompleted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var (
		eventType string
		payload   []byte
		err       error
	)

	chargeErr := s.gateway.Charge(ctx, bookingID, amountCents)
	switch {
	case chargeErr == nil:
		eventType = domain.EventPaymentCompleted
		payload, err = json.Marshal(domain.PaymentCompleted{BookingID: bookingID, AmountCents: amountCents})
	case errors.Is(chargeErr, ErrDeclined):
		p.Status = domain.StatusFailed
		p.Reason = chargeErr.Error()
		eventType = domain.EventPaymentFailed
		payload, err = json.Marshal(domain.PaymentFailed{BookingID: bookingID, Reason: chargeErr.Error()})
	default:
		return chargeErr
	}
	if err != nil {
		return err
	}

	entry := outbox.NewEntry(aggregateType, bookingID, eventType, payload)
	entry.Traceparent = tracing.Traceparent(ctx)

	if err := s.repo.SaveWithOutbox(ctx, p, entry); err != nil {
		return err
	}
	s.log.Info("payment processed", "booking_id", bookingID, "status", p.Status)
	return nil
}
