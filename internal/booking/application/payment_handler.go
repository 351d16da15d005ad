package application

import (
	"context"
	"encoding/json"
	"fmt"

	paymentdomain "github.com/dmehra2102/bookingflow/internal/payment/domain"
	"github.com/dmehra2102/bookingflow/pkg/consumer"
	"github.com/dmehra2102/bookingflow/pkg/event"
)

// PaymentEventHandler hosts the confirmation and cancellation saga steps:
// payment.completed confirms the booking, payment.failed cancels it. Both
// transitions emit the next booking event through the outbox inside the
// handler transaction.
type PaymentEventHandler struct {
	svc *Service
}

func NewPaymentEventHandler(svc *Service) *PaymentEventHandler {
	return &PaymentEventHandler{svc: svc}
}

func (h *PaymentEventHandler) Handle(ctx context.Context, env event.Envelope) error {
	switch env.EventType {
	case paymentdomain.EventPaymentCompleted:
		var e paymentdomain.PaymentCompleted
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return fmt.Errorf("%w: decode payment.completed: %v", consumer.ErrPermanent, err)
		}
		if e.BookingID == "" {
			return fmt.Errorf("%w: payment.completed without booking_id", consumer.ErrPermanent)
		}
		return h.svc.ConfirmFromPayment(ctx, e.BookingID)

	case paymentdomain.EventPaymentFailed:
		var e paymentdomain.PaymentFailed
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return fmt.Errorf("%w: decode payment.failed: %v", consumer.ErrPermanent, err)
		}
		if e.BookingID == "" {
			return fmt.Errorf("%w: payment.failed without booking_id", consumer.ErrPermanent)
		}
		return h.svc.CancelFromPayment(ctx, e.BookingID, e.Reason)

	default:
		return nil
	}
}
