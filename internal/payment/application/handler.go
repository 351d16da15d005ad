package application

import (
	"context"
	"encoding/json"
	"fmt"

	bookingdomain "github.com/dmehra2102/bookingflow/internal/booking/domain"
	"github.com/dmehra2102/bookingflow/pkg/consumer"
	"github.com/dmehra2102/bookingflow/pkg/event"
)

// BookingEventHandler is the payment saga participant: it reacts to
// booking.created and ignores everything else on the booking stream.
type BookingEventHandler struct {
	svc *Service
}

func NewBookingEventHandler(svc *Service) *BookingEventHandler {
	return &BookingEventHandler{svc: svc}
}

func (h *BookingEventHandler) Handle(ctx context.Context, env event.Envelope) error {
	if env.EventType != bookingdomain.EventBookingCreated {
		return nil
	}

	var e bookingdomain.BookingCreated
	if err := json.Unmarshal(env.Payload, &e); err != nil {
		return fmt.Errorf("%w: decode booking.created: %v", consumer.ErrPermanent, err)
	}
	if e.BookingID == "" {
		return fmt.Errorf("%w: booking.created without booking_id", consumer.ErrPermanent)
	}

	return h.svc.Process(ctx, e.BookingID, e.AmountCents)
}
