package application

import (
	"context"

	"github.com/dmehra2102/bookingflow/internal/booking/domain"
	"github.com/dmehra2102/bookingflow/pkg/outbox"
)

type BookingRepository interface {
	// CreateWithOutbox persists the booking and its outbox entry in one
	// atomic transaction.
	CreateWithOutbox(ctx context.Context, b domain.Booking, e outbox.Entry) error
	Get(ctx context.Context, id string) (domain.Booking, error)
	// TransitionWithOutbox moves a PENDING booking to a terminal status and
	// appends the outbox entry atomically. It returns false without error
	// when the booking is already terminal (redelivery no-op), and
	// domain.ErrNotFound when the booking does not exist.
	TransitionWithOutbox(ctx context.Context, id string, to domain.Status, e outbox.Entry) (bool, error)
}
