package application

import (
	"context"
	"errors"

	"github.com/dmehra2102/bookingflow/internal/payment/domain"
	"github.com/dmehra2102/bookingflow/pkg/outbox"
)

type PaymentRepository interface {
	// SaveWithOutbox persists the payment and its outbox entry in one atomic
	// transaction.
	SaveWithOutbox(ctx context.Context, p domain.Payment, e outbox.Entry) error
}

// ErrDeclined is a business outcome, not a failure: the charge was refused
// and the saga proceeds down the payment.failed branch.
var ErrDeclined = errors.New("charge declined")

// Gateway is the injectable payment side effect. A transport error from
// Charge is retryable; ErrDeclined is final.
type Gateway interface {
	Charge(ctx context.Context, bookingID string, amountCents int64) error
}
