package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmehra2102/bookingflow/internal/payment/application"
)

// ThresholdGateway declines any charge above a fixed limit. It stands in for
// a real payment provider while keeping outcomes deterministic, so the saga's
// failure branch can be driven on purpose.
type ThresholdGateway struct {
	log        *slog.Logger
	limitCents int64
}

func NewThresholdGateway(log *slog.Logger, limitCents int64) *ThresholdGateway {
	return &ThresholdGateway{log: log, limitCents: limitCents}
}

func (g *ThresholdGateway) Charge(ctx context.Context, bookingID string, amountCents int64) error {
	if amountCents > g.limitCents {
		g.log.Info("charge declined", "booking_id", bookingID, "amount_cents", amountCents, "limit_cents", g.limitCents)
		return fmt.Errorf("%w: amount %d over limit %d", application.ErrDeclined, amountCents, g.limitCents)
	}
	g.log.Info("charge accepted", "booking_id", bookingID, "amount_cents", amountCents)
	return nil
}
