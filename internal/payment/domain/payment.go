package domain

import "time"

type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Payment records the outcome of charging one booking. One row per booking;
// a redelivered booking.created never reaches this row because the consumer
// ledger suppresses it first.
type Payment struct {
	BookingID   string
	AmountCents int64
	Status      Status
	Reason      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
