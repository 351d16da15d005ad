package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether no further transition may leave this status.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusCancelled
}

var (
	ErrNotFound = errors.New("booking not found")
	// ErrAlreadyFinal rejects a mutation of a booking that reached a
	// terminal state.
	ErrAlreadyFinal = errors.New("booking already in a terminal state")
)

type Booking struct {
	ID          string
	Customer    string
	AmountCents int64
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewBooking(customer string, amountCents int64) (Booking, error) {
	if customer == "" {
		return Booking{}, fmt.Errorf("customer is required")
	}
	if amountCents <= 0 {
		return Booking{}, fmt.Errorf("amount must be positive, got %d", amountCents)
	}
	now := time.Now().UTC()
	return Booking{
		ID:          uuid.NewString(),
		Customer:    customer,
		AmountCents: amountCents,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// CanTransition encodes the saga state machine: only PENDING moves, and only
// to a terminal state.
func (b Booking) CanTransition(to Status) bool {
	return b.Status == StatusPending && to.Terminal()
}

// TransitionTo moves the booking to a terminal status. ErrAlreadyFinal on a
// booking that already settled; callers treat that as a redelivery no-op.
func (b *Booking) TransitionTo(to Status) error {
	if b.Status.Terminal() {
		return ErrAlreadyFinal
	}
	if !b.CanTransition(to) {
		return fmt.Errorf("illegal transition %s -> %s", b.Status, to)
	}
	b.Status = to
	b.UpdatedAt = time.Now().UTC()
	return nil
}
