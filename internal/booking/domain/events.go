package domain

// Routing keys for booking events. The key doubles as the envelope
// event_type on the wire.
const (
	EventBookingCreated   = "booking.created"
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCancelled = "booking.cancelled"
)

type BookingCreated struct {
	BookingID   string `json:"booking_id"`
	Customer    string `json:"customer"`
	AmountCents int64  `json:"amount_cents"`
}

type BookingConfirmed struct {
	BookingID string `json:"booking_id"`
}

type BookingCancelled struct {
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason,omitempty"`
}
