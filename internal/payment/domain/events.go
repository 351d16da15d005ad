package domain

const (
	EventPaymentCompleted = "payment.completed"
	EventPaymentFailed    = "payment.failed"
)

type PaymentCompleted struct {
	BookingID   string `json:"booking_id"`
	AmountCents int64  `json:"amount_cents"`
}

type PaymentFailed struct {
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason"`
}
