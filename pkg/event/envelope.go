package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Envelope is the wire representation of a domain event. EventID doubles as
// the idempotency key: it equals the outbox entry id and is stable across
// redeliveries of the same logical event.
type Envelope struct {
	EventType  string          `json:"event_type"`
	EventID    string          `json:"event_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// ErrMalformed marks a message that cannot succeed on retry.
var ErrMalformed = errors.New("malformed envelope")

func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.EventID == "" {
		return Envelope{}, fmt.Errorf("%w: missing event_id", ErrMalformed)
	}
	if env.EventType == "" {
		return Envelope{}, fmt.Errorf("%w: missing event_type", ErrMalformed)
	}
	return env, nil
}

func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}
