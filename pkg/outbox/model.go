package outbox

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
)

// Entry is a durable record of "this event must eventually be published".
// It is inserted in the same transaction as the domain mutation it describes
// and never deleted; the relay flips it to sent.
type Entry struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Headers       map[string]string
	Traceparent   string
	Status        Status
	RetryCount    int
	LastError     *string
	CreatedAt     time.Time
}

// NewEntry builds a pending entry with a fresh id. The id becomes the
// event_id on the wire, so it is generated here, once, and survives
// redeliveries unchanged.
func NewEntry(aggregateType, aggregateID, eventType string, payload []byte) Entry {
	return Entry{
		ID:            uuid.NewString(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		Status:        StatusPending,
		CreatedAt:     time.Now().UTC(),
	}
}
