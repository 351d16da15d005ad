package outbox

import (
	"context"
	"log/slog"

	"github.com/dmehra2102/bookingflow/pkg/broker"
	"github.com/dmehra2102/bookingflow/pkg/event"
	"github.com/segmentio/kafka-go"
)

// Publisher is the broker capability the dispatcher needs.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, key, value []byte, headers []kafka.Header) error
}

// Dispatcher turns an outbox entry into an event envelope and publishes it.
// The entry's event type is the routing key and its id the event_id.
type Dispatcher struct {
	log *slog.Logger
	pub Publisher
}

func NewDispatcher(log *slog.Logger, pub Publisher) *Dispatcher {
	return &Dispatcher{log: log, pub: pub}
}

func (d *Dispatcher) Dispatch(ctx context.Context, e Entry) error {
	env := event.Envelope{
		EventType:  e.EventType,
		EventID:    e.ID,
		OccurredAt: e.CreatedAt,
		Payload:    e.Payload,
	}
	value, err := env.Encode()
	if err != nil {
		return err
	}

	headers := make([]kafka.Header, 0, len(e.Headers)+2)
	for k, v := range e.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	headers = append(headers, kafka.Header{Key: broker.HeaderEventType, Value: []byte(e.EventType)})
	if e.Traceparent != "" {
		headers = append(headers, kafka.Header{Key: broker.HeaderTraceparent, Value: []byte(e.Traceparent)})
	}

	if err := d.pub.Publish(ctx, e.EventType, []byte(e.AggregateID), value, headers); err != nil {
		d.log.Error("outbox dispatch failed", "event_id", e.ID, "type", e.EventType, "err", err)
		return err
	}
	d.log.Info("outbox dispatched", "event_id", e.ID, "type", e.EventType)
	return nil
}
