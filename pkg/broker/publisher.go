package broker

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Publisher is the single publish capability handed to the relay and the
// consumer runtime. Routing keys are event types ("booking.created",
// "payment.failed"); the segment before the first dot selects the topic, so
// every event of one domain lands on one topic and keeps per-aggregate order
// via the hash balancer on the message key.
type Publisher struct {
	log    *slog.Logger
	writer *kafka.Writer
}

func NewPublisher(log *slog.Logger, brokers []string) *Publisher {
	return &Publisher{
		log: log,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			WriteTimeout:           10 * time.Second,
			AllowAutoTopicCreation: true,
		},
	}
}

// TopicFor maps a routing key to its event topic: "booking.created" ->
// "booking.events".
func TopicFor(routingKey string) string {
	domain, _, _ := strings.Cut(routingKey, ".")
	return domain + ".events"
}

func (p *Publisher) Publish(ctx context.Context, routingKey string, key, value []byte, headers []kafka.Header) error {
	return p.PublishTo(ctx, TopicFor(routingKey), key, value, headers)
}

// PublishTo targets an explicit topic, used for retry and dead-letter
// destinations that are not derived from a routing key.
func (p *Publisher) PublishTo(ctx context.Context, topic string, key, value []byte, headers []kafka.Header) error {
	msg := kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Headers: headers,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("publish failed", "topic", topic, "err", err)
		return err
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
