package broker

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// Subscriber wraps a consumer-group reader. One group reads its main topic
// plus its service retry topic; commit-after-decide gives ack semantics and
// an uncommitted message is redelivered by the broker.
type Subscriber struct {
	reader *kafka.Reader
}

func NewSubscriber(brokers []string, group string, topics ...string) *Subscriber {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     group,
		GroupTopics: topics,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
	})
	return &Subscriber{reader: r}
}

func (s *Subscriber) Fetch(ctx context.Context) (kafka.Message, error) {
	return s.reader.FetchMessage(ctx)
}

func (s *Subscriber) Commit(ctx context.Context, msgs ...kafka.Message) error {
	return s.reader.CommitMessages(ctx, msgs...)
}

func (s *Subscriber) Close() error {
	return s.reader.Close()
}
