package broker

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestTopicFor(t *testing.T) {
	assert.Equal(t, "booking.events", TopicFor("booking.created"))
	assert.Equal(t, "booking.events", TopicFor("booking.cancelled"))
	assert.Equal(t, "payment.events", TopicFor("payment.failed"))
}

func TestRetryCount(t *testing.T) {
	tests := []struct {
		name    string
		headers []kafka.Header
		want    int
	}{
		{"absent means first delivery", nil, 0},
		{"present", []kafka.Header{{Key: HeaderRetryCount, Value: []byte("2")}}, 2},
		{"unparsable", []kafka.Header{{Key: HeaderRetryCount, Value: []byte("lots")}}, 0},
		{"negative", []kafka.Header{{Key: HeaderRetryCount, Value: []byte("-1")}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RetryCount(tt.headers))
		})
	}
}

func TestWithRetryCount(t *testing.T) {
	headers := []kafka.Header{
		{Key: HeaderEventType, Value: []byte("booking.created")},
		{Key: HeaderRetryCount, Value: []byte("1")},
	}

	out := WithRetryCount(headers, 2)

	assert.Equal(t, 2, RetryCount(out))
	assert.Equal(t, "booking.created", Header(out, HeaderEventType))

	// Original slice is untouched.
	assert.Equal(t, 1, RetryCount(headers))
}
