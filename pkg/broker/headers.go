package broker

import (
	"strconv"

	"github.com/segmentio/kafka-go"
)

const (
	HeaderRetryCount  = "retry_count"
	HeaderEventType   = "event_type"
	HeaderTraceparent = "traceparent"
)

func Header(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// RetryCount reads the retry_count header; absent or unparsable means 0
// (first delivery).
func RetryCount(headers []kafka.Header) int {
	v := Header(headers, HeaderRetryCount)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// WithRetryCount returns headers with retry_count set to n, replacing any
// existing value.
func WithRetryCount(headers []kafka.Header, n int) []kafka.Header {
	out := make([]kafka.Header, 0, len(headers)+1)
	for _, h := range headers {
		if h.Key != HeaderRetryCount {
			out = append(out, h)
		}
	}
	return append(out, kafka.Header{Key: HeaderRetryCount, Value: []byte(strconv.Itoa(n))})
}
