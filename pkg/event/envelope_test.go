package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	env := Envelope{
		EventType:  "booking.created",
		EventID:    "6f1c5a50-3c3f-4f1d-9d1a-2b8a4c9e0001",
		OccurredAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Payload:    []byte(`{"booking_id":"b-1"}`),
	}

	data, err := env.Encode()
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, env.EventType, got.EventType)
	assert.Equal(t, env.EventID, got.EventID)
	assert.True(t, env.OccurredAt.Equal(got.OccurredAt))
	assert.JSONEq(t, string(env.Payload), string(got.Payload))
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{{{`},
		{"missing event_id", `{"event_type":"booking.created","payload":{}}`},
		{"missing event_type", `{"event_id":"abc","payload":{}}`},
		{"empty object", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			require.ErrorIs(t, err, ErrMalformed)
		})
	}
}
