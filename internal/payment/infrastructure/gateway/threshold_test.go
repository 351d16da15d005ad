package gateway

import (
	"context"
	"log/slog"
	"testing"

	"github.com/dmehra2102/bookingflow/internal/payment/application"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholdGateway(t *testing.T) {
	g := NewThresholdGateway(slog.New(slog.DiscardHandler), 10_000)

	require.NoError(t, g.Charge(context.Background(), "b-1", 9_999))
	require.NoError(t, g.Charge(context.Background(), "b-1", 10_000))

	err := g.Charge(context.Background(), "b-1", 10_001)
	assert.ErrorIs(t, err, application.ErrDeclined)
}
