package cmd

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventBus(t *testing.T) {
	bus, err := NewEventBus(EventBusGoChannel, nil, slog.Default())
	require.NoError(t, err)
	assert.NotNil(t, bus)
	require.NoError(t, bus.Close())

	_, err = NewEventBus(EventBusKafka, nil, slog.Default())
	require.Error(t, err)

	_, err = NewEventBus("nats", nil, slog.Default())
	require.ErrorContains(t, err, "unsupported event bus provider")
}
