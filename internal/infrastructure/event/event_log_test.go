package event

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEventLogHandler(t *testing.T) {
	var buf bytes.Buffer
	bus := NewInMemoryEventBus(zap.NewNop())
	bus.Subscribe(NewEventLogHandler(&buf))

	first := newTestEvent("StockLevelChanged")
	second := newTestEvent("ProductCreated")
	require.NoError(t, bus.Publish(context.Background(), first, second))

	var lines []Envelope
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var env Envelope
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &env))
		lines = append(lines, env)
	}
	require.Len(t, lines, 2)

	assert.Equal(t, first.EventID().String(), lines[0].ID)
	assert.Equal(t, "StockLevelChanged", lines[0].Type)
	assert.Equal(t, "ProductVariant", lines[0].AggregateType)
	assert.Equal(t, first.AggregateID().String(), lines[0].AggregateID)
	assert.Equal(t, "ProductCreated", lines[1].Type)

	var payload struct {
		SKU string `json:"sku"`
	}
	require.NoError(t, json.Unmarshal(lines[0].Payload, &payload))
	assert.Equal(t, "GR-7G-0001", payload.SKU)
}
