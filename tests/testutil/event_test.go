package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEventHandler(t *testing.T) {
	ctx := context.Background()
	handler := NewMockEventHandler("StockLevelChanged")
	assert.Equal(t, []string{"StockLevelChanged"}, handler.EventTypes())

	changed := NewTestEvent("StockLevelChanged")
	created := NewTestEvent("ProductCreated")
	require.NoError(t, handler.Handle(ctx, changed))
	require.NoError(t, handler.Handle(ctx, created))

	assert.Equal(t, 2, handler.HandledCount())
	assert.Equal(t, changed, handler.Handled()[0])
	require.Len(t, handler.OfType("ProductCreated"), 1)
	assert.Equal(t, created.EventID(), handler.OfType("ProductCreated")[0].EventID())

	handler.SetError(assert.AnError)
	assert.ErrorIs(t, handler.Handle(ctx, changed), assert.AnError)

	handler.Reset()
	assert.Zero(t, handler.HandledCount())
	assert.NoError(t, handler.Handle(ctx, changed))
}

func TestNewTestEvent(t *testing.T) {
	event := NewTestEvent("StockLevelChanged")

	assert.NotEqual(t, uuid.Nil, event.EventID())
	assert.NotEqual(t, uuid.Nil, event.AggregateID())
	assert.Equal(t, "StockLevelChanged", event.EventType())
	assert.Equal(t, "TestAggregate", event.AggregateType())
	assert.False(t, event.OccurredAt().IsZero())
}
