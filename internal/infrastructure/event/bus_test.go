package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type testEvent struct {
	shared.BaseDomainEvent
	SKU string `json:"sku"`
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "ProductVariant", uuid.New()),
		SKU:             "GR-7G-0001",
	}
}

type testHandler struct {
	mu         sync.Mutex
	eventTypes []string
	handled    []shared.DomainEvent
	err        error
	panicWith  any
}

func newTestHandler(eventTypes ...string) *testHandler {
	return &testHandler{eventTypes: eventTypes}
}

func (h *testHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	if h.panicWith != nil {
		panic(h.panicWith)
	}
	return h.err
}

func (h *testHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *testHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("routes by event type", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		stock := newTestHandler("StockLevelChanged")
		product := newTestHandler("ProductCreated")
		bus.Subscribe(stock)
		bus.Subscribe(product)

		require.NoError(t, bus.Publish(ctx, newTestEvent("StockLevelChanged"), newTestEvent("StockLevelChanged")))

		assert.Equal(t, 2, stock.count())
		assert.Equal(t, 0, product.count())
	})

	t.Run("explicit types override the handler's own", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		h := newTestHandler("StockLevelChanged")
		bus.Subscribe(h, "ProductArchived")

		require.NoError(t, bus.Publish(ctx, newTestEvent("StockLevelChanged"), newTestEvent("ProductArchived")))
		assert.Equal(t, 1, h.count())
	})

	t.Run("wildcard handler sees everything", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		all := newTestHandler()
		bus.Subscribe(all)

		require.NoError(t, bus.Publish(ctx, newTestEvent("A"), newTestEvent("B")))
		assert.Equal(t, 2, all.count())
	})

	t.Run("failing handler does not stop the others", func(t *testing.T) {
		core, logs := observer.New(zap.ErrorLevel)
		bus := NewInMemoryEventBus(zap.New(core))

		failing := newTestHandler("StockLevelChanged")
		failing.err = errors.New("smtp down")
		panicking := newTestHandler("StockLevelChanged")
		panicking.panicWith = "nil map"
		ok := newTestHandler("StockLevelChanged")
		bus.Subscribe(failing)
		bus.Subscribe(panicking)
		bus.Subscribe(ok)

		require.NoError(t, bus.Publish(ctx, newTestEvent("StockLevelChanged")))

		assert.Equal(t, 1, ok.count())
		assert.Equal(t, int64(2), bus.Failures())
		assert.Equal(t, 2, logs.FilterMessage("handler failed to process event").Len())
	})
}

func TestInMemoryEventBus_Lifecycle(t *testing.T) {
	ctx := context.Background()
	bus := NewInMemoryEventBus(zap.NewNop())
	h := newTestHandler("StockLevelChanged")
	bus.Subscribe(h)

	require.NoError(t, bus.Publish(ctx, newTestEvent("StockLevelChanged")), "unstarted bus accepts events")

	require.NoError(t, bus.Start(ctx))
	require.NoError(t, bus.Publish(ctx, newTestEvent("StockLevelChanged")))
	require.NoError(t, bus.Stop(ctx))

	assert.Error(t, bus.Publish(ctx, newTestEvent("StockLevelChanged")))
	assert.Equal(t, 2, h.count())
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	ctx := context.Background()
	bus := NewInMemoryEventBus(zap.NewNop())
	h := newTestHandler("A", "B")
	bus.Subscribe(h)

	bus.Unsubscribe(h)
	require.NoError(t, bus.Publish(ctx, newTestEvent("A"), newTestEvent("B")))

	assert.Equal(t, 0, h.count())
	assert.Equal(t, 0, bus.registry.Count())
}

func TestHandlerRegistry(t *testing.T) {
	r := NewHandlerRegistry()
	typed := newTestHandler()
	wildcard := newTestHandler()

	r.Register(typed, "A", "B")
	r.Register(wildcard)

	handlers := r.GetHandlers("A")
	require.Len(t, handlers, 2)
	assert.Same(t, typed, handlers[0], "typed handlers come before wildcards")
	assert.Same(t, wildcard, handlers[1])

	assert.Len(t, r.GetHandlers("C"), 1)
	assert.Equal(t, 2, r.Count())

	r.Unregister(typed)
	assert.Len(t, r.GetHandlers("B"), 1)
	assert.Equal(t, 1, r.Count())
}
