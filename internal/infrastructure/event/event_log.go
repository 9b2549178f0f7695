package event

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
)

// Envelope is the JSON line written for each event
type Envelope struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope serializes event into an Envelope
func NewEnvelope(event shared.DomainEvent) (Envelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s event: %w", event.EventType(), err)
	}
	return Envelope{
		ID:            event.EventID().String(),
		Type:          event.EventType(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID().String(),
		OccurredAt:    event.OccurredAt().UTC(),
		Payload:       payload,
	}, nil
}

// EventLogHandler appends every event it receives to w as JSON lines
type EventLogHandler struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewEventLogHandler creates a handler writing to w
func NewEventLogHandler(w io.Writer) *EventLogHandler {
	return &EventLogHandler{enc: json.NewEncoder(w)}
}

// EventTypes subscribes to everything
func (h *EventLogHandler) EventTypes() []string {
	return nil
}

// Handle writes one line for event
func (h *EventLogHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	env, err := NewEnvelope(event)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.enc.Encode(env)
}

var _ shared.EventHandler = (*EventLogHandler)(nil)
