package event

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is an immutable record flowing through the bus.
// Construct events with New; do not mutate the payload after publishing.
type Event struct {
	// ID is a unique event identifier, generated at construction.
	ID string

	// Type is the dot-segmented topic (e.g. "trigger.fired").
	Type string

	// Payload carries arbitrary structured data. The bus never
	// inspects it beyond dispatch.
	Payload map[string]any

	// Timestamp records when the event was constructed.
	Timestamp time.Time
}

// New creates an event with a generated ID and the current time.
func New(eventType string, payload map[string]any) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// Handler processes a single event. A non-nil error is recorded in the
// bus statistics and logged; it does not stop delivery to other
// subscriptions and the event is not retried.
type Handler func(ctx context.Context, evt Event) error
