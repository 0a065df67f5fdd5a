package event

import "errors"

// Sentinel errors for bus operations.
var (
	// ErrBusNotRunning indicates Publish was called before Start or after Stop.
	ErrBusNotRunning = errors.New("event bus not running")

	// ErrBusClosed indicates the bus was stopped and cannot be restarted.
	ErrBusClosed = errors.New("event bus closed")

	// ErrEmptyEventType indicates an event with an empty Type was published.
	ErrEmptyEventType = errors.New("event type cannot be empty")

	// ErrInvalidPattern indicates a malformed subscription pattern.
	// Patterns allow at most one wildcard, as a full leading or
	// trailing segment.
	ErrInvalidPattern = errors.New("invalid subscription pattern")

	// ErrNilHandler indicates Subscribe was called with a nil handler.
	ErrNilHandler = errors.New("handler cannot be nil")
)
