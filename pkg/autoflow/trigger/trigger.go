// Package trigger defines event sources that initiate automation
// workflows: webhooks, cron schedules, filesystem watches, and git
// repository activity.
//
// Each trigger listens to its source and dispatches a standardized
// Event to registered callbacks. Triggers can also be fired directly
// via Fire, which is how tests and manual invocations drive them
// without a live source.
package trigger

import (
	"context"
	"log/slog"
	"sync"
)

// Trigger type identifiers.
const (
	TypeWebhook    = "webhook"
	TypeCron       = "cron"
	TypeFilesystem = "filesystem"
	TypeGit        = "git"
)

// Event is emitted by a trigger when its source activates.
type Event struct {
	// Type identifies the kind of trigger that produced the event.
	Type string

	// Data carries source-specific details (request body, schedule,
	// changed path, and so on).
	Data map[string]any

	// Context carries metadata about the event origin.
	Context map[string]any
}

// Callback is invoked when a trigger fires.
// Errors are logged and never stop delivery to other callbacks.
type Callback func(Event) error

// Trigger is an event source that initiates workflows.
//
// Start begins listening on the underlying source and returns without
// blocking. Stop releases the source. Fire dispatches an event to all
// callbacks directly, regardless of whether the trigger is started.
type Trigger interface {
	Name() string
	Type() string
	AddCallback(cb Callback)
	Fire(evt Event)
	Start(ctx context.Context) error
	Stop() error
}

// core holds the callback registry shared by all trigger implementations.
type core struct {
	name   string
	logger *slog.Logger

	mu        sync.RWMutex
	callbacks []Callback
}

func newCore(name string, logger *slog.Logger) core {
	return core{name: name, logger: logger}
}

func (c *core) Name() string { return c.name }

// AddCallback registers a callback. Callbacks run in registration order.
func (c *core) AddCallback(cb Callback) {
	if cb == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = append(c.callbacks, cb)
}

// Fire dispatches evt to every registered callback. A callback error
// or panic is logged and does not prevent later callbacks from running.
func (c *core) Fire(evt Event) {
	c.mu.RLock()
	cbs := make([]Callback, len(c.callbacks))
	copy(cbs, c.callbacks)
	c.mu.RUnlock()

	for _, cb := range cbs {
		c.invoke(cb, evt)
	}
}

func (c *core) invoke(cb Callback, evt Event) {
	defer func() {
		if r := recover(); r != nil && c.logger != nil {
			c.logger.Error("trigger callback panicked",
				slog.String("trigger", c.name),
				slog.Any("panic", r),
			)
		}
	}()
	if err := cb(evt); err != nil && c.logger != nil {
		c.logger.Error("trigger callback failed",
			slog.String("trigger", c.name),
			slog.String("error", err.Error()),
		)
	}
}
