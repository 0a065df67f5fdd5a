package trigger

import "errors"

var (
	// ErrDuplicateTrigger indicates a trigger name is already registered.
	ErrDuplicateTrigger = errors.New("trigger already registered")

	// ErrUnknownTriggerType indicates a config entry named a type with
	// no implementation.
	ErrUnknownTriggerType = errors.New("unknown trigger type")

	// ErrAlreadyStarted indicates Start was called on a running trigger.
	ErrAlreadyStarted = errors.New("trigger already started")
)
