package autoflow

import "errors"

var (
	// ErrTriggerNotRegistered is returned by Bind when the trigger name
	// is unknown to the engine.
	ErrTriggerNotRegistered = errors.New("trigger not registered")

	// ErrWorkflowNotRegistered is returned by Bind and ScheduleWorkflow
	// when the workflow name is unknown to the engine.
	ErrWorkflowNotRegistered = errors.New("workflow not registered")

	// ErrAlreadyBound is returned by Bind when the trigger is already
	// bound to a workflow. Bindings are never silently overwritten.
	ErrAlreadyBound = errors.New("trigger already bound to a workflow")

	// ErrEngineRunning is returned by Start on a running engine.
	ErrEngineRunning = errors.New("automation engine already running")
)
