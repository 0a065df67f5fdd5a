package workflow

import (
	"errors"
	"fmt"
)

// ErrWorkflowNotRegistered is returned by Engine.Run when no workflow
// with the requested name has been registered.
var ErrWorkflowNotRegistered = errors.New("workflow not registered")

// TaskError wraps an error returned (or a panic recovered) from a task action.
type TaskError struct {
	Workflow string
	Task     string
	Err      error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %q in workflow %q failed: %v", e.Task, e.Workflow, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }
