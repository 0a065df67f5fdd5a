package workflow

import (
	"context"
	"fmt"
	"strings"
)

// Action is the signature for all task functions.
// Tasks receive the execution context and the trigger context that
// started the run, and return an arbitrary result value or an error.
//
// Example:
//
//	func notify(ctx context.Context, trigCtx map[string]any) (any, error) {
//	    return "sent", nil
//	}
type Action func(ctx context.Context, trigCtx map[string]any) (any, error)

// Task is a single step in a workflow.
type Task struct {
	// ID identifies this task within its workflow. It must be unique.
	ID string

	// Name is optional human-readable documentation.
	Name string

	// Action is the function executed when the task runs.
	Action Action
}

// Workflow is a mutable builder for a linear sequence of tasks.
// Use New to create a workflow, then chain AddTask calls to define
// the steps in execution order.
//
// Workflow is NOT thread-safe during building. Construct it from a
// single goroutine, then register it with an Engine.
//
// Example:
//
//	wf := workflow.New("deploy", "Deploy the service").
//	    AddTask("build", buildAction).
//	    AddTask("release", releaseAction)
type Workflow struct {
	id    string
	name  string
	tasks []Task
	ids   map[string]struct{}
}

// New creates a workflow builder. The id is the registration key; the
// name is a human-readable label.
//
// Panics if id is empty or contains whitespace.
func New(id, name string) *Workflow {
	if id == "" {
		panic("autoflow: workflow ID cannot be empty")
	}
	if strings.ContainsAny(id, " \t\n\r") {
		panic("autoflow: workflow ID cannot contain whitespace")
	}
	return &Workflow{
		id:   id,
		name: name,
		ids:  make(map[string]struct{}),
	}
}

// AddTask appends a task to the workflow.
// Returns the workflow for method chaining.
//
// Panics if:
//   - id is empty
//   - id contains whitespace (space, tab, newline)
//   - action is nil
//   - id already exists in the workflow
func (w *Workflow) AddTask(id string, action Action) *Workflow {
	return w.AddTaskNamed(id, "", action)
}

// AddTaskNamed is AddTask with a human-readable task name.
func (w *Workflow) AddTaskNamed(id, name string, action Action) *Workflow {
	if id == "" {
		panic("autoflow: task ID cannot be empty")
	}
	if strings.ContainsAny(id, " \t\n\r") {
		panic("autoflow: task ID cannot contain whitespace")
	}
	if action == nil {
		panic("autoflow: task action cannot be nil")
	}
	if _, exists := w.ids[id]; exists {
		panic(fmt.Sprintf("autoflow: duplicate task ID: %s", id))
	}

	w.ids[id] = struct{}{}
	w.tasks = append(w.tasks, Task{ID: id, Name: name, Action: action})
	return w
}

// ID returns the workflow's registration key.
func (w *Workflow) ID() string { return w.id }

// Name returns the workflow's human-readable label.
func (w *Workflow) Name() string { return w.name }

// Tasks returns a copy of the task list in execution order.
func (w *Workflow) Tasks() []Task {
	out := make([]Task, len(w.tasks))
	copy(out, w.tasks)
	return out
}

// Len returns the number of tasks.
func (w *Workflow) Len() int { return len(w.tasks) }
