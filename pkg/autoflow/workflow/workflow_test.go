package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func noopAction(_ context.Context, _ map[string]any) (any, error) {
	return nil, nil
}

// TestNew verifies basic workflow creation.
func TestNew(t *testing.T) {
	wf := New("deploy", "Deploy the service")
	assert.Equal(t, "deploy", wf.ID())
	assert.Equal(t, "Deploy the service", wf.Name())
	assert.Zero(t, wf.Len())
}

// TestWorkflow_AddTask tests successful task addition.
func TestWorkflow_AddTask(t *testing.T) {
	wf := New("deploy", "").
		AddTask("build", noopAction).
		AddTask("release", noopAction)

	assert.Equal(t, 2, wf.Len())
	tasks := wf.Tasks()
	assert.Equal(t, "build", tasks[0].ID)
	assert.Equal(t, "release", tasks[1].ID)
}

// TestWorkflow_AddTask_Chaining tests fluent API chaining.
func TestWorkflow_AddTask_Chaining(t *testing.T) {
	wf := New("deploy", "")
	result := wf.AddTask("build", noopAction)
	assert.Same(t, wf, result)
}

func TestWorkflow_AddTaskNamed(t *testing.T) {
	wf := New("deploy", "").AddTaskNamed("build", "Compile binaries", noopAction)
	assert.Equal(t, "Compile binaries", wf.Tasks()[0].Name)
}

func TestNew_EmptyID_Panics(t *testing.T) {
	assert.PanicsWithValue(t, "autoflow: workflow ID cannot be empty", func() {
		New("", "")
	})
}

func TestNew_WhitespaceID_Panics(t *testing.T) {
	assert.PanicsWithValue(t, "autoflow: workflow ID cannot contain whitespace", func() {
		New("my workflow", "")
	})
}

func TestWorkflow_AddTask_EmptyID_Panics(t *testing.T) {
	assert.PanicsWithValue(t, "autoflow: task ID cannot be empty", func() {
		New("wf", "").AddTask("", noopAction)
	})
}

func TestWorkflow_AddTask_WhitespaceID_Panics(t *testing.T) {
	testCases := []struct {
		name string
		id   string
	}{
		{"space", "task a"},
		{"tab", "task\ta"},
		{"newline", "task\na"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.PanicsWithValue(t, "autoflow: task ID cannot contain whitespace", func() {
				New("wf", "").AddTask(tc.id, noopAction)
			})
		})
	}
}

func TestWorkflow_AddTask_NilAction_Panics(t *testing.T) {
	assert.PanicsWithValue(t, "autoflow: task action cannot be nil", func() {
		New("wf", "").AddTask("build", nil)
	})
}

func TestWorkflow_AddTask_DuplicateID_Panics(t *testing.T) {
	assert.PanicsWithValue(t, `autoflow: duplicate task ID: build`, func() {
		New("wf", "").AddTask("build", noopAction).AddTask("build", noopAction)
	})
}

// TestWorkflow_Tasks_ReturnsCopy verifies callers cannot mutate the
// workflow through the returned slice.
func TestWorkflow_Tasks_ReturnsCopy(t *testing.T) {
	wf := New("wf", "").AddTask("build", noopAction)
	tasks := wf.Tasks()
	tasks[0].ID = "mutated"
	assert.Equal(t, "build", wf.Tasks()[0].ID)
}
