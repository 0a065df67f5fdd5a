package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/autoflow/pkg/autoflow/state"
)

func newTestEngine(t *testing.T, opts ...EngineOption) (*Engine, *state.Manager) {
	t.Helper()
	mgr := state.NewManager(state.NewMemoryStore())
	require.NoError(t, mgr.Initialize(context.Background()))
	return NewEngine(mgr, opts...), mgr
}

func TestRun_LinearFlow(t *testing.T) {
	engine, mgr := newTestEngine(t)

	var order []string
	engine.Register(New("greet", "").
		AddTask("hello", func(_ context.Context, _ map[string]any) (any, error) {
			order = append(order, "hello")
			return "hi", nil
		}).
		AddTask("bye", func(_ context.Context, _ map[string]any) (any, error) {
			order = append(order, "bye")
			return "cya", nil
		}))

	run, err := engine.Run(context.Background(), "greet", nil)
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.Equal(t, []string{"hello", "bye"}, order)
	assert.Equal(t, state.StatusCompleted, run.Status)
	assert.NotNil(t, run.StartedAt)
	assert.NotNil(t, run.CompletedAt)

	steps, err := mgr.StepRuns(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "hello", steps[0].StepName)
	assert.Equal(t, state.StatusCompleted, steps[0].Status)
	assert.Equal(t, "hi", steps[0].Output["result"])
	assert.Equal(t, "bye", steps[1].StepName)
	assert.Equal(t, "cya", steps[1].Output["result"])
}

func TestRun_TriggerContextPassedToTasks(t *testing.T) {
	engine, _ := newTestEngine(t)

	var seen map[string]any
	engine.Register(New("wf", "").
		AddTask("inspect", func(_ context.Context, trigCtx map[string]any) (any, error) {
			seen = trigCtx
			return nil, nil
		}))

	trigCtx := map[string]any{"source": "webhook", "path": "/hooks/push"}
	run, err := engine.Run(context.Background(), "wf", trigCtx)
	require.NoError(t, err)

	assert.Equal(t, trigCtx, seen)
	assert.Equal(t, trigCtx, run.TriggerContext)
}

func TestRun_FailFast(t *testing.T) {
	engine, mgr := newTestEngine(t)

	var ran []string
	engine.Register(New("wf", "").
		AddTask("a", func(_ context.Context, _ map[string]any) (any, error) {
			ran = append(ran, "a")
			return nil, nil
		}).
		AddTask("b", func(_ context.Context, _ map[string]any) (any, error) {
			ran = append(ran, "b")
			return nil, errors.New("b blew up")
		}).
		AddTask("c", func(_ context.Context, _ map[string]any) (any, error) {
			ran = append(ran, "c")
			return nil, nil
		}))

	run, err := engine.Run(context.Background(), "wf", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, ran)
	assert.Equal(t, state.StatusFailed, run.Status)
	assert.Equal(t, "b blew up", run.Output["error"])
	assert.Equal(t, "b", run.Output["task"])

	steps, err := mgr.StepRuns(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, state.StatusCompleted, steps[0].Status)
	assert.Equal(t, state.StatusFailed, steps[1].Status)
	assert.Equal(t, "b blew up", steps[1].Output["error"])
}

func TestRun_PanicRecovery(t *testing.T) {
	engine, _ := newTestEngine(t)

	engine.Register(New("wf", "").
		AddTask("boom", func(_ context.Context, _ map[string]any) (any, error) {
			panic("something broke")
		}))

	run, err := engine.Run(context.Background(), "wf", nil)
	require.NoError(t, err)

	assert.Equal(t, state.StatusFailed, run.Status)
	assert.Contains(t, run.Output["error"], "task panicked: something broke")
}

func TestRun_NotRegistered(t *testing.T) {
	engine, _ := newTestEngine(t)

	run, err := engine.Run(context.Background(), "missing", nil)
	assert.Nil(t, run)
	assert.ErrorIs(t, err, ErrWorkflowNotRegistered)
}

func TestRegister_Replaces(t *testing.T) {
	engine, _ := newTestEngine(t)

	engine.Register(New("wf", "").
		AddTask("old", func(_ context.Context, _ map[string]any) (any, error) {
			return "old", nil
		}))

	var ran string
	engine.Register(New("wf", "").
		AddTask("new", func(_ context.Context, _ map[string]any) (any, error) {
			ran = "new"
			return nil, nil
		}))

	_, err := engine.Run(context.Background(), "wf", nil)
	require.NoError(t, err)
	assert.Equal(t, "new", ran)
}

func TestRegister_NilWorkflow_Panics(t *testing.T) {
	engine, _ := newTestEngine(t)
	assert.PanicsWithValue(t, "autoflow: cannot register nil workflow", func() {
		engine.Register(nil)
	})
}

func TestRun_CancellationBetweenTasks(t *testing.T) {
	engine, _ := newTestEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	engine.Register(New("wf", "").
		AddTask("first", func(_ context.Context, _ map[string]any) (any, error) {
			cancel()
			return nil, nil
		}).
		AddTask("second", func(_ context.Context, _ map[string]any) (any, error) {
			t.Fatal("second task should not run after cancellation")
			return nil, nil
		}))

	run, err := engine.Run(ctx, "wf", nil)
	require.NoError(t, err)
	assert.Equal(t, state.StatusCancelled, run.Status)
	assert.Equal(t, "second", run.Output["task"])
}

func TestWorkflows_ListsRegisteredNames(t *testing.T) {
	engine, _ := newTestEngine(t)
	engine.Register(New("a", "").AddTask("t", noopAction))
	engine.Register(New("b", "").AddTask("t", noopAction))

	assert.ElementsMatch(t, []string{"a", "b"}, engine.Workflows())
	assert.NotNil(t, engine.Get("a"))
	assert.Nil(t, engine.Get("zzz"))
}

func TestRun_RecordedInRecentExecutions(t *testing.T) {
	engine, mgr := newTestEngine(t)
	engine.Register(New("wf", "").AddTask("t", noopAction))

	for i := 0; i < 3; i++ {
		_, err := engine.Run(context.Background(), "wf", nil)
		require.NoError(t, err)
	}

	recent, err := mgr.RecentExecutions(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, recent, 3)
	for _, run := range recent {
		assert.Equal(t, "wf", run.WorkflowID)
		assert.Equal(t, state.StatusCompleted, run.Status)
	}
}
