package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/randalmurphal/autoflow/pkg/autoflow/observability"
	"github.com/randalmurphal/autoflow/pkg/autoflow/state"
)

// Engine executes registered workflows and records run history.
//
// Execution is linear and fail-fast: tasks run in registration order,
// and the first task error stops the run. Failures are recorded in the
// run history rather than returned: Run only reports an error when the
// run itself could not be started.
type Engine struct {
	mu        sync.RWMutex
	workflows map[string]*Workflow

	states  *state.Manager
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger for run lifecycle events.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics sets the metrics recorder for task and run metrics.
func WithMetrics(m observability.MetricsRecorder) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithSpanManager enables tracing of runs and tasks.
func WithSpanManager(sm observability.SpanManager) EngineOption {
	return func(e *Engine) { e.spans = sm }
}

// NewEngine creates a workflow engine backed by the given state manager.
func NewEngine(states *state.Manager, opts ...EngineOption) *Engine {
	e := &Engine{
		workflows: make(map[string]*Workflow),
		states:    states,
		metrics:   observability.NoopMetrics{},
		spans:     observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register adds a workflow to the engine. Registering a workflow whose
// ID already exists replaces the previous definition.
func (e *Engine) Register(wf *Workflow) {
	if wf == nil {
		panic("autoflow: cannot register nil workflow")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.workflows[wf.ID()] = wf
}

// Get returns the workflow registered under id, or nil.
func (e *Engine) Get(id string) *Workflow {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.workflows[id]
}

// Workflows returns the IDs of all registered workflows.
func (e *Engine) Workflows() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.workflows))
	for id := range e.workflows {
		ids = append(ids, id)
	}
	return ids
}

// Run executes the named workflow with the given trigger context and
// returns the final run record.
//
// The returned error is non-nil only when the run could not be started:
// the workflow is unknown, or creating the run record failed. Task
// failures are recorded on the returned run (status FAILED) instead.
func (e *Engine) Run(ctx context.Context, id string, trigCtx map[string]any) (*state.WorkflowRun, error) {
	wf := e.Get(id)
	if wf == nil {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotRegistered, id)
	}

	run, err := e.states.CreateRun(ctx, id, trigCtx)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	done := observability.TimedOperation()
	observability.LogRunStart(e.logger, id, run.ID)

	runCtx, runSpan := e.spans.StartRunSpan(ctx, id, run.ID)
	start := time.Now()

	e.transitionRun(ctx, run.ID, state.StatusRunning, nil)

	runErr := e.executeTasks(runCtx, wf, run.ID, trigCtx)

	e.metrics.RecordWorkflowRun(ctx, id, runErr == nil, time.Since(start))
	e.spans.EndSpanWithError(runSpan, runErr)

	if runErr != nil {
		lastTask := ""
		if te, ok := runErr.(*TaskError); ok {
			lastTask = te.Task
		}
		observability.LogRunError(e.logger, id, run.ID, runErr, done(), lastTask)
	} else {
		observability.LogRunComplete(e.logger, id, run.ID, done(), wf.Len())
	}

	final, err := e.states.GetRun(context.WithoutCancel(ctx), run.ID)
	if err != nil {
		observability.LogPersistenceError(e.logger, run.ID, "get_run", err)
		return run, nil
	}
	return final, nil
}

// executeTasks runs the workflow's tasks in order, persisting a step
// record per task and transitioning the run to a terminal status.
func (e *Engine) executeTasks(ctx context.Context, wf *Workflow, runID string, trigCtx map[string]any) error {
	for _, task := range wf.Tasks() {
		select {
		case <-ctx.Done():
			// Persist the terminal status even though ctx is done.
			e.transitionRun(context.WithoutCancel(ctx), runID, state.StatusCancelled, map[string]any{
				"error": ctx.Err().Error(),
				"task":  task.ID,
			})
			return &TaskError{Workflow: wf.ID(), Task: task.ID, Err: ctx.Err()}
		default:
		}

		observability.LogTaskStart(e.logger, task.ID)
		taskCtx, taskSpan := e.spans.StartTaskSpan(ctx, task.ID)

		step, stepErr := e.states.CreateStep(ctx, runID, task.ID)
		if stepErr != nil {
			observability.LogPersistenceError(e.logger, runID, "create_step", stepErr)
		} else {
			e.transitionStep(ctx, step.ID, state.StatusRunning, nil)
		}

		taskStart := time.Now()
		result, taskErr := runTask(taskCtx, task, trigCtx)
		taskDuration := time.Since(taskStart)

		e.metrics.RecordTaskExecution(ctx, wf.ID(), task.ID, taskDuration, taskErr)
		e.spans.EndSpanWithError(taskSpan, taskErr)

		if taskErr != nil {
			observability.LogTaskError(e.logger, task.ID, taskErr)
			if step != nil {
				e.transitionStep(ctx, step.ID, state.StatusFailed, map[string]any{
					"error": taskErr.Error(),
				})
			}
			e.transitionRun(ctx, runID, state.StatusFailed, map[string]any{
				"error": taskErr.Error(),
				"task":  task.ID,
			})
			return &TaskError{Workflow: wf.ID(), Task: task.ID, Err: taskErr}
		}

		observability.LogTaskComplete(e.logger, task.ID, float64(taskDuration.Milliseconds()))
		if step != nil {
			e.transitionStep(ctx, step.ID, state.StatusCompleted, map[string]any{
				"result": result,
			})
		}
	}

	e.transitionRun(ctx, runID, state.StatusCompleted, map[string]any{
		"tasks": wf.Len(),
	})
	return nil
}

// runTask invokes a task action with panic recovery.
func runTask(ctx context.Context, task Task, trigCtx map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v\n%s", r, debug.Stack())
		}
	}()
	return task.Action(ctx, trigCtx)
}

// transitionRun updates run status, logging failures instead of
// propagating them. History writes never fail a live run.
func (e *Engine) transitionRun(ctx context.Context, runID string, status state.Status, output map[string]any) {
	if err := e.states.TransitionRun(ctx, runID, status, output); err != nil {
		observability.LogPersistenceError(e.logger, runID, "update_run", err)
	}
}

func (e *Engine) transitionStep(ctx context.Context, stepID string, status state.Status, output map[string]any) {
	if err := e.states.TransitionStep(ctx, stepID, status, output); err != nil {
		observability.LogPersistenceError(e.logger, stepID, "update_step", err)
	}
}
