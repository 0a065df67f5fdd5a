package autoflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/randalmurphal/autoflow/pkg/autoflow/event"
	"github.com/randalmurphal/autoflow/pkg/autoflow/observability"
	"github.com/randalmurphal/autoflow/pkg/autoflow/scheduler"
	"github.com/randalmurphal/autoflow/pkg/autoflow/state"
	"github.com/randalmurphal/autoflow/pkg/autoflow/trigger"
	"github.com/randalmurphal/autoflow/pkg/autoflow/workflow"
)

// Lifecycle event types published on the engine's bus.
const (
	EventTriggerFired      = "trigger.fired"
	EventScheduleTriggered = "schedule.triggered"
	EventWorkflowCompleted = "workflow.completed"
)

// AutomationEngine wires triggers, the event bus, the workflow engine,
// the scheduler, and run-history state into one automation pipeline.
//
// An engine has a one-shot lifecycle: construct, register and bind,
// Start, work, Stop.
type AutomationEngine struct {
	bus       *event.Bus
	states    *state.Manager
	workflows *workflow.Engine
	triggers  *trigger.Manager
	sched     *scheduler.Scheduler

	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager

	mu            sync.Mutex
	bindings      map[string]string // trigger name -> workflow name
	schedBindings map[string]string // schedule name -> workflow name
	running       bool
}

type engineConfig struct {
	store     state.Store
	bus       *event.Bus
	sched     *scheduler.Scheduler
	logger    *slog.Logger
	metrics   observability.MetricsRecorder
	spans     observability.SpanManager
	busConfig event.BusConfig
}

// Option configures an AutomationEngine.
type Option func(*engineConfig)

// WithStore sets the run-history store. Default: in-memory.
func WithStore(s state.Store) Option {
	return func(c *engineConfig) { c.store = s }
}

// WithBus provides a pre-built event bus, overriding WithBusConfig.
func WithBus(b *event.Bus) Option {
	return func(c *engineConfig) { c.bus = b }
}

// WithBusConfig configures the engine-owned bus.
func WithBusConfig(cfg event.BusConfig) Option {
	return func(c *engineConfig) { c.busConfig = cfg }
}

// WithScheduler provides a pre-built scheduler.
func WithScheduler(s *scheduler.Scheduler) Option {
	return func(c *engineConfig) { c.sched = s }
}

// WithLogger sets the structured logger for all components the engine
// constructs.
func WithLogger(logger *slog.Logger) Option {
	return func(c *engineConfig) { c.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *engineConfig) { c.metrics = m }
}

// WithSpanManager enables tracing of workflow runs.
func WithSpanManager(sm observability.SpanManager) Option {
	return func(c *engineConfig) { c.spans = sm }
}

// New creates an automation engine.
func New(opts ...Option) (*AutomationEngine, error) {
	cfg := engineConfig{
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.store == nil {
		cfg.store = state.NewMemoryStore()
	}

	e := &AutomationEngine{
		logger:        cfg.logger,
		metrics:       cfg.metrics,
		spans:         cfg.spans,
		bindings:      make(map[string]string),
		schedBindings: make(map[string]string),
	}

	e.bus = cfg.bus
	if e.bus == nil {
		busCfg := cfg.busConfig
		if busCfg.Logger == nil {
			busCfg.Logger = cfg.logger
		}
		// Bus failure hooks feed the engine metrics without the event
		// package importing observability.
		prevErr, prevDrop := busCfg.OnError, busCfg.OnDrop
		busCfg.OnError = func(evt event.Event, pattern string, err error) {
			e.metrics.RecordHandlerError(context.Background(), evt.Type)
			if prevErr != nil {
				prevErr(evt, pattern, err)
			}
		}
		busCfg.OnDrop = func(evt event.Event, pattern string) {
			e.metrics.RecordEventDropped(context.Background(), evt.Type)
			if prevDrop != nil {
				prevDrop(evt, pattern)
			}
		}
		e.bus = event.NewBus(busCfg)
	}

	e.states = state.NewManager(cfg.store, state.WithLogger(cfg.logger))
	e.workflows = workflow.NewEngine(e.states,
		workflow.WithLogger(cfg.logger),
		workflow.WithMetrics(cfg.metrics),
		workflow.WithSpanManager(cfg.spans),
	)
	e.triggers = trigger.NewManager(cfg.logger)

	e.sched = cfg.sched
	if e.sched == nil {
		e.sched = scheduler.New(scheduler.WithLogger(cfg.logger))
	}

	return e, nil
}

// RegisterWorkflow makes a workflow runnable and bindable. A workflow
// with the same name replaces the previous definition.
func (e *AutomationEngine) RegisterWorkflow(wf *workflow.Workflow) {
	e.workflows.Register(wf)
	if e.logger != nil {
		e.logger.Debug("workflow registered", slog.String("workflow", wf.ID()))
	}
}

// RegisterTrigger adds a trigger and wires its events onto the bus as
// "trigger.fired". Returns trigger.ErrDuplicateTrigger on name reuse.
func (e *AutomationEngine) RegisterTrigger(t trigger.Trigger) error {
	if err := e.triggers.Add(t); err != nil {
		return err
	}

	name := t.Name()
	t.AddCallback(func(evt trigger.Event) error {
		observability.LogTriggerFired(e.logger, name, evt.Type)
		return e.EmitEvent(context.Background(), EventTriggerFired, map[string]any{
			"trigger": name,
			"type":    evt.Type,
			"data":    evt.Data,
			"context": evt.Context,
		})
	})
	return nil
}

// Bind routes a trigger to a workflow: whenever the trigger fires, the
// workflow runs. A trigger binds to at most one workflow; rebinding
// returns ErrAlreadyBound. Multiple triggers may bind the same workflow.
func (e *AutomationEngine) Bind(triggerName, workflowName string) error {
	if e.triggers.Get(triggerName) == nil {
		return fmt.Errorf("%w: %s", ErrTriggerNotRegistered, triggerName)
	}
	if e.workflows.Get(workflowName) == nil {
		return fmt.Errorf("%w: %s", ErrWorkflowNotRegistered, workflowName)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if bound, exists := e.bindings[triggerName]; exists {
		return fmt.Errorf("%w: %s -> %s", ErrAlreadyBound, triggerName, bound)
	}
	e.bindings[triggerName] = workflowName

	if e.logger != nil {
		e.logger.Info("trigger bound",
			slog.String("trigger", triggerName),
			slog.String("workflow", workflowName),
		)
	}
	return nil
}

// ScheduleWorkflow binds a cron schedule to a workflow. When the
// schedule fires, the engine publishes "schedule.triggered" and runs
// the workflow.
func (e *AutomationEngine) ScheduleWorkflow(workflowName string, sched scheduler.Schedule) error {
	if e.workflows.Get(workflowName) == nil {
		return fmt.Errorf("%w: %s", ErrWorkflowNotRegistered, workflowName)
	}
	if err := e.sched.AddSchedule(sched); err != nil {
		return err
	}

	e.mu.Lock()
	e.schedBindings[sched.Name] = workflowName
	e.mu.Unlock()

	e.sched.AddCallback(sched.Name, e.handleScheduleEvent)

	if e.logger != nil {
		e.logger.Info("schedule bound",
			slog.String("schedule", sched.Name),
			slog.String("workflow", workflowName),
			slog.String("cron", sched.Cron),
		)
	}
	return nil
}

// Start boots the pipeline: state store, bus, the internal
// trigger.fired subscription, scheduler, then triggers.
func (e *AutomationEngine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrEngineRunning
	}
	e.running = true
	e.mu.Unlock()

	if err := e.states.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize state store: %w", err)
	}
	if err := e.bus.Start(); err != nil {
		return fmt.Errorf("start event bus: %w", err)
	}
	if _, err := e.bus.Subscribe(EventTriggerFired, e.handleTriggerFired); err != nil {
		return fmt.Errorf("subscribe trigger events: %w", err)
	}
	if err := e.sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	if err := e.triggers.StartAll(ctx); err != nil {
		return fmt.Errorf("start triggers: %w", err)
	}

	if e.logger != nil {
		e.logger.Info("automation engine started",
			slog.Int("workflows", len(e.workflows.Workflows())),
			slog.Int("triggers", len(e.triggers.Triggers())),
			slog.Int("schedules", len(e.sched.Schedules())),
		)
	}
	return nil
}

// Stop shuts the pipeline down in reverse order. Each component is
// stopped even if an earlier one fails; failures are joined.
func (e *AutomationEngine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	e.mu.Unlock()

	errs := []error{
		e.triggers.StopAll(),
		e.sched.Stop(),
		e.bus.Stop(),
		e.states.Close(),
	}

	if e.logger != nil {
		e.logger.Info("automation engine stopped")
	}
	return errors.Join(errs...)
}

// EmitEvent publishes an event on the engine's bus. Useful for manual
// injection and custom integrations.
func (e *AutomationEngine) EmitEvent(ctx context.Context, eventType string, payload map[string]any) error {
	if err := e.bus.Publish(ctx, event.New(eventType, payload)); err != nil {
		return err
	}
	e.metrics.RecordEventPublished(ctx, eventType)
	return nil
}

// RunWorkflow executes a registered workflow immediately and publishes
// "workflow.completed" after the run.
func (e *AutomationEngine) RunWorkflow(ctx context.Context, workflowName string, trigCtx map[string]any) (*state.WorkflowRun, error) {
	run, err := e.workflows.Run(ctx, workflowName, trigCtx)
	if err != nil {
		return nil, err
	}

	if pubErr := e.EmitEvent(ctx, EventWorkflowCompleted, map[string]any{
		"workflow_id": workflowName,
		"run_id":      run.ID,
		"status":      string(run.Status),
	}); pubErr != nil && e.logger != nil {
		e.logger.Warn("publish workflow.completed failed",
			slog.String("run_id", run.ID),
			slog.String("error", pubErr.Error()),
		)
	}
	return run, nil
}

// handleTriggerFired resolves the binding for a fired trigger and runs
// the bound workflow. Events from unbound triggers are ignored.
func (e *AutomationEngine) handleTriggerFired(ctx context.Context, evt event.Event) error {
	triggerName, _ := evt.Payload["trigger"].(string)

	e.mu.Lock()
	workflowName, bound := e.bindings[triggerName]
	e.mu.Unlock()
	if !bound {
		if e.logger != nil {
			e.logger.Debug("trigger fired with no binding",
				slog.String("trigger", triggerName),
			)
		}
		return nil
	}

	trigCtx := map[string]any{
		"trigger": triggerName,
		"data":    evt.Payload["data"],
		"context": evt.Payload["context"],
	}
	_, err := e.RunWorkflow(ctx, workflowName, trigCtx)
	return err
}

// handleScheduleEvent runs the workflow bound to a fired schedule.
func (e *AutomationEngine) handleScheduleEvent(evt scheduler.ScheduleEvent) error {
	e.mu.Lock()
	workflowName, bound := e.schedBindings[evt.ScheduleName]
	e.mu.Unlock()
	if !bound {
		return fmt.Errorf("%w: no workflow bound to schedule %s", ErrWorkflowNotRegistered, evt.ScheduleName)
	}

	ctx := context.Background()
	if err := e.EmitEvent(ctx, EventScheduleTriggered, map[string]any{
		"schedule":    evt.ScheduleName,
		"workflow_id": workflowName,
		"data":        evt.Data,
	}); err != nil && e.logger != nil {
		e.logger.Warn("publish schedule.triggered failed",
			slog.String("schedule", evt.ScheduleName),
			slog.String("error", err.Error()),
		)
	}

	trigCtx := map[string]any{
		"schedule":  evt.ScheduleName,
		"data":      evt.Data,
		"timestamp": evt.Timestamp,
	}
	_, err := e.RunWorkflow(ctx, workflowName, trigCtx)
	return err
}

// Bus returns the engine's event bus for custom subscriptions.
func (e *AutomationEngine) Bus() *event.Bus { return e.bus }

// StateManager returns the run-history manager.
func (e *AutomationEngine) StateManager() *state.Manager { return e.states }

// WorkflowEngine returns the underlying workflow engine.
func (e *AutomationEngine) WorkflowEngine() *workflow.Engine { return e.workflows }

// TriggerManager returns the underlying trigger manager.
func (e *AutomationEngine) TriggerManager() *trigger.Manager { return e.triggers }

// Scheduler returns the underlying scheduler.
func (e *AutomationEngine) Scheduler() *scheduler.Scheduler { return e.sched }

// RecentExecutions returns the most recent workflow runs, newest first.
func (e *AutomationEngine) RecentExecutions(ctx context.Context, limit int) ([]*state.WorkflowRun, error) {
	return e.states.RecentExecutions(ctx, limit)
}
