/*
Package autoflow connects event triggers to workflow execution.

An AutomationEngine owns four collaborating components: an event bus
(pkg/autoflow/event), a trigger manager (pkg/autoflow/trigger), a
workflow engine (pkg/autoflow/workflow), and a run-history state
manager (pkg/autoflow/state). Triggers publish "trigger.fired" events
on the bus; the engine resolves trigger-to-workflow bindings and runs
the bound workflow, persisting every run and step.

# Basic Usage

	store := state.NewMemoryStore()
	engine, err := autoflow.New(autoflow.WithStore(store))
	if err != nil {
	    log.Fatal(err)
	}

	wf := workflow.New("greet", "Say hello").
	    AddTask("hello", func(ctx context.Context, trigCtx map[string]any) (any, error) {
	        return "hello", nil
	    })
	engine.RegisterWorkflow(wf)

	hook := trigger.NewWebhookTrigger("on_push", trigger.WebhookConfig{Path: "/hooks/push"})
	engine.RegisterTrigger(hook)
	if err := engine.Bind("on_push", "greet"); err != nil {
	    log.Fatal(err)
	}

	if err := engine.Start(context.Background()); err != nil {
	    log.Fatal(err)
	}
	defer engine.Stop()

Firing the trigger (via HTTP or hook.Fire) now executes the workflow
and records the run, retrievable with engine.RecentExecutions.

# Events

The engine publishes lifecycle events on its bus:

	trigger.fired       {trigger, type, data, context}
	schedule.triggered  {schedule, workflow_id, data}
	workflow.completed  {workflow_id, run_id, status}

Subscribe with pattern matching ("workflow.*", "*.fired", "*") via
engine.Bus().
*/
package autoflow
