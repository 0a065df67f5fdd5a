package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records autoflow metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordTaskExecution records a task execution with its duration and error status.
	RecordTaskExecution(ctx context.Context, workflow, task string, duration time.Duration, err error)

	// RecordWorkflowRun records a workflow run completion.
	RecordWorkflowRun(ctx context.Context, workflow string, success bool, duration time.Duration)

	// RecordEventPublished records an event published on the bus.
	RecordEventPublished(ctx context.Context, eventType string)

	// RecordHandlerError records an event handler failure.
	RecordHandlerError(ctx context.Context, eventType string)

	// RecordEventDropped records an event dropped by a full subscription queue.
	RecordEventDropped(ctx context.Context, eventType string)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	taskExecutions  metric.Int64Counter
	taskLatency     metric.Float64Histogram
	taskErrors      metric.Int64Counter
	workflowRuns    metric.Int64Counter
	workflowLatency metric.Float64Histogram
	eventsPublished metric.Int64Counter
	handlerErrors   metric.Int64Counter
	eventsDropped   metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("autoflow")

	taskExecutions, err := meter.Int64Counter("autoflow.task.executions",
		metric.WithDescription("Number of task executions"),
	)
	if err != nil {
		return nil, err
	}

	taskLatency, err := meter.Float64Histogram("autoflow.task.latency_ms",
		metric.WithDescription("Task execution latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	taskErrors, err := meter.Int64Counter("autoflow.task.errors",
		metric.WithDescription("Number of task execution errors"),
	)
	if err != nil {
		return nil, err
	}

	workflowRuns, err := meter.Int64Counter("autoflow.workflow.runs",
		metric.WithDescription("Number of workflow runs"),
	)
	if err != nil {
		return nil, err
	}

	workflowLatency, err := meter.Float64Histogram("autoflow.workflow.latency_ms",
		metric.WithDescription("Workflow run latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	eventsPublished, err := meter.Int64Counter("autoflow.bus.events_published",
		metric.WithDescription("Number of events published on the bus"),
	)
	if err != nil {
		return nil, err
	}

	handlerErrors, err := meter.Int64Counter("autoflow.bus.handler_errors",
		metric.WithDescription("Number of event handler failures"),
	)
	if err != nil {
		return nil, err
	}

	eventsDropped, err := meter.Int64Counter("autoflow.bus.events_dropped",
		metric.WithDescription("Number of events dropped by full subscription queues"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		taskExecutions:  taskExecutions,
		taskLatency:     taskLatency,
		taskErrors:      taskErrors,
		workflowRuns:    workflowRuns,
		workflowLatency: workflowLatency,
		eventsPublished: eventsPublished,
		handlerErrors:   handlerErrors,
		eventsDropped:   eventsDropped,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordTaskExecution records a task execution.
func (m *otelMetrics) RecordTaskExecution(ctx context.Context, workflow, task string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("workflow", workflow),
		attribute.String("task", task),
	}

	m.taskExecutions.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.taskLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		m.taskErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordWorkflowRun records a workflow run.
func (m *otelMetrics) RecordWorkflowRun(ctx context.Context, workflow string, success bool, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("workflow", workflow),
		attribute.Bool("success", success),
	}
	m.workflowRuns.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.workflowLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordEventPublished records a published event.
func (m *otelMetrics) RecordEventPublished(ctx context.Context, eventType string) {
	m.eventsPublished.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
	))
}

// RecordHandlerError records an event handler failure.
func (m *otelMetrics) RecordHandlerError(ctx context.Context, eventType string) {
	m.handlerErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
	))
}

// RecordEventDropped records a dropped event.
func (m *otelMetrics) RecordEventDropped(ctx context.Context, eventType string) {
	m.eventsDropped.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
	))
}
