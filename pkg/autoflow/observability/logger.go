// Package observability provides production-grade observability features
// for autoflow: structured logging, metrics, and distributed tracing.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds automation context to a logger.
// Returns a new logger with workflow, run_id, and task fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "deploy", "run-123", "build")
//	enriched.Info("doing work") // includes workflow, run_id, task
func EnrichLogger(logger *slog.Logger, workflow, runID, task string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("workflow", workflow),
		slog.String("run_id", runID),
		slog.String("task", task),
	)
}

// LogRunStart logs the start of a workflow run.
func LogRunStart(logger *slog.Logger, workflow, runID string) {
	if logger == nil {
		return
	}
	logger.Info("workflow run starting",
		slog.String("workflow", workflow),
		slog.String("run_id", runID),
	)
}

// LogRunComplete logs successful workflow run completion.
func LogRunComplete(logger *slog.Logger, workflow, runID string, durationMs float64, taskCount int) {
	if logger == nil {
		return
	}
	logger.Info("workflow run completed",
		slog.String("workflow", workflow),
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("tasks_executed", taskCount),
	)
}

// LogRunError logs workflow run failure.
func LogRunError(logger *slog.Logger, workflow, runID string, err error, durationMs float64, lastTask string) {
	if logger == nil {
		return
	}
	logger.Error("workflow run failed",
		slog.String("workflow", workflow),
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.String("last_task", lastTask),
	)
}

// LogTaskStart logs task execution start.
func LogTaskStart(logger *slog.Logger, task string) {
	if logger == nil {
		return
	}
	logger.Debug("task starting",
		slog.String("task", task),
	)
}

// LogTaskComplete logs successful task completion.
func LogTaskComplete(logger *slog.Logger, task string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("task completed",
		slog.String("task", task),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogTaskError logs task execution error.
func LogTaskError(logger *slog.Logger, task string, err error) {
	if logger == nil {
		return
	}
	logger.Error("task failed",
		slog.String("task", task),
		slog.String("error", err.Error()),
	)
}

// LogTriggerFired logs a trigger activation.
func LogTriggerFired(logger *slog.Logger, trigger, triggerType string) {
	if logger == nil {
		return
	}
	logger.Info("trigger fired",
		slog.String("trigger", trigger),
		slog.String("type", triggerType),
	)
}

// LogPersistenceError logs a run history write failure (non-fatal).
func LogPersistenceError(logger *slog.Logger, runID string, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("run history write failed",
		slog.String("run_id", runID),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
