package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// CronConfig configures a CronTrigger.
type CronConfig struct {
	// Schedule is a standard 5-field cron expression, e.g. "*/5 * * * *".
	// When empty, no schedule runs and the trigger is driven by Fire.
	Schedule string

	// Logger receives callback errors.
	Logger *slog.Logger
}

// CronTrigger fires on a cron schedule.
type CronTrigger struct {
	core
	schedule string

	mu      sync.Mutex
	runner  *cron.Cron
	started bool
}

// NewCronTrigger creates a cron trigger. The schedule expression is
// validated at Start, not here.
func NewCronTrigger(name string, cfg CronConfig) *CronTrigger {
	return &CronTrigger{
		core:     newCore(name, cfg.Logger),
		schedule: cfg.Schedule,
	}
}

func (t *CronTrigger) Type() string { return TypeCron }

// Schedule returns the configured cron expression.
func (t *CronTrigger) Schedule() string { return t.schedule }

// Start begins the schedule. Returns an error if the expression does
// not parse. With no schedule configured, Start is a no-op.
func (t *CronTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return ErrAlreadyStarted
	}

	if t.schedule == "" {
		t.started = true
		return nil
	}

	runner := cron.New()
	_, err := runner.AddFunc(t.schedule, func() {
		t.Fire(Event{
			Type: TypeCron,
			Data: map[string]any{
				"schedule":  t.schedule,
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			},
			Context: map[string]any{"source": "cron"},
		})
	})
	if err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", t.schedule, err)
	}

	runner.Start()
	t.runner = runner
	t.started = true
	return nil
}

// Stop halts the schedule and waits for any in-flight job to finish.
func (t *CronTrigger) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started = false

	if t.runner == nil {
		return nil
	}
	<-t.runner.Stop().Done()
	t.runner = nil
	return nil
}
