// Package scheduler runs background jobs and named cron schedules.
//
// Jobs are ad-hoc units of work executed by a worker goroutine in
// submission order. Schedules are named cron expressions whose
// callbacks fire on schedule, or on demand via TriggerSchedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// JobFunc is the work executed for a submitted job.
type JobFunc func(ctx context.Context) error

// Job is a unit of work queued for execution.
type Job struct {
	ID   string
	Name string
	fn   JobFunc
}

// Schedule is a named cron expression.
type Schedule struct {
	Name string
	Cron string
}

// ScheduleEvent is passed to schedule callbacks when a schedule fires.
type ScheduleEvent struct {
	ScheduleName string
	Data         map[string]any
	Timestamp    time.Time
}

// Callback is invoked when a schedule fires.
type Callback func(ScheduleEvent) error

// Sentinel errors.
var (
	ErrNotRunning        = errors.New("scheduler not running")
	ErrAlreadyRunning    = errors.New("scheduler already running")
	ErrDuplicateSchedule = errors.New("schedule already registered")
	ErrUnknownSchedule   = errors.New("unknown schedule")
)

const defaultQueueSize = 128

// Scheduler manages job execution and cron schedules.
type Scheduler struct {
	logger *slog.Logger

	mu        sync.Mutex
	queue     chan Job
	runner    *cron.Cron
	schedules map[string]Schedule
	callbacks map[string]Callback
	running   bool
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// New creates a scheduler. Call Start before submitting jobs.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		schedules: make(map[string]Schedule),
		callbacks: make(map[string]Callback),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the job worker and begins all registered schedules.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}

	s.queue = make(chan Job, defaultQueueSize)
	s.stopCh = make(chan struct{})
	s.runner = cron.New()

	for name, sched := range s.schedules {
		if err := s.addCronEntry(name, sched.Cron); err != nil {
			return err
		}
	}

	s.runner.Start()
	s.running = true

	s.wg.Add(1)
	go s.worker(ctx)
	return nil
}

// Stop halts the worker and schedules. Queued jobs that have not
// started are discarded.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	runner := s.runner
	stopCh := s.stopCh
	s.mu.Unlock()

	// Stopped outside the lock so in-flight schedule callbacks can
	// still acquire it while we wait for them.
	<-runner.Stop().Done()
	close(stopCh)
	s.wg.Wait()
	return nil
}

// SubmitJob queues a job for execution. The job's error is logged,
// not returned.
func (s *Scheduler) SubmitJob(name string, fn JobFunc) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil, ErrNotRunning
	}

	job := Job{ID: uuid.NewString(), Name: name, fn: fn}
	select {
	case s.queue <- job:
	default:
		return nil, fmt.Errorf("job queue full, dropping %q", name)
	}

	if s.logger != nil {
		s.logger.Debug("job submitted",
			slog.String("job", name),
			slog.String("job_id", job.ID),
		)
	}
	return &job, nil
}

// AddSchedule registers a named cron schedule. Registration before
// Start defers expression validation to Start; after Start the
// schedule begins immediately.
func (s *Scheduler) AddSchedule(sched Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.schedules[sched.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSchedule, sched.Name)
	}

	if s.running {
		if err := s.addCronEntry(sched.Name, sched.Cron); err != nil {
			return err
		}
	}
	s.schedules[sched.Name] = sched
	return nil
}

// addCronEntry wires a schedule into the cron runner. Caller holds mu.
func (s *Scheduler) addCronEntry(name, expr string) error {
	_, err := s.runner.AddFunc(expr, func() {
		if err := s.fireSchedule(name, nil); err != nil && s.logger != nil {
			s.logger.Error("schedule callback failed",
				slog.String("schedule", name),
				slog.String("error", err.Error()),
			)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q for schedule %s: %w", expr, name, err)
	}
	return nil
}

// AddCallback sets the callback fired when the named schedule runs.
// A later call for the same schedule replaces the callback.
func (s *Scheduler) AddCallback(scheduleName string, cb Callback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks[scheduleName] = cb
}

// TriggerSchedule fires a schedule's callback immediately with the
// given data. Returns ErrUnknownSchedule if no callback is registered.
func (s *Scheduler) TriggerSchedule(scheduleName string, data map[string]any) error {
	return s.fireSchedule(scheduleName, data)
}

func (s *Scheduler) fireSchedule(name string, data map[string]any) error {
	s.mu.Lock()
	cb, ok := s.callbacks[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSchedule, name)
	}
	return cb(ScheduleEvent{
		ScheduleName: name,
		Data:         data,
		Timestamp:    time.Now().UTC(),
	})
}

// Schedules returns the registered schedule names.
func (s *Scheduler) Schedules() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.schedules))
	for name := range s.schedules {
		names = append(names, name)
	}
	return names
}

func (s *Scheduler) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		case job := <-s.queue:
			s.runJob(ctx, job)
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil && s.logger != nil {
			s.logger.Error("job panicked",
				slog.String("job", job.Name),
				slog.String("job_id", job.ID),
				slog.Any("panic", r),
			)
		}
	}()

	if err := job.fn(ctx); err != nil {
		if s.logger != nil {
			s.logger.Error("job failed",
				slog.String("job", job.Name),
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	if s.logger != nil {
		s.logger.Debug("job completed",
			slog.String("job", job.Name),
			slog.String("job_id", job.ID),
		)
	}
}
