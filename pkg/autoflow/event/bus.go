package event

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// BusConfig configures bus behavior.
type BusConfig struct {
	// BufferSize is the queue capacity per subscription.
	// Default: 256
	BufferSize int

	// DropNewest makes Publish non-blocking: when a subscription's
	// queue is full the event is dropped for that subscription and
	// counted. Default: false (Publish blocks until there is room,
	// or the context is cancelled).
	DropNewest bool

	// OnDrop is called when an event is dropped (DropNewest mode).
	OnDrop func(evt Event, pattern string)

	// OnError is called when a handler returns an error or panics.
	OnError func(evt Event, pattern string, err error)

	// Logger receives dispatch diagnostics. Nil disables logging.
	Logger *slog.Logger
}

// DefaultBusConfig provides reasonable defaults.
var DefaultBusConfig = BusConfig{
	BufferSize: 256,
}

// Bus is an in-process pub/sub hub with bounded per-subscription
// queueing and isolated handler failure. See the package documentation
// for matching and ordering semantics.
//
// The zero value is not usable; create a Bus with NewBus. A Bus has a
// one-shot lifecycle: Start, publish, Stop.
type Bus struct {
	config BusConfig

	mu   sync.RWMutex
	subs []*Subscription // registration order

	running atomic.Bool
	closed  atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	statsMu     sync.Mutex
	eventCounts map[string]int
	errorCounts map[string]int
	dropped     atomic.Int64
}

// NewBus creates a new bus. Subscriptions may be registered before
// Start; publishing requires a running bus.
func NewBus(config BusConfig) *Bus {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultBusConfig.BufferSize
	}
	return &Bus{
		config:      config,
		stopCh:      make(chan struct{}),
		eventCounts: make(map[string]int),
		errorCounts: make(map[string]int),
	}
}

// Subscription is an active registration of a handler under a pattern.
type Subscription struct {
	pattern string
	handler Handler
	events  chan Event
	done    chan struct{}
	once    sync.Once
	bus     *Bus
}

// Pattern returns the topic pattern this subscription was registered under.
func (s *Subscription) Pattern() string { return s.pattern }

// Unsubscribe removes the registration. Events already queued for this
// subscription are discarded. Idempotent.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	for i, sub := range s.bus.subs {
		if sub == s {
			s.bus.subs = append(s.bus.subs[:i], s.bus.subs[i+1:]...)
			break
		}
	}
	s.bus.mu.Unlock()

	s.once.Do(func() { close(s.done) })
}

// Start begins dispatching published events. Idempotent while the bus
// is live; a stopped bus cannot be restarted.
func (b *Bus) Start() error {
	if b.closed.Load() {
		return ErrBusClosed
	}
	if b.running.CompareAndSwap(false, true) {
		if b.config.Logger != nil {
			b.config.Logger.Info("event bus started")
		}
	}
	return nil
}

// Stop rejects further publishes, lets each subscription drain its
// queued events, and waits for in-flight handlers to return.
func (b *Bus) Stop() error {
	if !b.running.CompareAndSwap(true, false) {
		return nil
	}
	b.closed.Store(true)
	close(b.stopCh)

	b.mu.Lock()
	for _, sub := range b.subs {
		s := sub
		s.once.Do(func() { close(s.done) })
	}
	b.subs = nil
	b.mu.Unlock()

	b.wg.Wait()
	if b.config.Logger != nil {
		b.config.Logger.Info("event bus stopped")
	}
	return nil
}

// Subscribe registers a handler under a topic pattern and starts its
// worker. Registering the same handler again - under the same pattern
// or another matching one - creates an independent subscription that
// fires separately; the bus never deduplicates by handler identity.
func (b *Bus) Subscribe(pattern string, handler Handler) (*Subscription, error) {
	if b.closed.Load() {
		return nil, ErrBusClosed
	}
	if !validPattern(pattern) {
		return nil, fmt.Errorf("pattern %q: %w", pattern, ErrInvalidPattern)
	}
	if handler == nil {
		return nil, ErrNilHandler
	}

	sub := &Subscription{
		pattern: pattern,
		handler: handler,
		events:  make(chan Event, b.config.BufferSize),
		done:    make(chan struct{}),
		bus:     b,
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	b.wg.Add(1)
	go sub.process()

	return sub, nil
}

// Publish enqueues the event for every subscription whose pattern
// matches, in registration order. Matching is evaluated against the
// subscriptions present at publish time.
//
// In the default blocking mode Publish waits for room in each full
// queue; with DropNewest the event is dropped for that subscription
// instead. An event delivered to one subscription may be dropped for
// another.
func (b *Bus) Publish(ctx context.Context, evt Event) error {
	if evt.Type == "" {
		return ErrEmptyEventType
	}
	if !b.running.Load() {
		return ErrBusNotRunning
	}

	b.statsMu.Lock()
	b.eventCounts[evt.Type]++
	b.statsMu.Unlock()

	b.mu.RLock()
	matched := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if MatchTopic(sub.pattern, evt.Type) {
			matched = append(matched, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range matched {
		if b.config.DropNewest {
			select {
			case sub.events <- evt:
			default:
				b.dropped.Add(1)
				if b.config.OnDrop != nil {
					b.config.OnDrop(evt, sub.pattern)
				}
				if b.config.Logger != nil {
					b.config.Logger.Warn("event dropped, subscription queue full",
						slog.String("topic", evt.Type),
						slog.String("pattern", sub.pattern),
					)
				}
			}
		} else {
			select {
			case sub.events <- evt:
			case <-ctx.Done():
				return ctx.Err()
			case <-b.stopCh:
				return ErrBusNotRunning
			}
		}
	}

	return nil
}

// Stats is a point-in-time snapshot of bus counters.
type Stats struct {
	// Running reports whether the bus accepts publishes.
	Running bool

	// Subscriptions is the number of live subscriptions.
	Subscriptions int

	// SubscriberCounts maps pattern to the number of subscriptions
	// registered under it.
	SubscriberCounts map[string]int

	// EventCounts maps topic to the number of events published to it.
	EventCounts map[string]int

	// ErrorCounts maps topic to the number of handler failures
	// (errors and panics) while dispatching it.
	ErrorCounts map[string]int

	// Dropped is the total number of per-subscription drops.
	Dropped int64
}

// GetStats returns a snapshot of the bus counters.
func (b *Bus) GetStats() Stats {
	b.mu.RLock()
	subCounts := make(map[string]int, len(b.subs))
	for _, sub := range b.subs {
		subCounts[sub.pattern]++
	}
	total := len(b.subs)
	b.mu.RUnlock()

	b.statsMu.Lock()
	events := make(map[string]int, len(b.eventCounts))
	for k, v := range b.eventCounts {
		events[k] = v
	}
	errs := make(map[string]int, len(b.errorCounts))
	for k, v := range b.errorCounts {
		errs[k] = v
	}
	b.statsMu.Unlock()

	return Stats{
		Running:          b.running.Load(),
		Subscriptions:    total,
		SubscriberCounts: subCounts,
		EventCounts:      events,
		ErrorCounts:      errs,
		Dropped:          b.dropped.Load(),
	}
}

// process drains a subscription's queue. Events buffered at shutdown
// are still delivered before the worker exits.
func (s *Subscription) process() {
	defer s.bus.wg.Done()
	for {
		select {
		case evt := <-s.events:
			s.bus.dispatch(s, evt)
		case <-s.done:
			for {
				select {
				case evt := <-s.events:
					s.bus.dispatch(s, evt)
				default:
					return
				}
			}
		}
	}
}

// dispatch invokes a handler with failure isolation. Errors and panics
// are counted per topic and logged; they never propagate.
func (b *Bus) dispatch(s *Subscription, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.recordHandlerFailure(s, evt, fmt.Errorf("handler panic: %v", r))
		}
	}()

	if err := s.handler(context.Background(), evt); err != nil {
		b.recordHandlerFailure(s, evt, err)
	}
}

func (b *Bus) recordHandlerFailure(s *Subscription, evt Event, err error) {
	b.statsMu.Lock()
	b.errorCounts[evt.Type]++
	b.statsMu.Unlock()

	if b.config.OnError != nil {
		b.config.OnError(evt, s.pattern, err)
	}
	if b.config.Logger != nil {
		b.config.Logger.Error("event handler failed",
			slog.String("topic", evt.Type),
			slog.String("event_id", evt.ID),
			slog.String("pattern", s.pattern),
			slog.String("error", err.Error()),
		)
	}
}
