// Package messaging implements the notification channel of the leveling
// engine: a synchronous in-process event bus owned by one engine instance,
// and an optional Redis relay that mirrors events across processes.
package messaging

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/guild-leveling/internal/domain/shared"
	"github.com/alem-hub/guild-leveling/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-PROCESS EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// subscription is one registered handler.
type subscription struct {
	id        string
	eventType shared.EventType // empty for SubscribeAll
	once      bool
	handler   shared.EventHandler
}

func (s *subscription) matches(t shared.EventType) bool {
	return s.eventType == "" || s.eventType == t
}

// Bus is a synchronous, ordered event bus.
//
// Handlers run on the publishing goroutine in registration order, regardless
// of whether they were registered for one type or for all types. A failing or
// panicking handler is logged and does not stop delivery to the rest.
// Publish never reports handler failures to the caller.
type Bus struct {
	mu      sync.RWMutex
	subs    []*subscription
	logger  *logger.Logger
	metrics *EventBusMetrics
	closed  bool
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithBusLogger sets the logger used for handler failures.
func WithBusLogger(l *logger.Logger) BusOption {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBus creates an empty bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		logger:  logger.Nop(),
		metrics: NewEventBusMetrics(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With(logger.Component("eventbus"))
	return b
}

// Subscribe registers a handler for one event type and returns its ID.
func (b *Bus) Subscribe(eventType shared.EventType, handler shared.EventHandler) (string, error) {
	if eventType == "" {
		return "", ErrEmptyEventType
	}
	return b.add(&subscription{eventType: eventType, handler: handler})
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(handler shared.EventHandler) (string, error) {
	return b.add(&subscription{handler: handler})
}

// Once registers a handler that is removed after its first delivery.
func (b *Bus) Once(eventType shared.EventType, handler shared.EventHandler) (string, error) {
	if eventType == "" {
		return "", ErrEmptyEventType
	}
	return b.add(&subscription{eventType: eventType, once: true, handler: handler})
}

func (b *Bus) add(s *subscription) (string, error) {
	if s.handler == nil {
		return "", ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return "", ErrEventBusClosed
	}

	s.id = uuid.NewString()
	b.subs = append(b.subs, s)
	b.logger.Debug("subscribed handler", logger.String("event_type", string(s.eventType)), logger.String("subscription_id", s.id))

	return s.id, nil
}

// Unsubscribe removes a handler by ID. It reports whether one was removed.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of registered handlers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers the event to every matching handler before returning.
func (b *Bus) Publish(event shared.Event) error {
	if event == nil {
		return ErrNilEvent
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrEventBusClosed
	}

	// Snapshot under the lock; once-handlers leave the list before they run
	// so a re-entrant Publish cannot deliver to them twice.
	matched := make([]*subscription, 0, len(b.subs))
	kept := b.subs[:0:0]
	for _, s := range b.subs {
		if !s.matches(event.EventType()) {
			kept = append(kept, s)
			continue
		}
		matched = append(matched, s)
		if !s.once {
			kept = append(kept, s)
		}
	}
	b.subs = kept
	b.mu.Unlock()

	b.metrics.RecordPublish(event.EventType())

	for _, s := range matched {
		start := time.Now()
		err := b.invoke(s, event)
		b.metrics.RecordHandlerExecution(event.EventType(), time.Since(start), err == nil)

		if err != nil {
			b.logger.Error("event handler failed",
				logger.String("event_type", string(event.EventType())),
				logger.String("subscription_id", s.id),
				logger.Err(err),
			)
		}
	}

	return nil
}

// invoke runs one handler and turns a panic into an error.
func (b *Bus) invoke(s *subscription, event shared.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return s.handler(event)
}

// Close drops all handlers. Later Publish and Subscribe calls fail.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.subs = nil

	b.logger.Debug("event bus closed")
	return nil
}

// Metrics returns the bus counters.
func (b *Bus) Metrics() *EventBusMetrics {
	return b.metrics
}

var _ shared.EventBus = (*Bus)(nil)

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// EventBusMetrics tracks publish and handler counters.
type EventBusMetrics struct {
	mu sync.RWMutex

	PublishedTotal       map[shared.EventType]int64
	HandlerExecutions    int64
	HandlerFailures      int64
	HandlerTotalDuration time.Duration
}

// NewEventBusMetrics creates new metrics tracker.
func NewEventBusMetrics() *EventBusMetrics {
	return &EventBusMetrics{
		PublishedTotal: make(map[shared.EventType]int64),
	}
}

// RecordPublish records a publish event.
func (m *EventBusMetrics) RecordPublish(eventType shared.EventType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishedTotal[eventType]++
}

// RecordHandlerExecution records a handler execution.
func (m *EventBusMetrics) RecordHandlerExecution(_ shared.EventType, duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.HandlerExecutions++
	m.HandlerTotalDuration += duration
	if !success {
		m.HandlerFailures++
	}
}

// Snapshot returns a copy of current metrics.
func (m *EventBusMetrics) Snapshot() EventBusMetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total int64
	for _, v := range m.PublishedTotal {
		total += v
	}

	avg := time.Duration(0)
	if m.HandlerExecutions > 0 {
		avg = m.HandlerTotalDuration / time.Duration(m.HandlerExecutions)
	}

	return EventBusMetricsSnapshot{
		TotalPublished:         total,
		TotalHandlerExecs:      m.HandlerExecutions,
		HandlerFailures:        m.HandlerFailures,
		AverageHandlerDuration: avg,
	}
}

// EventBusMetricsSnapshot is a point-in-time snapshot of metrics.
type EventBusMetricsSnapshot struct {
	TotalPublished         int64
	TotalHandlerExecs      int64
	HandlerFailures        int64
	AverageHandlerDuration time.Duration
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrEventBusClosed is returned when operations are attempted on a closed bus.
	ErrEventBusClosed = errors.New("event bus is closed")

	// ErrHandlerPanic wraps a recovered handler panic.
	ErrHandlerPanic = errors.New("handler panicked")

	// ErrNilHandler is returned when subscribing a nil handler.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrNilEvent is returned when publishing a nil event.
	ErrNilEvent = errors.New("event cannot be nil")

	// ErrEmptyEventType is returned when subscribing without an event type.
	ErrEmptyEventType = errors.New("event type cannot be empty")
)
