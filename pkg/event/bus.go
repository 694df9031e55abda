package event

import (
	"context"
	"errors"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/BYTE-6D65/clockapp/pkg/telemetry"
)

// ErrBusClosed is returned by Publish and Subscribe after Close.
var ErrBusClosed = errors.New("event: bus is closed")

// Bus defines the interface for an event bus that supports publish/subscribe patterns.
type Bus interface {
	// Publish sends an event to all matching subscribers
	Publish(ctx context.Context, evt Event) error

	// Subscribe creates a subscription with optional filtering
	Subscribe(ctx context.Context, filter Filter) (Subscription, error)

	// Close shuts down the bus and releases all resources
	Close() error
}

// Filter defines criteria for filtering events in a subscription.
// Empty fields match everything.
type Filter struct {
	// Types specifies event types to match (supports wildcards like "clock.*.tick")
	Types []string

	// Sources specifies event sources to match
	Sources []string

	// Metadata specifies metadata key-value pairs that must match
	Metadata map[string]string
}

// Subscription represents an active subscription to an event bus.
type Subscription interface {
	// ID identifies the subscription in logs
	ID() string

	// Events returns a channel that receives matching events. It is closed
	// when the subscription or the bus is closed.
	Events() <-chan Event

	// Close unsubscribes and releases resources
	Close() error
}

// InMemoryBus is an in-memory implementation of the Bus interface.
// Events published with no matching subscriber are discarded; nothing is
// buffered for late subscribers.
type InMemoryBus struct {
	mu            sync.RWMutex
	name          string
	subscriptions map[string]*inMemorySubscription
	closed        bool
	bufferSize    int
	dropSlow      bool // If true, drop events for slow subscribers; if false, block
	metrics       *telemetry.Metrics

	// done is closed first thing in Close so blocked publishers let go of
	// the read lock before Close takes the write lock.
	done      chan struct{}
	closeOnce sync.Once
}

// BusOption configures an InMemoryBus.
type BusOption func(*InMemoryBus)

// WithBufferSize sets the buffer size for subscription channels.
func WithBufferSize(size int) BusOption {
	return func(b *InMemoryBus) {
		if size >= 0 {
			b.bufferSize = size
		}
	}
}

// WithDropSlow configures whether to drop events for slow subscribers (true)
// or block until they catch up (false).
func WithDropSlow(drop bool) BusOption {
	return func(b *InMemoryBus) {
		b.dropSlow = drop
	}
}

// WithBusName labels the bus in metrics and logs.
func WithBusName(name string) BusOption {
	return func(b *InMemoryBus) {
		b.name = name
	}
}

// WithMetrics records publish/drop/subscriber metrics.
func WithMetrics(m *telemetry.Metrics) BusOption {
	return func(b *InMemoryBus) {
		b.metrics = m
	}
}

// NewInMemoryBus creates a new in-memory event bus with the given options.
func NewInMemoryBus(opts ...BusOption) *InMemoryBus {
	bus := &InMemoryBus{
		name:          "default",
		subscriptions: make(map[string]*inMemorySubscription),
		bufferSize:    64,
		done:          make(chan struct{}),
	}

	for _, opt := range opts {
		opt(bus)
	}

	return bus
}

// Name returns the bus label.
func (b *InMemoryBus) Name() string {
	return b.name
}

// Subscribers returns the number of live subscriptions.
func (b *InMemoryBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions)
}

// Publish sends an event to all matching subscribers.
func (b *InMemoryBus) Publish(ctx context.Context, evt Event) error {
	timer := telemetry.NewTimer()

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}

	for _, sub := range b.subscriptions {
		if !sub.matches(evt) {
			continue
		}
		delivered, err := sub.send(ctx, evt, b.dropSlow, b.done)
		if err != nil {
			return err
		}
		if !delivered {
			b.metrics.RecordDrop(b.name, evt.Type)
		}
	}

	b.metrics.RecordPublish(b.name, evt.Type, timer.Elapsed())
	return nil
}

// Subscribe creates a new subscription with the given filter.
func (b *InMemoryBus) Subscribe(ctx context.Context, filter Filter) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	sub := &inMemorySubscription{
		id:     "sub-" + uuid.NewString()[:8],
		bus:    b,
		filter: filter,
		ch:     make(chan Event, b.bufferSize),
		done:   make(chan struct{}),
	}

	b.subscriptions[sub.id] = sub
	b.metrics.SetSubscribers(b.name, len(b.subscriptions))
	return sub, nil
}

// Close shuts down the bus and all subscriptions.
func (b *InMemoryBus) Close() error {
	b.closeOnce.Do(func() { close(b.done) })

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true

	for _, sub := range b.subscriptions {
		sub.closeChannel()
	}

	b.subscriptions = nil
	b.metrics.SetSubscribers(b.name, 0)
	return nil
}

// inMemorySubscription represents a single subscription.
//
// ch is only closed under the bus write lock, and senders hold the read lock,
// so a send never races the close. done unblocks a sender waiting on a full
// channel so Close can acquire the write lock.
type inMemorySubscription struct {
	id     string
	bus    *InMemoryBus
	filter Filter
	ch     chan Event
	closed bool // guarded by bus.mu

	done     chan struct{}
	doneOnce sync.Once
}

func (s *inMemorySubscription) ID() string {
	return s.id
}

// Events returns the channel that receives events.
func (s *inMemorySubscription) Events() <-chan Event {
	return s.ch
}

// Close unsubscribes and closes the event channel.
func (s *inMemorySubscription) Close() error {
	s.doneOnce.Do(func() { close(s.done) })

	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	if s.bus.subscriptions != nil {
		delete(s.bus.subscriptions, s.id)
		s.bus.metrics.SetSubscribers(s.bus.name, len(s.bus.subscriptions))
	}
	s.closeChannel()
	return nil
}

// closeChannel closes the event channel (bus write lock held).
func (s *inMemorySubscription) closeChannel() {
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// send delivers evt and reports whether it was delivered (bus read lock
// held). In blocking mode it waits for buffer space, cancellation of ctx, or
// the subscription or bus closing.
func (s *inMemorySubscription) send(ctx context.Context, evt Event, dropSlow bool, busDone <-chan struct{}) (bool, error) {
	if s.closed {
		return false, nil
	}

	if dropSlow {
		select {
		case s.ch <- evt:
			return true, nil
		default:
			return false, nil
		}
	}

	select {
	case s.ch <- evt:
		return true, nil
	case <-s.done:
		return false, nil
	case <-busDone:
		return false, ErrBusClosed
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// matches checks if an event matches the subscription filter.
func (s *inMemorySubscription) matches(evt Event) bool {
	if len(s.filter.Types) > 0 && !matchesAny(evt.Type, s.filter.Types) {
		return false
	}

	if len(s.filter.Sources) > 0 && !matchesAny(evt.Source, s.filter.Sources) {
		return false
	}

	for key, value := range s.filter.Metadata {
		if evt.Metadata[key] != value {
			return false
		}
	}

	return true
}

// matchesAny checks if a string matches any pattern in the list.
// Supports wildcard patterns using filepath.Match syntax.
func matchesAny(str string, patterns []string) bool {
	for _, pattern := range patterns {
		matched, err := filepath.Match(pattern, str)
		if err == nil && matched {
			return true
		}
	}
	return false
}
