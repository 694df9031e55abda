// Package status carries engine snapshots from engines to screens.
//
// Publishing is fire-and-forget: a snapshot with no listener is dropped and
// nothing is replayed, so a new listener asks for GET_STATUS instead of
// waiting for the next tick.
package status

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/BYTE-6D65/clockapp/pkg/engine"
	"github.com/BYTE-6D65/clockapp/pkg/event"
)

// ErrClosed is returned by Recv once the listener or its bus is closed.
var ErrClosed = errors.New("status: listener closed")

// UpdateType distinguishes periodic ticks from status snapshots.
type UpdateType string

const (
	UpdateTick   UpdateType = "tick"
	UpdateStatus UpdateType = "status"
)

// TickType is the event type of tick updates for kind.
func TickType(kind engine.Kind) string {
	return "clock." + string(kind) + ".tick"
}

// StatusType is the event type of status updates for kind.
func StatusType(kind engine.Kind) string {
	return "clock." + string(kind) + ".status"
}

// Publisher implements engine.Publisher on top of an event bus.
type Publisher struct {
	bus    event.Bus
	source string
	codec  event.EventCodec
	logger *log.Logger
}

var _ engine.Publisher = (*Publisher)(nil)

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithSource sets the event source (default "engine").
func WithSource(source string) PublisherOption {
	return func(p *Publisher) {
		p.source = source
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = l
	}
}

// NewPublisher publishes to bus. The bus should drop for slow subscribers,
// since engines publish while holding their lock.
func NewPublisher(bus event.Bus, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		bus:    bus,
		source: "engine",
		codec:  event.JSONCodec{},
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PublishTick sends a tick update.
func (p *Publisher) PublishTick(ctx context.Context, snap engine.Snapshot) error {
	return p.publish(ctx, TickType(snap.Kind), snap)
}

// PublishStatus sends a status update.
func (p *Publisher) PublishStatus(ctx context.Context, snap engine.Snapshot) error {
	return p.publish(ctx, StatusType(snap.Kind), snap)
}

func (p *Publisher) publish(ctx context.Context, eventType string, snap engine.Snapshot) error {
	evt, err := event.NewEvent(eventType, p.source, snap, p.codec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}
	evt = evt.WithMetadata("kind", string(snap.Kind))

	if err := p.bus.Publish(ctx, evt); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	p.logger.Debug("published", "type", eventType, "running", snap.Running, "seconds", snap.Seconds)
	return nil
}
