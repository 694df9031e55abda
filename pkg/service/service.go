// Package service runs one engine and its presenter as a long-lived actor
// fed by the command bus.
package service

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/BYTE-6D65/clockapp/pkg/engine"
	"github.com/BYTE-6D65/clockapp/pkg/event"
	"github.com/BYTE-6D65/clockapp/pkg/presenter"
)

// Service owns an Engine and a Presenter for one kind.
//
// Commands are applied in the order they arrive on the bus. Ending Serve
// tears the surface down and discards the engine state; the host decides when
// that happens.
type Service struct {
	engine    *engine.Engine
	presenter *presenter.Presenter
	logger    *log.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// New wires an engine to its presenter.
func New(eng *engine.Engine, pres *presenter.Presenter, opts ...Option) *Service {
	s := &Service{
		engine:    eng,
		presenter: pres,
		logger:    log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Kind returns the engine kind.
func (s *Service) Kind() engine.Kind {
	return s.engine.Kind()
}

// Engine returns the owned engine.
func (s *Service) Engine() *engine.Engine {
	return s.engine
}

// Presenter returns the owned presenter.
func (s *Service) Presenter() *presenter.Presenter {
	return s.presenter
}

// Subscribe registers for commands addressed to this service's kind. Commands
// published before Subscribe returns are not seen.
func (s *Service) Subscribe(ctx context.Context, bus event.Bus) (event.Subscription, error) {
	sub, err := bus.Subscribe(ctx, event.Filter{
		Types: []string{event.CommandType(string(s.Kind()))},
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s commands: %w", s.Kind(), err)
	}
	return sub, nil
}

// Serve applies commands from sub until ctx is done or the bus closes, then
// closes sub and tears the service down.
func (s *Service) Serve(ctx context.Context, sub event.Subscription) error {
	s.logger.Info("service started", "kind", s.Kind(), "subscription", sub.ID())

	defer func() {
		sub.Close()
		s.Close(context.Background())
		s.logger.Info("service stopped", "kind", s.Kind())
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-sub.Events():
			if !ok {
				return nil
			}
			cmd, err := event.DecodeCommand(evt)
			if err != nil {
				s.logger.Warn("dropping command", "kind", s.Kind(), "event", evt.ID, "err", err)
				continue
			}
			if err := s.Handle(ctx, cmd); err != nil {
				s.logger.Warn("command failed", "kind", s.Kind(), "action", cmd.Action, "err", err)
			}
		}
	}
}

// Handle applies one command. The presenter is reconciled after every engine
// command so a hidden screen tracks start, pause and reset.
func (s *Service) Handle(ctx context.Context, cmd event.Command) error {
	if cmd.Target != "" && cmd.Target != string(s.Kind()) {
		return fmt.Errorf("command for %q sent to %s service", cmd.Target, s.Kind())
	}

	s.logger.Debug("command", "kind", s.Kind(), "action", cmd.Action, "initial", cmd.InitialSeconds)

	switch cmd.Action {
	case event.ActionStart:
		s.engine.Start(ctx, cmd.InitialSeconds)
	case event.ActionPause:
		s.engine.Pause(ctx)
	case event.ActionReset:
		s.engine.Reset(ctx)
	case event.ActionGetStatus:
		s.engine.Status(ctx)
	case event.ActionMoveToForeground:
		s.presenter.MoveToForeground(ctx)
		return nil
	case event.ActionMoveToBackground:
		s.presenter.MoveToBackground(ctx)
		return nil
	default:
		return fmt.Errorf("%w: %q", event.ErrUnknownCommand, cmd.Action)
	}

	s.presenter.Sync(ctx)
	return nil
}

// Close removes the surface and discards the engine state. Safe to call more
// than once.
func (s *Service) Close(ctx context.Context) error {
	err := s.presenter.Close(ctx)
	s.engine.Close()
	if err != nil {
		return fmt.Errorf("close %s presenter: %w", s.Kind(), err)
	}
	return nil
}
