// Package app wires clockapp together: the command and status buses, one
// service per engine kind, and their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/BYTE-6D65/clockapp/pkg/clock"
	"github.com/BYTE-6D65/clockapp/pkg/engine"
	"github.com/BYTE-6D65/clockapp/pkg/event"
	"github.com/BYTE-6D65/clockapp/pkg/presenter"
	"github.com/BYTE-6D65/clockapp/pkg/registry"
	"github.com/BYTE-6D65/clockapp/pkg/service"
	"github.com/BYTE-6D65/clockapp/pkg/status"
	"github.com/BYTE-6D65/clockapp/pkg/surface"
	"github.com/BYTE-6D65/clockapp/pkg/telemetry"
)

// ErrStarted is returned by Start on an App that was already started.
var ErrStarted = errors.New("app: already started")

// App owns the buses and the per-kind services.
type App struct {
	cfg      Config
	clk      clock.Clock
	logger   *log.Logger
	reg      prometheus.Registerer
	metrics  *telemetry.Metrics
	surfaces map[engine.Kind]surface.Surface

	commands *event.InMemoryBus
	statuses *event.InMemoryBus
	services *registry.Registry[engine.Kind, *service.Service]

	mu      sync.Mutex
	group   *errgroup.Group
	cancel  context.CancelFunc
	started bool
}

// Option configures an App.
type Option func(*App)

// WithClock sets the clock used by every engine and presenter.
func WithClock(clk clock.Clock) Option {
	return func(a *App) {
		a.clk = clk
	}
}

// WithLogger sets the root logger.
func WithLogger(l *log.Logger) Option {
	return func(a *App) {
		a.logger = l
	}
}

// WithRegisterer registers metrics with reg instead of a private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(a *App) {
		a.reg = reg
	}
}

// WithSurface sets the persistent surface for kind (default: a LogSurface).
func WithSurface(kind engine.Kind, s surface.Surface) Option {
	return func(a *App) {
		a.surfaces[kind] = s
	}
}

// New builds an App from cfg.
// Defaults:
// - Command bus: blocking, CommandBufferSize per service
// - Status bus: drop-slow, StatusBufferSize per listener
// - Clock: SystemClock (monotonic)
// - One Stopwatch and one Countdown service
func New(cfg Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a := &App{
		cfg:      cfg,
		clk:      clock.NewSystemClock(),
		logger:   log.New(io.Discard),
		surfaces: make(map[engine.Kind]surface.Surface),
		services: registry.New[engine.Kind, *service.Service](),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.reg == nil {
		a.reg = prometheus.NewRegistry()
	}
	a.metrics = telemetry.InitMetrics(a.reg)

	a.commands = event.NewInMemoryBus(
		event.WithBufferSize(cfg.CommandBufferSize),
		event.WithDropSlow(false),
		event.WithBusName("command"),
		event.WithMetrics(a.metrics),
	)
	a.statuses = event.NewInMemoryBus(
		event.WithBufferSize(cfg.StatusBufferSize),
		event.WithDropSlow(true),
		event.WithBusName("status"),
		event.WithMetrics(a.metrics),
	)

	for _, kind := range engine.Kinds {
		if err := a.register(kind); err != nil {
			return nil, err
		}
	}

	return a, nil
}

func (a *App) register(kind engine.Kind) error {
	policy, err := engine.NewPolicy(kind)
	if err != nil {
		return err
	}
	logger := a.logger.WithPrefix(string(kind))

	pub := status.NewPublisher(a.statuses,
		status.WithSource("engine:"+string(kind)),
		status.WithLogger(logger),
	)
	eng := engine.New(policy,
		engine.WithPublisher(pub),
		engine.WithClock(a.clk),
		engine.WithInterval(a.cfg.TickInterval),
		engine.WithLogger(logger),
		engine.WithMetrics(a.metrics),
	)

	surf, ok := a.surfaces[kind]
	if !ok {
		surf = surface.NewLogSurface(string(kind), logger)
	}
	pres := presenter.New(eng, surf,
		presenter.WithClock(a.clk),
		presenter.WithInterval(a.cfg.SurfaceInterval),
		presenter.WithLogger(logger),
		presenter.WithMetrics(a.metrics),
	)

	svc := service.New(eng, pres, service.WithLogger(logger))
	if err := a.services.Register(kind, svc); err != nil {
		return fmt.Errorf("register %s service: %w", kind, err)
	}
	return nil
}

// Start subscribes every service to the command bus and runs them until ctx
// is done or Shutdown is called. Commands sent after Start returns are
// delivered.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return ErrStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)

	subs := make(map[engine.Kind]event.Subscription)
	for _, entry := range a.services.List() {
		sub, err := entry.Value.Subscribe(gctx, a.commands)
		if err != nil {
			for _, s := range subs {
				s.Close()
			}
			cancel()
			return err
		}
		subs[entry.Key] = sub
	}

	for _, entry := range a.services.List() {
		svc, sub := entry.Value, subs[entry.Key]
		g.Go(func() error {
			return svc.Serve(gctx, sub)
		})
	}

	a.group = g
	a.cancel = cancel
	a.started = true
	a.logger.Info("started", "services", a.services.Keys())
	return nil
}

// Wait blocks until every service has stopped.
func (a *App) Wait() error {
	a.mu.Lock()
	g := a.group
	a.mu.Unlock()

	if g == nil {
		return nil
	}
	return g.Wait()
}

// Send publishes a command for kind. initial is only read by a countdown
// START. Blocks while the service's command buffer is full.
func (a *App) Send(ctx context.Context, kind engine.Kind, action event.Action, initial int64) error {
	evt, err := event.NewCommandEvent(event.Command{
		Target:         string(kind),
		Action:         action,
		InitialSeconds: initial,
	}, "app")
	if err != nil {
		return err
	}
	if err := a.commands.Publish(ctx, evt); err != nil {
		return fmt.Errorf("send %s to %s: %w", action, kind, err)
	}
	return nil
}

// Listen subscribes to the updates of kind. Send GET_STATUS afterwards to
// receive the current snapshot.
func (a *App) Listen(ctx context.Context, kind engine.Kind) (*status.Listener, error) {
	return status.Subscribe(ctx, a.statuses, kind)
}

// Service returns the service for kind.
func (a *App) Service(kind engine.Kind) (*service.Service, bool) {
	return a.services.Get(kind)
}

// Config returns the configuration the App was built with.
func (a *App) Config() Config {
	return a.cfg
}

// Metrics returns the App's metrics.
func (a *App) Metrics() *telemetry.Metrics {
	return a.metrics
}

// Shutdown stops every service, removing their surfaces, then closes both
// buses.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	started, cancel, g := a.started, a.cancel, a.group
	a.mu.Unlock()

	if started {
		cancel()
		waitCh := make(chan error, 1)
		go func() { waitCh <- g.Wait() }()

		select {
		case err := <-waitCh:
			if err != nil {
				a.logger.Warn("service exited with error", "err", err)
			}
		case <-ctx.Done():
			return fmt.Errorf("shutdown cancelled: %w", ctx.Err())
		}
	} else {
		a.services.Range(func(_ engine.Kind, svc *service.Service) bool {
			svc.Close(ctx)
			return true
		})
	}

	errCh := make(chan error, 2)

	// Close command bus
	go func() {
		if err := a.commands.Close(); err != nil {
			errCh <- fmt.Errorf("command bus shutdown: %w", err)
		} else {
			errCh <- nil
		}
	}()

	// Close status bus
	go func() {
		if err := a.statuses.Close(); err != nil {
			errCh <- fmt.Errorf("status bus shutdown: %w", err)
		} else {
			errCh <- nil
		}
	}()

	// Wait for both to complete or context to cancel
	var errs []error
	for i := 0; i < 2; i++ {
		select {
		case err := <-errCh:
			if err != nil {
				errs = append(errs, err)
			}
		case <-ctx.Done():
			return fmt.Errorf("shutdown cancelled: %w", ctx.Err())
		}
	}

	a.logger.Info("stopped")
	return errors.Join(errs...)
}
