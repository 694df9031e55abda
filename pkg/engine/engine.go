// Package engine implements the stopwatch and countdown state machines.
//
// An Engine owns a counter, a running flag and a tick loop. All commands and
// ticks are applied under one lock, and every tick carries the generation it
// was scheduled under so a tick that loses a race with Pause, Reset or a
// restart is discarded instead of moving the counter.
package engine

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/BYTE-6D65/clockapp/pkg/clock"
	"github.com/BYTE-6D65/clockapp/pkg/statemachine"
	"github.com/BYTE-6D65/clockapp/pkg/telemetry"
	"github.com/BYTE-6D65/clockapp/pkg/tick"
)

// Publisher receives engine output. Implementations must not block: they are
// called with the engine lock held.
type Publisher interface {
	PublishTick(ctx context.Context, snap Snapshot) error
	PublishStatus(ctx context.Context, snap Snapshot) error
}

type nopPublisher struct{}

func (nopPublisher) PublishTick(context.Context, Snapshot) error   { return nil }
func (nopPublisher) PublishStatus(context.Context, Snapshot) error { return nil }

// Engine is a single stopwatch or countdown.
type Engine struct {
	policy   Policy
	pub      Publisher
	clk      clock.Clock
	interval time.Duration
	logger   *log.Logger
	metrics  *telemetry.Metrics

	mu      sync.Mutex
	machine *statemachine.Machine[State, Trigger]
	sched   *tick.Scheduler
	counter int64
	initial int64
	gen     uint64
	closed  bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithPublisher sets where ticks and status snapshots go.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) {
		e.pub = p
	}
}

// WithClock sets the clock the tick loop runs on.
func WithClock(clk clock.Clock) Option {
	return func(e *Engine) {
		e.clk = clk
	}
}

// WithInterval sets the tick period (default one second).
func WithInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMetrics records commands, ticks and state.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New creates an idle engine with counter 0.
func New(policy Policy, opts ...Option) *Engine {
	e := &Engine{
		policy:   policy,
		pub:      nopPublisher{},
		clk:      clock.NewSystemClock(),
		interval: time.Second,
		logger:   log.New(io.Discard),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.sched = tick.New(e.clk, e.interval)
	e.machine = newMachine()
	e.machine.OnTransition(func(from, to State, on Trigger) {
		e.logger.Debug("transition", "kind", e.policy.Kind(), "from", from, "to", to, "on", on)
	})

	return e
}

func newMachine() *statemachine.Machine[State, Trigger] {
	m := statemachine.NewMachine[State, Trigger](StateIdle)
	// The table is static; AddTransition only fails on duplicates.
	_ = m.AddTransition(StateIdle, TriggerStart, StateRunning)
	_ = m.AddTransition(StateRunning, TriggerPause, StateIdle)
	_ = m.AddTransition(StateRunning, TriggerReset, StateIdle)
	_ = m.AddTransition(StateIdle, TriggerReset, StateIdle)
	_ = m.AddTransition(StateRunning, TriggerExpire, StateIdle)
	return m
}

// Kind returns the engine kind.
func (e *Engine) Kind() Kind {
	return e.policy.Kind()
}

// Start begins counting. It does nothing, and publishes nothing, while the
// engine is already running. A countdown started at zero is armed with
// initial; otherwise initial is ignored.
func (e *Engine) Start(ctx context.Context, initial int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.machine.Is(StateRunning) {
		return
	}

	prev := e.counter
	e.counter = e.policy.Arm(e.counter, initial)
	if prev == 0 {
		e.initial = e.counter
	}

	e.fireLocked(TriggerStart)
	e.gen++
	gen := e.gen
	e.sched.Start(func() { e.tick(gen) })

	e.logger.Info("started", "kind", e.Kind(), "seconds", e.counter)
	e.metrics.RecordCommand(string(e.Kind()), "start")
	e.publishStatusLocked(ctx)
}

// Pause stops counting and keeps the counter.
func (e *Engine) Pause(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	if e.machine.Can(TriggerPause) {
		e.fireLocked(TriggerPause)
	}
	e.stopLocked()

	e.logger.Info("paused", "kind", e.Kind(), "seconds", e.counter)
	e.metrics.RecordCommand(string(e.Kind()), "pause")
	e.publishStatusLocked(ctx)
}

// Reset stops counting and zeroes the counter.
func (e *Engine) Reset(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	e.resetLocked(TriggerReset)

	e.logger.Info("reset", "kind", e.Kind())
	e.metrics.RecordCommand(string(e.Kind()), "reset")
	e.publishStatusLocked(ctx)
}

// Status publishes the current snapshot without changing anything.
func (e *Engine) Status(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	e.metrics.RecordCommand(string(e.Kind()), "status")
	e.publishStatusLocked(ctx)
}

// Snapshot returns the current status.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// State returns the state machine's current state. It is read under the same
// lock as Snapshot, so the two agree.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.machine.Current()
}

// Close stops the tick loop and discards the engine state. Commands after
// Close are ignored.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.resetLocked(TriggerReset)
	e.metrics.SetEngineState(string(e.Kind()), false, 0)
	e.mu.Unlock()

	// Loops cancelled earlier may still be waiting on e.mu; they see closed
	// and return.
	e.sched.Wait()
	e.logger.Debug("closed", "kind", e.Kind())
}

// tick applies one tick scheduled under generation gen.
func (e *Engine) tick(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || gen != e.gen || !e.machine.Is(StateRunning) {
		return
	}

	next, ok, done := e.policy.Advance(e.counter)
	if ok {
		e.counter = next
		e.metrics.RecordTick(string(e.Kind()), e.counter)
		e.logger.Debug("tick", "kind", e.Kind(), "seconds", e.counter)
		if err := e.pub.PublishTick(context.Background(), e.snapshotLocked()); err != nil {
			e.logger.Warn("publish tick", "kind", e.Kind(), "err", err)
		}
	}

	if done {
		e.resetLocked(TriggerExpire)
		e.metrics.RecordExpiration(string(e.Kind()))
		e.logger.Info("expired", "kind", e.Kind())
		e.publishStatusLocked(context.Background())
	}
}

func (e *Engine) resetLocked(on Trigger) {
	e.fireLocked(on)
	e.stopLocked()
	e.counter = 0
	e.initial = 0
}

// stopLocked cancels the tick loop and invalidates any tick already in flight.
func (e *Engine) stopLocked() {
	e.gen++
	e.sched.Stop()
}

func (e *Engine) fireLocked(on Trigger) {
	if _, _, err := e.machine.Fire(on); err != nil {
		// Every caller checks the state first; reaching here is a bug.
		e.logger.Error("state machine", "kind", e.Kind(), "err", err)
	}
}

func (e *Engine) snapshotLocked() Snapshot {
	return Snapshot{
		Kind:    e.Kind(),
		Running: e.machine.Is(StateRunning),
		Seconds: e.counter,
		Initial: e.initial,
	}
}

func (e *Engine) publishStatusLocked(ctx context.Context) {
	snap := e.snapshotLocked()
	e.metrics.SetEngineState(string(e.Kind()), snap.Running, snap.Seconds)
	if err := e.pub.PublishStatus(ctx, snap); err != nil {
		e.logger.Warn("publish status", "kind", e.Kind(), "err", err)
	}
}
