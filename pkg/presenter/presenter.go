// Package presenter keeps a persistent status surface alive while a screen is
// in the background and its engine is running.
package presenter

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/BYTE-6D65/clockapp/pkg/clock"
	"github.com/BYTE-6D65/clockapp/pkg/engine"
	"github.com/BYTE-6D65/clockapp/pkg/surface"
	"github.com/BYTE-6D65/clockapp/pkg/telemetry"
	"github.com/BYTE-6D65/clockapp/pkg/tick"
)

// Source supplies the snapshot to render. *engine.Engine implements it.
type Source interface {
	Kind() engine.Kind
	Snapshot() engine.Snapshot
}

// Presenter drives one surface for one engine.
//
// The surface refresh runs on its own tick loop, separate from the engine's,
// so it keeps going with no screen subscribed. When the engine stops while
// the presenter is backgrounded the surface is left showing the final
// "Paused" line and refreshing stops until the engine runs again.
type Presenter struct {
	src      Source
	surf     surface.Surface
	clk      clock.Clock
	interval time.Duration
	logger   *log.Logger
	metrics  *telemetry.Metrics

	mu         sync.Mutex
	sched      *tick.Scheduler
	background bool
	refreshing bool
	shown      bool
	gen        uint64
	closed     bool
}

// Option configures a Presenter.
type Option func(*Presenter)

// WithClock sets the clock the refresh loop runs on.
func WithClock(clk clock.Clock) Option {
	return func(p *Presenter) {
		p.clk = clk
	}
}

// WithInterval sets the refresh period (default one second).
func WithInterval(d time.Duration) Option {
	return func(p *Presenter) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Presenter) {
		p.logger = l
	}
}

// WithMetrics records refreshes and surface state.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(p *Presenter) {
		p.metrics = m
	}
}

// New creates a foregrounded presenter. The presenter owns surf and closes it
// in Close.
func New(src Source, surf surface.Surface, opts ...Option) *Presenter {
	p := &Presenter{
		src:      src,
		surf:     surf,
		clk:      clock.NewSystemClock(),
		interval: time.Second,
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.sched = tick.New(p.clk, p.interval)
	return p
}

// MoveToBackground marks the screen hidden. A running engine gets its surface
// shown at once and refreshed every interval; an idle engine gets nothing.
func (p *Presenter) MoveToBackground(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.background = true
	p.logger.Debug("background", "kind", p.src.Kind())
	p.syncLocked(ctx)
}

// MoveToForeground marks the screen visible and tears the surface down.
func (p *Presenter) MoveToForeground(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.background = false
	p.logger.Debug("foreground", "kind", p.src.Kind())
	p.teardownLocked(ctx)
}

// Sync reconciles the surface with the engine after a command. It does
// nothing while foregrounded.
func (p *Presenter) Sync(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || !p.background {
		return
	}
	p.syncLocked(ctx)
}

// Background reports whether the screen is hidden.
func (p *Presenter) Background() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.background
}

// Active reports whether the refresh loop is running.
func (p *Presenter) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshing
}

// Shown reports whether a notice is on the surface.
func (p *Presenter) Shown() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shown
}

// Close removes the surface, stops refreshing and closes the surface.
func (p *Presenter) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.teardownLocked(ctx)
	p.background = false
	p.closed = true
	p.mu.Unlock()

	p.sched.Wait()
	return p.surf.Close()
}

func (p *Presenter) refresh(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || gen != p.gen || !p.refreshing {
		return
	}
	p.syncLocked(context.Background())
}

func (p *Presenter) syncLocked(ctx context.Context) {
	snap := p.src.Snapshot()

	switch {
	case snap.Running:
		p.showLocked(ctx, snap)
		if !p.refreshing {
			p.refreshing = true
			p.gen++
			gen := p.gen
			p.sched.Start(func() { p.refresh(gen) })
		}
	case p.refreshing:
		// Engine stopped while hidden: leave the final line up, stop refreshing.
		p.stopLocked()
		p.showLocked(ctx, snap)
	case p.shown:
		p.showLocked(ctx, snap)
	}
}

func (p *Presenter) teardownLocked(ctx context.Context) {
	p.stopLocked()
	if !p.shown {
		return
	}
	p.shown = false
	kind := string(p.src.Kind())
	p.metrics.SetSurfaceActive(kind, false)
	if err := p.surf.Dismiss(ctx); err != nil {
		p.metrics.RecordRefresh(kind, err)
		p.logger.Warn("dismiss surface", "kind", kind, "surface", p.surf.ID(), "err", err)
	}
}

func (p *Presenter) stopLocked() {
	if !p.refreshing {
		return
	}
	p.refreshing = false
	p.gen++
	p.sched.Stop()
}

func (p *Presenter) showLocked(ctx context.Context, snap engine.Snapshot) {
	kind := string(snap.Kind)
	n := surface.NewNotice(snap)
	err := p.surf.Show(ctx, n)
	p.metrics.RecordRefresh(kind, err)
	if err != nil {
		p.logger.Warn("show surface", "kind", kind, "surface", p.surf.ID(), "err", err)
		return
	}
	if !p.shown {
		p.shown = true
		p.metrics.SetSurfaceActive(kind, true)
	}
	p.logger.Debug("surface", "kind", kind, "line", n.Line)
}
