package clock

import (
	"sync"
	"time"
)

// ManualClock is a Clock whose time only moves when told to. Tickers created
// from it fire synchronously inside Advance, which makes tick-driven code
// deterministic under test.
//
// Tick channels hold one pending tick. Advancing several periods at once while
// nobody reads drops the extra ticks, the same as time.Ticker does.
type ManualClock struct {
	mu sync.Mutex

	current MonoTime        // Current monotonic time
	deltas  []time.Duration // Pre-loaded steps for Step
	index   int             // Next position in deltas
	tickers []*manualTicker
}

// NewManualClock creates a ManualClock at MonoTime zero.
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

// Now returns the current monotonic time.
func (c *ManualClock) Now() MonoTime {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Since returns the duration elapsed since the given time.
func (c *ManualClock) Since(t MonoTime) time.Duration {
	return ToDuration(c.Now() - t)
}

// NewTicker registers a ticker that fires every d of manual time.
func (c *ManualClock) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	t := &manualTicker{
		clk:    c,
		period: FromDuration(d),
		next:   c.current + FromDuration(d),
		ch:     make(chan time.Time, 1),
	}
	c.tickers = append(c.tickers, t)
	return t
}

// Advance moves time forward by d, firing every ticker that comes due in
// chronological order.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	target := c.current + FromDuration(d)
	for {
		due := c.earliestDueLocked(target)
		if due == nil {
			break
		}
		c.current = due.next
		due.fire(c.current)
		due.next += due.period
	}
	c.current = target
}

// Load replaces the step sequence consumed by Step.
func (c *ManualClock) Load(deltas []time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.deltas = make([]time.Duration, len(deltas))
	copy(c.deltas, deltas)
	c.index = 0
}

// Step advances by the next loaded delta. It reports false once the sequence
// is exhausted.
func (c *ManualClock) Step() bool {
	c.mu.Lock()
	if c.index >= len(c.deltas) {
		c.mu.Unlock()
		return false
	}
	delta := c.deltas[c.index]
	c.index++
	c.mu.Unlock()

	c.Advance(delta)
	return true
}

// HasNext returns true if there are more loaded deltas.
func (c *ManualClock) HasNext() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index < len(c.deltas)
}

// Tickers returns the number of live (not stopped) tickers.
func (c *ManualClock) Tickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

func (c *ManualClock) earliestDueLocked(target MonoTime) *manualTicker {
	var due *manualTicker
	for _, t := range c.tickers {
		if t.next > target {
			continue
		}
		if due == nil || t.next < due.next {
			due = t
		}
	}
	return due
}

func (c *ManualClock) removeLocked(t *manualTicker) {
	for i, other := range c.tickers {
		if other == t {
			c.tickers = append(c.tickers[:i], c.tickers[i+1:]...)
			return
		}
	}
}

type manualTicker struct {
	clk    *ManualClock
	period MonoTime
	next   MonoTime
	ch     chan time.Time
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() {
	t.clk.mu.Lock()
	defer t.clk.mu.Unlock()
	t.clk.removeLocked(t)
}

// fire is called with the clock lock held.
func (t *manualTicker) fire(now MonoTime) {
	select {
	case t.ch <- time.Unix(0, 0).Add(ToDuration(now)):
	default:
	}
}
