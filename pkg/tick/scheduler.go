// Package tick runs a callback on a fixed interval until cancelled.
package tick

import (
	"sync"
	"time"

	"github.com/BYTE-6D65/clockapp/pkg/clock"
)

// Scheduler fires a callback once per interval while active.
//
// At most one loop runs per Scheduler. Start on an active scheduler cancels
// the running loop before launching the new one, so callers never end up with
// two loops advancing the same counter.
type Scheduler struct {
	clk      clock.Clock
	interval time.Duration

	mu     sync.Mutex
	ticker clock.Ticker
	stop   chan struct{}

	loops sync.WaitGroup
}

// New creates an idle Scheduler.
func New(clk clock.Clock, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Scheduler{
		clk:      clk,
		interval: interval,
	}
}

// Interval returns the tick period.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Start begins calling fn every interval. The ticker is created before Start
// returns, so the first tick is due exactly one interval from now.
func (s *Scheduler) Start(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	stop := make(chan struct{})
	ticker := s.clk.NewTicker(s.interval)

	s.ticker = ticker
	s.stop = stop

	s.loops.Add(1)
	go func() {
		defer s.loops.Done()
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C():
				// A tick and a Stop can race in the select above; Stop wins.
				select {
				case <-stop:
					return
				default:
				}
				fn()
			}
		}
	}()
}

// Stop cancels the loop. It does not wait for an in-flight callback, so it is
// safe to call from inside fn or while holding a lock fn needs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Active reports whether a loop is running.
func (s *Scheduler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

// Wait blocks until every loop started so far has exited, including loops
// cancelled by a restart whose callback is still in flight. Callers must stop
// the scheduler first and must not call Start concurrently with Wait.
func (s *Scheduler) Wait() {
	s.loops.Wait()
}

func (s *Scheduler) stopLocked() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	s.ticker.Stop()
	s.stop = nil
	s.ticker = nil
}
