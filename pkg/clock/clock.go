package clock

import "time"

// MonoTime represents a monotonic timestamp in nanoseconds since an arbitrary epoch.
type MonoTime int64

// Clock provides monotonic time and periodic tickers.
// Everything that counts seconds takes a Clock so tests can drive time by hand.
type Clock interface {
	// Now returns the current monotonic time
	Now() MonoTime

	// Since returns the duration elapsed since the given monotonic time
	Since(t MonoTime) time.Duration

	// NewTicker returns a ticker that fires every d until stopped
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers periodic ticks. Like time.Ticker, slow readers miss ticks
// instead of queueing them.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// ToDuration converts a MonoTime (nanoseconds) to a time.Duration.
func ToDuration(ns MonoTime) time.Duration {
	return time.Duration(ns)
}

// FromDuration converts a time.Duration to MonoTime (nanoseconds).
func FromDuration(d time.Duration) MonoTime {
	return MonoTime(d.Nanoseconds())
}

// SystemClock uses the system's monotonic clock.
type SystemClock struct {
	epoch time.Time // Cached at creation to provide stable monotonic base
}

// NewSystemClock creates a new SystemClock anchored at the current time.
func NewSystemClock() *SystemClock {
	return &SystemClock{
		epoch: time.Now(),
	}
}

// Now returns the current monotonic time in nanoseconds since epoch.
func (s *SystemClock) Now() MonoTime {
	return FromDuration(time.Since(s.epoch))
}

// Since returns the duration elapsed since the given monotonic time.
func (s *SystemClock) Since(t MonoTime) time.Duration {
	return ToDuration(s.Now() - t)
}

// NewTicker wraps time.NewTicker.
func (s *SystemClock) NewTicker(d time.Duration) Ticker {
	return &systemTicker{t: time.NewTicker(d)}
}

type systemTicker struct {
	t *time.Ticker
}

func (st *systemTicker) C() <-chan time.Time { return st.t.C }

func (st *systemTicker) Stop() { st.t.Stop() }
