package engine

import "math"

// Policy is the counting rule of an engine.
type Policy interface {
	Kind() Kind

	// Arm returns the counter value a Start leaves behind.
	Arm(current, initial int64) int64

	// Advance applies one tick. ok reports whether the counter changed and
	// next should be published; done reports that the engine must reset.
	Advance(current int64) (next int64, ok, done bool)
}

// NewPolicy returns the policy for kind.
func NewPolicy(kind Kind) (Policy, error) {
	switch kind {
	case KindStopwatch:
		return Stopwatch{}, nil
	case KindCountdown:
		return Countdown{}, nil
	}
	_, err := ParseKind(string(kind))
	return nil, err
}

// Stopwatch counts up from zero without bound.
type Stopwatch struct{}

func (Stopwatch) Kind() Kind { return KindStopwatch }

// Arm ignores initial; a stopwatch resumes where it was paused.
func (Stopwatch) Arm(current, _ int64) int64 { return current }

func (Stopwatch) Advance(current int64) (int64, bool, bool) {
	if current == math.MaxInt64 {
		return current, true, false
	}
	return current + 1, true, false
}

// Countdown counts down to zero and then resets itself.
type Countdown struct{}

func (Countdown) Kind() Kind { return KindCountdown }

// Arm loads initial only when the counter is zero, so a paused countdown
// resumes from its remaining time.
func (Countdown) Arm(current, initial int64) int64 {
	if current != 0 {
		return current
	}
	if initial < 0 {
		return 0
	}
	return initial
}

// Advance decrements while positive. The tick that reaches zero publishes 0
// and expires; a tick at zero only expires.
func (Countdown) Advance(current int64) (int64, bool, bool) {
	if current > 0 {
		next := current - 1
		return next, true, next == 0
	}
	return 0, false, true
}
