package engine

import "fmt"

// Kind names an engine variant. At most one engine of each kind runs in an
// application.
type Kind string

const (
	KindStopwatch Kind = "stopwatch"
	KindCountdown Kind = "countdown"
)

// Kinds lists every engine kind.
var Kinds = []Kind{KindStopwatch, KindCountdown}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindStopwatch, KindCountdown:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown engine kind %q", s)
}

// Title is the human label used on screens and surfaces.
func (k Kind) Title() string {
	switch k {
	case KindStopwatch:
		return "Stopwatch"
	case KindCountdown:
		return "Timer"
	}
	return string(k)
}

// State of an engine.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// Trigger drives the engine state machine.
type Trigger string

const (
	TriggerStart  Trigger = "start"
	TriggerPause  Trigger = "pause"
	TriggerReset  Trigger = "reset"
	TriggerExpire Trigger = "expire"
)

// Snapshot is the observable status of an engine.
type Snapshot struct {
	Kind    Kind  `json:"kind"`
	Running bool  `json:"running"`
	Seconds int64 `json:"seconds"`

	// Initial is the value the countdown was last armed with. Always 0 for a
	// stopwatch.
	Initial int64 `json:"initial,omitempty"`
}
