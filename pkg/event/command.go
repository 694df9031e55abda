package event

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownCommand is returned when a command names an action no service handles.
var ErrUnknownCommand = errors.New("event: unknown command")

// Action is a command understood by a counting service.
type Action string

// Command actions. The wire names match what the screens send.
const (
	ActionStart            Action = "START"
	ActionPause            Action = "PAUSE"
	ActionReset            Action = "RESET"
	ActionGetStatus        Action = "GET_STATUS"
	ActionMoveToForeground Action = "MOVE_TO_FOREGROUND"
	ActionMoveToBackground Action = "MOVE_TO_BACKGROUND"
)

// Actions lists every valid action.
var Actions = []Action{
	ActionStart,
	ActionPause,
	ActionReset,
	ActionGetStatus,
	ActionMoveToForeground,
	ActionMoveToBackground,
}

// ParseAction validates a wire name.
func ParseAction(s string) (Action, error) {
	for _, a := range Actions {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
}

// Command is a one-way request sent to the service that owns Target.
//
// Example:
//
//	cmd := Command{
//	    Target:         "countdown",
//	    Action:         ActionStart,
//	    InitialSeconds: 90,
//	}
//	evt, _ := NewCommandEvent(cmd, "tui")
//	commands.Publish(ctx, evt)
type Command struct {
	Target         string    `json:"target"`                    // "stopwatch" or "countdown"
	Action         Action    `json:"action"`                    // One of Actions
	InitialSeconds int64     `json:"initial_seconds,omitempty"` // Countdown START only
	IssuedAt       time.Time `json:"issued_at"`
}

// CommandType is the event type commands for target are published under.
func CommandType(target string) string {
	return "clock." + target + ".command"
}

// NewCommandEvent wraps cmd in an event addressed to cmd.Target.
func NewCommandEvent(cmd Command, source string) (Event, error) {
	if _, err := ParseAction(string(cmd.Action)); err != nil {
		return Event{}, err
	}
	if cmd.IssuedAt.IsZero() {
		cmd.IssuedAt = time.Now()
	}

	evt, err := NewEvent(CommandType(cmd.Target), source, cmd, JSONCodec{})
	if err != nil {
		return Event{}, fmt.Errorf("encode %s command: %w", cmd.Action, err)
	}
	return evt.WithMetadata("target", cmd.Target), nil
}

// DecodeCommand extracts the Command carried by evt.
func DecodeCommand(evt Event) (Command, error) {
	var cmd Command
	if err := evt.DecodePayload(&cmd, JSONCodec{}); err != nil {
		return Command{}, fmt.Errorf("decode command %s: %w", evt.ID, err)
	}
	if _, err := ParseAction(string(cmd.Action)); err != nil {
		return Command{}, err
	}
	return cmd, nil
}
