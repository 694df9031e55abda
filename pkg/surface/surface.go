// Package surface renders the persistent status line shown while a screen is
// in the background.
package surface

import (
	"context"
	"errors"

	"github.com/BYTE-6D65/clockapp/pkg/engine"
	"github.com/BYTE-6D65/clockapp/pkg/status"
)

// Common errors returned by surfaces
var (
	ErrClosed = errors.New("surface: closed")
)

// Notice is one rendering of a persistent status surface.
type Notice struct {
	Kind    engine.Kind
	Title   string // "Stopwatch is running!", "Timer is paused!"
	Text    string // HH:MM:SS
	Running bool
	Line    string // "Running — HH:MM:SS"
}

// NewNotice builds the notice for snap.
func NewNotice(snap engine.Snapshot) Notice {
	state := "paused"
	if snap.Running {
		state = "running"
	}
	return Notice{
		Kind:    snap.Kind,
		Title:   snap.Kind.Title() + " is " + state + "!",
		Text:    status.Format(snap.Seconds),
		Running: snap.Running,
		Line:    status.Line(snap),
	}
}

// Surface is a user-visible sink for notices.
//
// A surface shows at most one notice at a time; Show replaces the current one
// and Dismiss removes it. Failures are reported to the caller, which logs and
// drops them.
type Surface interface {
	// ID identifies the surface in logs (e.g. "log:countdown", "writer").
	ID() string

	// Show displays or replaces the notice.
	Show(ctx context.Context, n Notice) error

	// Dismiss removes the notice. Dismissing with nothing shown is a no-op.
	Dismiss(ctx context.Context) error

	// Close releases resources. Safe to call multiple times.
	Close() error
}
