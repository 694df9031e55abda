package status

import (
	"fmt"

	"github.com/BYTE-6D65/clockapp/pkg/engine"
)

// Format renders seconds as HH:MM:SS. Hours are not wrapped at 24 and grow
// past two digits when needed; negative input renders as zero.
func Format(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
}

// Label is "Running" or "Paused".
func Label(running bool) string {
	if running {
		return "Running"
	}
	return "Paused"
}

// Line is the persistent surface text, e.g. "Running — 00:01:05".
func Line(snap engine.Snapshot) string {
	return Label(snap.Running) + " — " + Format(snap.Seconds)
}
