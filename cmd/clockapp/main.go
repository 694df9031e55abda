package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/BYTE-6D65/clockapp/pkg/app"
	"github.com/BYTE-6D65/clockapp/pkg/engine"
	"github.com/BYTE-6D65/clockapp/pkg/event"
	"github.com/BYTE-6D65/clockapp/pkg/status"
	"github.com/BYTE-6D65/clockapp/pkg/surface"
)

const version = "0.1.0"

func main() {
	// If no arguments or "tui", launch the interactive TUI
	if len(os.Args) < 2 || os.Args[1] == "tui" {
		if err := startTUI(); err != nil {
			log.Fatal("TUI error", "err", err)
		}
		return
	}

	cmd := os.Args[1]

	switch cmd {
	case "stopwatch":
		if err := runHeadless(engine.KindStopwatch, 0); err != nil {
			log.Fatal("stopwatch", "err", err)
		}
	case "countdown":
		if len(os.Args) < 3 {
			log.Fatal("countdown needs a duration (try 'clockapp help')")
		}
		seconds, err := parseSeconds(os.Args[2])
		if err != nil {
			log.Fatal("countdown", "err", err)
		}
		if err := runHeadless(engine.KindCountdown, seconds); err != nil {
			log.Fatal("countdown", "err", err)
		}
	case "version":
		fmt.Printf("clockapp v%s\n", version)
		fmt.Printf("Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	case "help", "-h", "--help":
		usage()
	default:
		log.Fatalf("unknown command %q (try 'clockapp help')", cmd)
	}
}

// parseSeconds accepts plain seconds ("90") or a Go duration ("1m30s").
func parseSeconds(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative duration %q", s)
		}
		return n, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return int64(d / time.Second), nil
}

// loadConfig reads the file named by CLOCKAPP_CONFIG, if any, then the env.
func loadConfig() (app.Config, error) {
	return app.Load(os.Getenv(app.ConfigEnv))
}

// runHeadless runs one engine in the background with its surface printed to
// stdout, until interrupted or, for a countdown, until it expires.
func runHeadless(kind engine.Kind, initial int64) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closer, err := app.NewLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg,
		app.WithLogger(logger),
		app.WithSurface(kind, surface.NewWriterSurface(os.Stdout)),
	)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		return err
	}

	l, err := a.Listen(ctx, kind)
	if err != nil {
		return err
	}
	defer l.Close()

	// The screen is never visible, so the surface is the only output.
	for _, action := range []event.Action{event.ActionStart, event.ActionMoveToBackground} {
		if err := a.Send(ctx, kind, action, initial); err != nil {
			return err
		}
	}

	last := waitUntilStopped(ctx, l, logger)
	fmt.Fprintf(os.Stdout, "%s stopped at %s\n", kind.Title(), status.Format(last.Seconds))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

// waitUntilStopped follows l until the engine stops after having run, or ctx
// ends. It returns the last snapshot seen.
func waitUntilStopped(ctx context.Context, l *status.Listener, logger *log.Logger) engine.Snapshot {
	var last engine.Snapshot
	running := false
	for {
		u, err := l.Recv(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Warn("status listener", "err", err)
			}
			return last
		}
		last = u.Snapshot
		switch {
		case u.Snapshot.Running:
			running = true
		case running && u.Type == status.UpdateStatus:
			return last
		}
	}
}

// tuiLogger discards logs unless a log file is configured; the terminal
// belongs to the TUI.
func tuiLogger(cfg app.Config) (*log.Logger, io.Closer, error) {
	return app.NewLogger(cfg, io.Discard)
}

func usage() {
	fmt.Fprintf(os.Stderr, `clockapp - Clock, Timer and Stopwatch

Usage:
  clockapp [tui]
      Launch the interactive clock / timer / stopwatch

  clockapp stopwatch
      Run a stopwatch, printing its status every second until Ctrl+C

  clockapp countdown <seconds|duration>
      Run a countdown (e.g. 90 or 1m30s) until it reaches zero

  clockapp version
      Show version and platform information

  clockapp help
      Show this help message

Configuration:
  CLOCKAPP_CONFIG             Path to a YAML config file
  CLOCKAPP_TICK_INTERVAL      Engine tick period (default 1s)
  CLOCKAPP_SURFACE_INTERVAL   Background status refresh (default 1s)
  CLOCKAPP_DEFAULT_COUNTDOWN  Initial timer preset (default 60s)
  CLOCKAPP_COUNTDOWN_STEP     Timer +/- step (default 60s)
  CLOCKAPP_LOG_LEVEL          debug, info, warn, error (default info)
  CLOCKAPP_LOG_FILE           Write logs to a file

Keys (TUI):
  tab / 1 2 3   Switch between Clock, Timer and Stopwatch
  s p r         Start, pause, reset
  + -           Adjust the timer preset
  q             Quit
`)
}
