package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BYTE-6D65/clockapp/pkg/clock"
	"github.com/BYTE-6D65/clockapp/pkg/engine"
	"github.com/BYTE-6D65/clockapp/pkg/event"
	"github.com/BYTE-6D65/clockapp/pkg/status"
	"github.com/BYTE-6D65/clockapp/pkg/surface"
)

func recv(t *testing.T, l *status.Listener) status.Update {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	u, err := l.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv failed: %v", err)
	}
	return u
}

func startApp(t *testing.T, opts ...Option) (*App, *clock.ManualClock) {
	t.Helper()
	clk := clock.NewManualClock()
	a, err := New(DefaultConfig(), append([]Option{WithClock(clk)}, opts...)...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { a.Shutdown(context.Background()) })
	return a, clk
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickInterval = 0

	if _, err := New(cfg); err == nil {
		t.Error("Expected error for invalid config")
	}
}

func TestNew_RegistersOneServicePerKind(t *testing.T) {
	a, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer a.Shutdown(context.Background())

	for _, kind := range engine.Kinds {
		svc, ok := a.Service(kind)
		if !ok {
			t.Fatalf("Expected a %s service", kind)
		}
		if svc.Kind() != kind {
			t.Errorf("Expected kind %s, got %s", kind, svc.Kind())
		}
	}

	// Each App has its own metrics registry, so two Apps can coexist.
	b, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("Second New failed: %v", err)
	}
	b.Shutdown(context.Background())
}

func TestApp_StartTwice(t *testing.T) {
	a, _ := startApp(t)

	if err := a.Start(context.Background()); !errors.Is(err, ErrStarted) {
		t.Errorf("Expected ErrStarted, got %v", err)
	}
}

func TestApp_StopwatchRoundTrip(t *testing.T) {
	a, clk := startApp(t)
	ctx := context.Background()

	l, err := a.Listen(ctx, engine.KindStopwatch)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer l.Close()

	if err := a.Send(ctx, engine.KindStopwatch, event.ActionStart, 0); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if u := recv(t, l); u.Type != status.UpdateStatus || !u.Snapshot.Running {
		t.Fatalf("Expected running status, got %+v", u)
	}

	for i := int64(1); i <= 3; i++ {
		clk.Advance(time.Second)
		u := recv(t, l)
		if u.Type != status.UpdateTick || u.Snapshot.Seconds != i {
			t.Fatalf("Expected tick %d, got %+v", i, u)
		}
	}

	a.Send(ctx, engine.KindStopwatch, event.ActionPause, 0)
	if u := recv(t, l); u.Snapshot.Running || u.Snapshot.Seconds != 3 {
		t.Errorf("Expected paused at 3, got %+v", u.Snapshot)
	}

	a.Send(ctx, engine.KindStopwatch, event.ActionGetStatus, 0)
	if u := recv(t, l); status.Line(u.Snapshot) != "Paused — 00:00:03" {
		t.Errorf("Unexpected line %q", status.Line(u.Snapshot))
	}
}

func TestApp_CountdownExpires(t *testing.T) {
	a, clk := startApp(t)
	ctx := context.Background()

	l, err := a.Listen(ctx, engine.KindCountdown)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer l.Close()

	a.Send(ctx, engine.KindCountdown, event.ActionStart, 2)
	if u := recv(t, l); u.Snapshot.Seconds != 2 || !u.Snapshot.Running {
		t.Fatalf("Expected running at 2, got %+v", u.Snapshot)
	}

	clk.Advance(time.Second)
	recv(t, l)
	clk.Advance(time.Second)

	if u := recv(t, l); u.Type != status.UpdateTick || u.Snapshot.Seconds != 0 {
		t.Errorf("Expected final tick at 0, got %+v", u)
	}
	if u := recv(t, l); u.Type != status.UpdateStatus || u.Snapshot.Running {
		t.Errorf("Expected reset status, got %+v", u)
	}
}

func TestApp_KindsAreIndependent(t *testing.T) {
	a, _ := startApp(t)
	ctx := context.Background()

	sw, _ := a.Listen(ctx, engine.KindStopwatch)
	defer sw.Close()

	a.Send(ctx, engine.KindStopwatch, event.ActionStart, 0)
	recv(t, sw)
	a.Send(ctx, engine.KindCountdown, event.ActionReset, 0)
	a.Send(ctx, engine.KindStopwatch, event.ActionGetStatus, 0)

	if u := recv(t, sw); !u.Snapshot.Running {
		t.Errorf("Expected stopwatch still running, got %+v", u.Snapshot)
	}
}

func TestApp_BackgroundSurface(t *testing.T) {
	surf := surface.NewChannelSurface("stopwatch", 8)
	a, _ := startApp(t, WithSurface(engine.KindStopwatch, surf))
	ctx := context.Background()

	l, _ := a.Listen(ctx, engine.KindStopwatch)
	defer l.Close()

	a.Send(ctx, engine.KindStopwatch, event.ActionStart, 0)
	recv(t, l)
	a.Send(ctx, engine.KindStopwatch, event.ActionMoveToBackground, 0)

	select {
	case u := <-surf.Updates():
		if !u.Visible || u.Notice.Title != "Stopwatch is running!" {
			t.Errorf("Unexpected update %+v", u)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for surface")
	}

	a.Send(ctx, engine.KindStopwatch, event.ActionMoveToForeground, 0)
	select {
	case u := <-surf.Updates():
		if u.Visible {
			t.Errorf("Expected dismiss, got %+v", u)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for dismiss")
	}
}

func TestApp_Shutdown(t *testing.T) {
	clk := clock.NewManualClock()
	a, err := New(DefaultConfig(), WithClock(clk))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx := context.Background()
	a.Start(ctx)

	l, _ := a.Listen(ctx, engine.KindStopwatch)
	a.Send(ctx, engine.KindStopwatch, event.ActionStart, 0)
	recv(t, l)

	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if err := a.Wait(); err != nil {
		t.Errorf("Expected clean Wait, got %v", err)
	}

	if clk.Tickers() != 0 {
		t.Errorf("Expected every loop stopped, got %d tickers", clk.Tickers())
	}
	if _, err := l.Recv(ctx); !errors.Is(err, status.ErrClosed) {
		t.Errorf("Expected listener closed with the bus, got %v", err)
	}
	if err := a.Send(ctx, engine.KindStopwatch, event.ActionStart, 0); !errors.Is(err, event.ErrBusClosed) {
		t.Errorf("Expected ErrBusClosed after shutdown, got %v", err)
	}
}

func TestApp_ShutdownWithoutStart(t *testing.T) {
	a, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestApp_ContextCancelStopsServices(t *testing.T) {
	a, err := New(DefaultConfig(), WithClock(clock.NewManualClock()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer a.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	a.Start(ctx)
	cancel()

	done := make(chan error, 1)
	go func() { done <- a.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Services did not stop on context cancel")
	}
}
