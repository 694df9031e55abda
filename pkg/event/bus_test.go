package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/BYTE-6D65/clockapp/pkg/telemetry"
)

func testEvent(id, typ string) Event {
	return Event{ID: id, Type: typ, Source: "test-source"}
}

func TestNewInMemoryBus(t *testing.T) {
	bus := NewInMemoryBus()

	if bus.subscriptions == nil {
		t.Error("Subscriptions map should be initialized")
	}
	if bus.bufferSize != 64 {
		t.Errorf("Expected default buffer size 64, got %d", bus.bufferSize)
	}
	if bus.dropSlow {
		t.Error("Expected default dropSlow to be false")
	}
	if bus.Name() != "default" {
		t.Errorf("Expected default name, got %q", bus.Name())
	}
}

func TestNewInMemoryBus_WithOptions(t *testing.T) {
	bus := NewInMemoryBus(
		WithBufferSize(128),
		WithDropSlow(true),
		WithBusName("status"),
	)

	if bus.bufferSize != 128 {
		t.Errorf("Expected buffer size 128, got %d", bus.bufferSize)
	}
	if !bus.dropSlow {
		t.Error("Expected dropSlow to be true")
	}
	if bus.Name() != "status" {
		t.Errorf("Expected name 'status', got %q", bus.Name())
	}
}

func TestBus_Subscribe_AfterClose(t *testing.T) {
	bus := NewInMemoryBus()
	bus.Close()

	_, err := bus.Subscribe(context.Background(), Filter{})
	if !errors.Is(err, ErrBusClosed) {
		t.Errorf("Expected ErrBusClosed, got %v", err)
	}
}

func TestBus_Subscribe_CancelledContext(t *testing.T) {
	bus := NewInMemoryBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := bus.Subscribe(ctx, Filter{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestBus_PublishAndReceive(t *testing.T) {
	bus := NewInMemoryBus()
	defer bus.Close()

	ctx := context.Background()
	sub, err := bus.Subscribe(ctx, Filter{})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	if err := bus.Publish(ctx, testEvent("test-1", "test.event")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case received := <-sub.Events():
		if received.ID != "test-1" {
			t.Errorf("Expected event ID test-1, got %s", received.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for event")
	}
}

func TestBus_PublishToMultipleSubscribers(t *testing.T) {
	bus := NewInMemoryBus()
	defer bus.Close()

	ctx := context.Background()
	subs := make([]Subscription, 3)
	for i := range subs {
		sub, err := bus.Subscribe(ctx, Filter{})
		if err != nil {
			t.Fatalf("Subscribe %d failed: %v", i, err)
		}
		defer sub.Close()
		subs[i] = sub
	}

	if bus.Subscribers() != 3 {
		t.Fatalf("Expected 3 subscribers, got %d", bus.Subscribers())
	}

	if err := bus.Publish(ctx, testEvent("multi", "test.event")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	for i, sub := range subs {
		select {
		case received := <-sub.Events():
			if received.ID != "multi" {
				t.Errorf("Subscriber %d: expected multi, got %s", i, received.ID)
			}
		case <-time.After(time.Second):
			t.Fatalf("Subscriber %d: timeout waiting for event", i)
		}
	}
}

func TestBus_FilterByType(t *testing.T) {
	bus := NewInMemoryBus()
	defer bus.Close()

	ctx := context.Background()
	sub, err := bus.Subscribe(ctx, Filter{Types: []string{"clock.*.tick"}})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	bus.Publish(ctx, testEvent("1", "clock.stopwatch.status"))
	bus.Publish(ctx, testEvent("2", "clock.countdown.tick"))

	select {
	case received := <-sub.Events():
		if received.ID != "2" {
			t.Errorf("Expected tick event, got %s (%s)", received.ID, received.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for event")
	}

	select {
	case extra := <-sub.Events():
		t.Errorf("Unexpected event %s", extra.ID)
	default:
	}
}

func TestBus_FilterBySourceAndMetadata(t *testing.T) {
	bus := NewInMemoryBus()
	defer bus.Close()

	ctx := context.Background()
	sub, err := bus.Subscribe(ctx, Filter{
		Sources:  []string{"engine-*"},
		Metadata: map[string]string{"kind": "countdown"},
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	wrongSource := Event{ID: "a", Type: "t", Source: "tui", Metadata: map[string]string{"kind": "countdown"}}
	wrongKind := Event{ID: "b", Type: "t", Source: "engine-1", Metadata: map[string]string{"kind": "stopwatch"}}
	match := Event{ID: "c", Type: "t", Source: "engine-1", Metadata: map[string]string{"kind": "countdown"}}

	for _, evt := range []Event{wrongSource, wrongKind, match} {
		if err := bus.Publish(ctx, evt); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}

	select {
	case received := <-sub.Events():
		if received.ID != "c" {
			t.Errorf("Expected c, got %s", received.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for event")
	}

	if len(sub.Events()) != 0 {
		t.Errorf("Expected no further events, got %d", len(sub.Events()))
	}
}

func TestBus_DropSlowSubscriber(t *testing.T) {
	m := telemetry.InitMetrics(prometheus.NewRegistry())
	bus := NewInMemoryBus(
		WithBufferSize(2),
		WithDropSlow(true),
		WithBusName("status"),
		WithMetrics(m),
	)
	defer bus.Close()

	ctx := context.Background()
	sub, err := bus.Subscribe(ctx, Filter{})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	for i := 0; i < 5; i++ {
		if err := bus.Publish(ctx, testEvent(fmt.Sprintf("e%d", i), "test.event")); err != nil {
			t.Fatalf("Publish %d failed: %v", i, err)
		}
	}

	if len(sub.Events()) != 2 {
		t.Errorf("Expected 2 buffered events, got %d", len(sub.Events()))
	}

	dropped := testutil.ToFloat64(m.EventsDropped.WithLabelValues("status", "test.event"))
	if dropped != 3 {
		t.Errorf("Expected 3 dropped events, got %v", dropped)
	}
	published := testutil.ToFloat64(m.EventsPublished.WithLabelValues("status", "test.event"))
	if published != 5 {
		t.Errorf("Expected 5 published events, got %v", published)
	}
}

func TestBus_BlockingPublishWaitsForReader(t *testing.T) {
	bus := NewInMemoryBus(WithBufferSize(1))
	defer bus.Close()

	ctx := context.Background()
	sub, err := bus.Subscribe(ctx, Filter{})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	if err := bus.Publish(ctx, testEvent("first", "test.event")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- bus.Publish(ctx, testEvent("second", "test.event"))
	}()

	select {
	case err := <-done:
		t.Fatalf("Publish should block on a full buffer, returned %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	<-sub.Events()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Publish failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Publish did not resume after the reader caught up")
	}

	if received := <-sub.Events(); received.ID != "second" {
		t.Errorf("Expected second, got %s", received.ID)
	}
}

func TestBus_BlockingPublishHonoursContext(t *testing.T) {
	bus := NewInMemoryBus(WithBufferSize(0))
	defer bus.Close()

	sub, err := bus.Subscribe(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := bus.Publish(ctx, testEvent("x", "test.event")); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}
}

func TestBus_CloseUnblocksPublisher(t *testing.T) {
	bus := NewInMemoryBus(WithBufferSize(0))

	sub, err := bus.Subscribe(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	_ = sub

	done := make(chan error, 1)
	go func() {
		done <- bus.Publish(context.Background(), testEvent("x", "test.event"))
	}()

	time.Sleep(20 * time.Millisecond)
	bus.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrBusClosed) {
			t.Errorf("Expected ErrBusClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock the publisher")
	}
}

func TestSubscription_CloseUnblocksPublisher(t *testing.T) {
	bus := NewInMemoryBus(WithBufferSize(0))
	defer bus.Close()

	sub, err := bus.Subscribe(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- bus.Publish(context.Background(), testEvent("x", "test.event"))
	}()

	time.Sleep(20 * time.Millisecond)
	sub.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil after subscriber left, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Subscription close did not unblock the publisher")
	}

	if bus.Subscribers() != 0 {
		t.Errorf("Expected 0 subscribers, got %d", bus.Subscribers())
	}
}

func TestSubscription_CloseClosesChannel(t *testing.T) {
	bus := NewInMemoryBus()
	defer bus.Close()

	sub, err := bus.Subscribe(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	sub.Close()
	sub.Close()

	if _, ok := <-sub.Events(); ok {
		t.Error("Expected events channel to be closed")
	}
}

func TestBus_Close(t *testing.T) {
	bus := NewInMemoryBus()

	sub, err := bus.Subscribe(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := bus.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("Second close should be a no-op, got %v", err)
	}

	if _, ok := <-sub.Events(); ok {
		t.Error("Expected subscription channel to be closed")
	}

	// Closing a subscription after its bus is still safe.
	if err := sub.Close(); err != nil {
		t.Errorf("Close after bus close failed: %v", err)
	}

	if err := bus.Publish(context.Background(), testEvent("x", "t")); !errors.Is(err, ErrBusClosed) {
		t.Errorf("Expected ErrBusClosed, got %v", err)
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewInMemoryBus(WithBufferSize(1000))
	defer bus.Close()

	ctx := context.Background()
	sub, err := bus.Subscribe(ctx, Filter{})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	const publishers = 10
	const perPublisher = 50

	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perPublisher; i++ {
				bus.Publish(ctx, testEvent(fmt.Sprintf("%d-%d", p, i), "test.event"))
			}
		}(p)
	}
	wg.Wait()

	if got := len(sub.Events()); got != publishers*perPublisher {
		t.Errorf("Expected %d events, got %d", publishers*perPublisher, got)
	}
}

func TestMatchesAny(t *testing.T) {
	tests := []struct {
		str      string
		patterns []string
		want     bool
	}{
		{"clock.stopwatch.tick", []string{"clock.stopwatch.tick"}, true},
		{"clock.stopwatch.tick", []string{"clock.*.tick"}, true},
		{"clock.countdown.status", []string{"clock.*.tick"}, false},
		{"clock.countdown.status", []string{"clock.*.tick", "clock.countdown.*"}, true},
		{"anything", []string{"*"}, true},
		{"x", nil, false},
	}

	for _, tt := range tests {
		if got := matchesAny(tt.str, tt.patterns); got != tt.want {
			t.Errorf("matchesAny(%q, %v) = %v, want %v", tt.str, tt.patterns, got, tt.want)
		}
	}
}
