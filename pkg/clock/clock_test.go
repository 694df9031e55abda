package clock

import (
	"testing"
	"time"
)

func TestMonoTime_Conversions(t *testing.T) {
	d := 1500 * time.Millisecond
	if back := ToDuration(FromDuration(d)); back != d {
		t.Errorf("Round-trip conversion failed: %v -> %v", d, back)
	}

	var zero MonoTime
	if ToDuration(zero) != 0 {
		t.Error("Zero MonoTime should convert to 0 duration")
	}
}

func TestSystemClock_Since(t *testing.T) {
	clk := NewSystemClock()

	start := clk.Now()
	time.Sleep(20 * time.Millisecond)
	elapsed := clk.Since(start)

	if elapsed < 20*time.Millisecond {
		t.Errorf("Expected at least 20ms, got %v", elapsed)
	}
}

func TestSystemClock_MonotonicBehavior(t *testing.T) {
	clk := NewSystemClock()

	const iterations = 1000
	prev := clk.Now()
	for i := 0; i < iterations; i++ {
		now := clk.Now()
		if now < prev {
			t.Fatalf("Non-monotonic at index %d: %d -> %d", i, prev, now)
		}
		prev = now
	}
}

func TestSystemClock_Ticker(t *testing.T) {
	clk := NewSystemClock()

	ticker := clk.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for i := 0; i < 2; i++ {
		select {
		case <-ticker.C():
		case <-time.After(time.Second):
			t.Fatalf("Timeout waiting for tick %d", i+1)
		}
	}
}
