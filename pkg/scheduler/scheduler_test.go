package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestManualEveryFiresAtInterval(t *testing.T) {
	m := NewManual()
	var fired []time.Duration
	m.Every(100*time.Millisecond, func() { fired = append(fired, m.Elapsed()) })

	m.Advance(350 * time.Millisecond)

	if len(fired) != 3 {
		t.Fatalf("Expected 3 ticks, got %d", len(fired))
	}
	for i, at := range fired {
		want := time.Duration(i+1) * 100 * time.Millisecond
		if at != want {
			t.Errorf("Tick %d fired at %v, want %v", i, at, want)
		}
	}
}

func TestManualCancelStopsTask(t *testing.T) {
	m := NewManual()
	count := 0
	h := m.Every(10*time.Millisecond, func() { count++ })

	m.Advance(25 * time.Millisecond)
	h.Cancel()
	h.Cancel()
	m.Advance(100 * time.Millisecond)

	if count != 2 {
		t.Errorf("Expected 2 ticks before cancel, got %d", count)
	}
	if m.Pending() != 0 {
		t.Errorf("Expected no pending tasks, got %d", m.Pending())
	}
}

func TestManualAfterFiresOnce(t *testing.T) {
	m := NewManual()
	count := 0
	m.After(time.Second, func() { count++ })

	m.Advance(999 * time.Millisecond)
	if count != 0 {
		t.Fatalf("Fired early")
	}
	m.Advance(5 * time.Second)
	if count != 1 {
		t.Errorf("Expected exactly one firing, got %d", count)
	}
}

func TestManualTaskCanCancelAnother(t *testing.T) {
	m := NewManual()
	var victim Handle
	victimRuns := 0
	m.After(10*time.Millisecond, func() { victim.Cancel() })
	victim = m.Every(10*time.Millisecond, func() { victimRuns++ })

	m.Advance(50 * time.Millisecond)
	if victimRuns != 0 {
		t.Errorf("Cancelled task ran %d times", victimRuns)
	}
}

func TestLoopDoRunsOnLoopGoroutine(t *testing.T) {
	loop := NewLoop(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	value := 0
	if err := loop.Do(func() { value = 42 }); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if value != 42 {
		t.Errorf("Expected task to have run, value=%d", value)
	}
}

func TestLoopRejectsAfterStop(t *testing.T) {
	loop := NewLoop(8)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	if loop.Post(func() {}) {
		t.Errorf("Post succeeded on a stopped loop")
	}
	if err := loop.Do(func() {}); err != ErrLoopStopped {
		t.Errorf("Expected ErrLoopStopped, got %v", err)
	}
}

func TestTimersSkipCallbackAfterCancel(t *testing.T) {
	loop := NewLoop(64)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	timers := NewTimers(loop)
	var count atomic.Int32
	h := timers.Every(5*time.Millisecond, func() { count.Add(1) })

	deadline := time.Now().Add(2 * time.Second)
	for count.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if count.Load() < 2 {
		t.Fatalf("Ticker never fired")
	}

	// Cancel on the loop so no tick can be mid-flight.
	loop.Do(h.Cancel)
	after := count.Load()
	time.Sleep(30 * time.Millisecond)
	loop.Do(func() {})
	if count.Load() != after {
		t.Errorf("Ticks continued after cancel: %d -> %d", after, count.Load())
	}
}

func TestTimersAfter(t *testing.T) {
	fired := make(chan struct{})
	timers := NewTimers(Inline{})
	timers.After(5*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("After callback never ran")
	}
}
