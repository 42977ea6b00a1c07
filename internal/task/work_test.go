package task

import (
	"context"
	"testing"
	"time"
)

func TestSimulatedWorkDuration(t *testing.T) {
	t.Parallel()

	w := SimulatedWork(30*time.Millisecond, 30*time.Millisecond)
	began := time.Now()
	if err := w(context.Background()); err != nil {
		t.Fatalf("work failed: %v", err)
	}
	if d := time.Since(began); d < 25*time.Millisecond {
		t.Fatalf("work finished in %v, want >= ~30ms", d)
	}
}

func TestSimulatedWorkCancellation(t *testing.T) {
	t.Parallel()

	w := SimulatedWork(5*time.Second, 5*time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() { errc <- w(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		if err != context.Canceled {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("work did not return promptly after cancellation")
	}
}

func TestSimulatedWorkSwappedBounds(t *testing.T) {
	t.Parallel()

	// Swapped min/max must not panic or produce a negative sleep.
	w := SimulatedWork(20*time.Millisecond, 5*time.Millisecond)
	if err := w(context.Background()); err != nil {
		t.Fatalf("work failed: %v", err)
	}
}
