package task

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"taskdeck/internal/eventbus"
	logx "taskdeck/pkg/logx"
)

// syncBuffer lets tests read the log stream written from task goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testLogger(buf *syncBuffer) logx.Logger {
	return logx.NewWriter(buf, "debug")
}

func newTestTask(def Definition, buf *syncBuffer, bus eventbus.Bus) *Task {
	if def.Name == "" {
		def.Name = "test-task"
	}
	if def.ID == 0 {
		def.ID = 1
	}
	return New(def, testLogger(buf), bus)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestStartIdempotent(t *testing.T) {
	var buf syncBuffer
	var runs atomic.Int32
	tk := newTestTask(Definition{
		Initial: 40 * time.Millisecond,
		Regular: time.Hour,
		Work: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	}, &buf, nil)

	tk.Start()
	tk.Start() // no-op; must not launch a second loop
	defer tk.Stop()

	waitFor(t, time.Second, func() bool { return runs.Load() >= 1 })
	// A duplicate loop would produce a second initial execution right away.
	time.Sleep(100 * time.Millisecond)
	if got := runs.Load(); got != 1 {
		t.Fatalf("runs = %d, want 1 (duplicate loop?)", got)
	}
	if !tk.Running() {
		t.Fatal("task should report running")
	}
}

func TestInitialThenRegularTiming(t *testing.T) {
	var buf syncBuffer
	var mu sync.Mutex
	var starts []time.Time
	tk := newTestTask(Definition{
		Initial: 60 * time.Millisecond,
		Regular: 150 * time.Millisecond,
		Work: func(ctx context.Context) error {
			mu.Lock()
			starts = append(starts, time.Now())
			mu.Unlock()
			return nil
		},
	}, &buf, nil)

	began := time.Now()
	tk.Start()
	defer tk.Stop()

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(starts) >= 2
	})
	tk.Stop()

	mu.Lock()
	first, second := starts[0], starts[1]
	mu.Unlock()

	if d := first.Sub(began); d < 55*time.Millisecond {
		t.Fatalf("first execution after %v, want >= ~60ms", d)
	}
	if d := second.Sub(first); d < 140*time.Millisecond {
		t.Fatalf("second execution %v after first, want >= ~150ms", d)
	}

	out := buf.String()
	for _, want := range []string{"starting initial execution", "switching to regular interval", "starting execution"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log missing %q:\n%s", want, out)
		}
	}
}

func TestManualSkipWhileExecuting(t *testing.T) {
	var buf syncBuffer
	bus := eventbus.New()
	events, unsub := bus.Subscribe(32)
	defer unsub()

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var runs atomic.Int32
	tk := newTestTask(Definition{
		Initial: 10 * time.Millisecond,
		Regular: time.Hour,
		Work: func(ctx context.Context) error {
			runs.Add(1)
			started <- struct{}{}
			select {
			case <-release:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}, &buf, bus)

	tk.Start()
	defer func() {
		close(release)
		tk.Stop()
	}()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("work body never started")
	}
	if !tk.Executing() {
		t.Fatal("executing flag should be set during work")
	}

	tk.ExecuteManually()

	// The skip must be logged exactly once without invoking the work body.
	waitFor(t, time.Second, func() bool {
		return strings.Contains(buf.String(), "manual execution skipped")
	})
	if got := strings.Count(buf.String(), "manual execution skipped"); got != 1 {
		t.Fatalf("skip logged %d times, want 1", got)
	}
	if got := runs.Load(); got != 1 {
		t.Fatalf("runs = %d, want 1 (skip must not run work)", got)
	}

	// And the bus sees a manual skip event.
	foundSkip := false
	deadline := time.After(time.Second)
	for !foundSkip {
		select {
		case ev := <-events:
			if ev.Type == eventbus.TypeTaskSkipped {
				te := ev.Data.(eventbus.TaskEvent)
				if te.Manual {
					foundSkip = true
				}
			}
		case <-deadline:
			t.Fatal("no manual skip event on bus")
		}
	}
}

func TestManualExecutionOnIdleTask(t *testing.T) {
	var buf syncBuffer
	var runs atomic.Int32
	tk := newTestTask(Definition{
		Initial: time.Hour,
		Regular: time.Hour,
		Work: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	}, &buf, nil)

	// Never started: the manual path is independent of running.
	tk.ExecuteManually()

	waitFor(t, time.Second, func() bool { return runs.Load() == 1 })
	waitFor(t, time.Second, func() bool {
		out := buf.String()
		return strings.Contains(out, "starting manual execution") &&
			strings.Contains(out, "execution completed")
	})
	waitFor(t, time.Second, func() bool { return !tk.Executing() })
	if tk.Running() {
		t.Fatal("manual execution must not flip running")
	}
}

func TestStopDuringWait(t *testing.T) {
	var buf syncBuffer
	var runs atomic.Int32
	tk := newTestTask(Definition{
		Initial: 500 * time.Millisecond,
		Regular: time.Hour,
		Work: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	}, &buf, nil)

	tk.Start()
	time.Sleep(50 * time.Millisecond)

	stopBegan := time.Now()
	tk.Stop()
	if d := time.Since(stopBegan); d > StopGracePeriod {
		t.Fatalf("Stop took %v, want well under the grace period", d)
	}
	if runs.Load() != 0 {
		t.Fatal("work body must not run when stopped mid-wait")
	}
	if tk.Running() {
		t.Fatal("task should report stopped")
	}
}

func TestStopDuringWorkLogsCancelled(t *testing.T) {
	var buf syncBuffer
	bus := eventbus.New()
	events, unsub := bus.Subscribe(32)
	defer unsub()

	started := make(chan struct{}, 1)
	tk := newTestTask(Definition{
		Initial: 10 * time.Millisecond,
		Regular: time.Hour,
		Work: func(ctx context.Context) error {
			started <- struct{}{}
			<-ctx.Done()
			return ctx.Err()
		},
	}, &buf, bus)

	tk.Start()
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("work body never started")
	}

	stopBegan := time.Now()
	tk.Stop()
	if d := time.Since(stopBegan); d > StopGracePeriod {
		t.Fatalf("Stop took %v, want within the grace period", d)
	}

	waitFor(t, time.Second, func() bool {
		return strings.Contains(buf.String(), "execution cancelled")
	})

	foundCancelled := false
	deadline := time.After(time.Second)
	for !foundCancelled {
		select {
		case ev := <-events:
			if ev.Type == eventbus.TypeTaskCancelled {
				foundCancelled = true
			}
		case <-deadline:
			t.Fatal("no cancelled event on bus")
		}
	}
}

func TestExecutingNeverOverlaps(t *testing.T) {
	var buf syncBuffer
	var inFlight atomic.Int32
	var overlapped atomic.Bool
	tk := newTestTask(Definition{
		Initial: 10 * time.Millisecond,
		Regular: 30 * time.Millisecond,
		Work: func(ctx context.Context) error {
			if inFlight.Add(1) > 1 {
				overlapped.Store(true)
			}
			defer inFlight.Add(-1)
			select {
			case <-time.After(40 * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		},
	}, &buf, nil)

	tk.Start()
	// Hammer the manual path while the automatic loop cycles.
	done := time.After(400 * time.Millisecond)
spam:
	for {
		select {
		case <-done:
			break spam
		case <-time.After(10 * time.Millisecond):
			tk.ExecuteManually()
		}
	}
	tk.Stop()

	if overlapped.Load() {
		t.Fatal("two work invocations overlapped for the same task")
	}
}

func TestWorkFailureDoesNotKillLoop(t *testing.T) {
	var buf syncBuffer
	var runs atomic.Int32
	boom := errors.New("synthetic failure")
	tk := newTestTask(Definition{
		Initial: 20 * time.Millisecond,
		Regular: 40 * time.Millisecond,
		Work: func(ctx context.Context) error {
			if runs.Add(1) == 1 {
				return boom
			}
			return nil
		},
	}, &buf, nil)

	tk.Start()
	defer tk.Stop()

	waitFor(t, 2*time.Second, func() bool { return runs.Load() >= 2 })
	out := buf.String()
	if !strings.Contains(out, "execution failed") {
		t.Fatalf("log missing failure entry:\n%s", out)
	}
	if !strings.Contains(out, "synthetic failure") {
		t.Fatalf("log missing failure detail:\n%s", out)
	}
}

func TestWorkPanicIsContained(t *testing.T) {
	var buf syncBuffer
	var runs atomic.Int32
	tk := newTestTask(Definition{
		Initial: 20 * time.Millisecond,
		Regular: 40 * time.Millisecond,
		Work: func(ctx context.Context) error {
			if runs.Add(1) == 1 {
				panic("kaboom")
			}
			return nil
		},
	}, &buf, nil)

	tk.Start()
	defer tk.Stop()

	// The loop must survive the panic and keep executing.
	waitFor(t, 2*time.Second, func() bool { return runs.Load() >= 2 })
	if !strings.Contains(buf.String(), "kaboom") {
		t.Fatalf("log missing panic detail:\n%s", buf.String())
	}
}

func TestStopIdempotent(t *testing.T) {
	var buf syncBuffer
	tk := newTestTask(Definition{
		Initial: time.Hour,
		Regular: time.Hour,
		Work:    func(ctx context.Context) error { return nil },
	}, &buf, nil)

	tk.Stop() // not running: no-op
	tk.Start()
	tk.Stop()
	tk.Stop() // second stop: no-op
	if tk.Running() {
		t.Fatal("task should report stopped")
	}
}

func TestRestartResetsInitialPhase(t *testing.T) {
	var buf syncBuffer
	var runs atomic.Int32
	tk := newTestTask(Definition{
		Initial: 30 * time.Millisecond,
		Regular: time.Hour,
		Work: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	}, &buf, nil)

	tk.Start()
	waitFor(t, time.Second, func() bool { return runs.Load() == 1 })
	tk.Stop()

	// A fresh Start runs the initial phase again, not the regular interval.
	tk.Start()
	waitFor(t, time.Second, func() bool { return runs.Load() == 2 })
	tk.Stop()

	if got := strings.Count(buf.String(), "starting initial execution"); got != 2 {
		t.Fatalf("initial executions logged %d times, want 2", got)
	}
}
