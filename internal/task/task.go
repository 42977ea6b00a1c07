package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"taskdeck/internal/eventbus"
	logx "taskdeck/pkg/logx"
)

// StopGracePeriod bounds how long Stop() waits for the automatic loop to
// observe cancellation and exit. Exceeding it is logged, not fatal.
const StopGracePeriod = 5 * time.Second

// Work is a task's pluggable body. It must honor ctx cancellation promptly;
// elapsed time is measured by the caller.
type Work func(ctx context.Context) error

// Definition describes one roster entry. Identity and timing are immutable
// after the task is built.
type Definition struct {
	ID      int
	Name    string
	Initial time.Duration // one-time delay before the first automatic execution
	Regular time.Duration // steady-state delay between subsequent executions
	Work    Work
}

// Task is one independent periodic job.
//
// The three flags are atomics so the sub-second status poller can read them
// without locks. mu serializes Start/Stop transitions only; the hot paths
// (loop, manual execution, Snapshots) never take it.
type Task struct {
	id      int
	name    string
	initial time.Duration
	regular time.Duration
	work    Work

	log logx.Logger
	bus eventbus.Bus

	running       atomic.Bool // automatic loop active
	executing     atomic.Bool // a work invocation (automatic or manual) in flight
	hasRunInitial atomic.Bool // first automatic execution since Start has begun

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a task from a definition. The logger gets the task name attached
// as a fixed field.
func New(def Definition, log logx.Logger, bus eventbus.Bus) *Task {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Task{
		id:      def.ID,
		name:    def.Name,
		initial: def.Initial,
		regular: def.Regular,
		work:    def.Work,
		log:     log.With(logx.String("task", def.Name)),
		bus:     bus,
	}
}

func (t *Task) ID() int                        { return t.id }
func (t *Task) Name() string                   { return t.name }
func (t *Task) InitialInterval() time.Duration { return t.initial }
func (t *Task) RegularInterval() time.Duration { return t.regular }
func (t *Task) Running() bool                  { return t.running.Load() }
func (t *Task) Executing() bool                { return t.executing.Load() }

// Start launches the automatic loop. No-op if already running.
func (t *Task) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running.Load() {
		return
	}
	t.running.Store(true)
	t.hasRunInitial.Store(false)

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	done := make(chan struct{})
	t.done = done

	t.log.Info("task started",
		logx.String("initial_interval", FormatInterval(t.initial)),
		logx.String("regular_interval", FormatInterval(t.regular)))

	go t.loop(ctx, done)
}

// Stop cancels the automatic loop and waits up to StopGracePeriod for it to
// exit. No-op if not running. Manual executions are not cancelled; an
// automatic execution already past its cancellation check runs to the next
// one (the work body is expected to unwind promptly).
func (t *Task) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running.Load() {
		return
	}
	t.running.Store(false)

	cancel := t.cancel
	done := t.done
	t.cancel = nil
	t.done = nil
	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(StopGracePeriod):
			// Best-effort shutdown: proceed anyway.
			t.log.Warn("stop grace period exceeded; loop still in flight")
		}
	}
	t.log.Info("task stopped")
}

// ExecuteManually runs the work body once, outside the automatic cycle, on
// its own goroutine. If an execution is already in flight the request is
// skipped with a log entry; there is no queueing and no error.
//
// Manual runs use a standalone cancellation context so Stop() does not
// cancel them; they are user-initiated one-offs outside the managed
// lifecycle. They work whether or not the task is running.
func (t *Task) ExecuteManually() {
	go t.executeManual()
}

func (t *Task) executeManual() {
	if !t.executing.CompareAndSwap(false, true) {
		t.log.Info("manual execution skipped; task is busy")
		t.publish(eventbus.TypeTaskSkipped, eventbus.TaskEvent{TaskID: t.id, Name: t.name, Manual: true})
		return
	}
	defer t.executing.Store(false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.log.Info("starting manual execution")
	t.publish(eventbus.TypeTaskStarted, eventbus.TaskEvent{TaskID: t.id, Name: t.name, Manual: true})

	start := time.Now()
	err := t.invoke(ctx)
	elapsed := time.Since(start)
	t.finishLog(err, elapsed, true, ctx)
}

// loop is the automatic scheduling loop: wait the initial interval once, then
// the regular interval, executing one cycle per expiry until cancelled.
func (t *Task) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		wait := t.initial
		if t.hasRunInitial.Load() {
			wait = t.regular
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			t.log.Debug("automatic loop exiting")
			return
		case <-timer.C:
		}
		if ctx.Err() != nil || !t.running.Load() {
			return
		}
		t.runCycle(ctx)
	}
}

// runCycle performs one automatic execution. If a manual run won the race for
// the executing flag, the tick is skipped (logged at debug level).
func (t *Task) runCycle(ctx context.Context) {
	if !t.running.Load() {
		return
	}
	if !t.executing.CompareAndSwap(false, true) {
		t.log.Debug("automatic execution skipped; already executing")
		t.publish(eventbus.TypeTaskSkipped, eventbus.TaskEvent{TaskID: t.id, Name: t.name})
		return
	}
	defer t.executing.Store(false)

	first := !t.hasRunInitial.Load()
	if first {
		t.hasRunInitial.Store(true)
		t.log.Info("starting initial execution")
	} else {
		t.log.Info("starting execution")
	}
	t.publish(eventbus.TypeTaskStarted, eventbus.TaskEvent{TaskID: t.id, Name: t.name})

	start := time.Now()
	err := t.invoke(ctx)
	elapsed := time.Since(start)
	t.finishLog(err, elapsed, false, ctx)

	if first && t.running.Load() {
		t.log.Info("switching to regular interval",
			logx.String("regular_interval", FormatInterval(t.regular)))
	}
}

// invoke runs the work body with panic containment so one bad body cannot
// kill the loop or the process.
func (t *Task) invoke(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if t.work == nil {
		return nil
	}
	return t.work(ctx)
}

// finishLog records the outcome of one execution: completed, cancelled, or
// failed. Cancellation is not an error.
func (t *Task) finishLog(err error, elapsed time.Duration, manual bool, ctx context.Context) {
	ev := eventbus.TaskEvent{TaskID: t.id, Name: t.name, Manual: manual, Duration: elapsed}
	switch {
	case err != nil && (errors.Is(err, context.Canceled) || ctx.Err() != nil):
		t.log.Info("execution cancelled", logx.Duration("elapsed", elapsed))
		t.publish(eventbus.TypeTaskCancelled, ev)
	case err != nil:
		ev.Error = err.Error()
		t.log.Error("execution failed", logx.Err(err), logx.Duration("elapsed", elapsed))
		t.publish(eventbus.TypeTaskFailed, ev)
	default:
		t.log.Info("execution completed", logx.Duration("elapsed", elapsed))
		t.publish(eventbus.TypeTaskFinished, ev)
	}
}

func (t *Task) publish(typ string, ev eventbus.TaskEvent) {
	if t.bus == nil {
		return
	}
	t.bus.Publish(eventbus.Event{Type: typ, Data: ev})
}
