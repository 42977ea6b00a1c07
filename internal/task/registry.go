package task

import (
	"fmt"
	"sync"

	"taskdeck/internal/eventbus"
	logx "taskdeck/pkg/logx"
)

// Status is a cheap, lock-free per-task snapshot for display polling.
type Status struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Running   bool   `json:"running"`
	Executing bool   `json:"executing"`
}

// Registry holds the fixed roster in stable order and fans control commands
// out to the tasks. It is thin orchestration; the tasks own their state.
type Registry struct {
	log   logx.Logger
	tasks []*Task
}

// Build constructs a registry from roster definitions. The roster is fixed
// for the registry's lifetime.
func Build(defs []Definition, log logx.Logger, bus eventbus.Bus) *Registry {
	tasks := make([]*Task, 0, len(defs))
	for _, def := range defs {
		tasks = append(tasks, New(def, log, bus))
	}
	return &Registry{log: log, tasks: tasks}
}

func (r *Registry) Len() int { return len(r.tasks) }

// Tasks returns the roster in stable order. The returned slice is a copy;
// the tasks themselves are shared.
func (r *Registry) Tasks() []*Task {
	out := make([]*Task, len(r.tasks))
	copy(out, r.tasks)
	return out
}

// Task returns the task at the given zero-based roster index.
func (r *Registry) Task(index int) (*Task, error) {
	if index < 0 || index >= len(r.tasks) {
		return nil, fmt.Errorf("task index %d out of range [0, %d)", index, len(r.tasks))
	}
	return r.tasks[index], nil
}

// StartAll starts every task. Fan-out is concurrent and order-independent;
// one task cannot block another.
func (r *Registry) StartAll() {
	r.log.Info("starting all tasks", logx.Int("count", len(r.tasks)))
	var wg sync.WaitGroup
	for _, t := range r.tasks {
		wg.Add(1)
		go func(t *Task) {
			defer wg.Done()
			t.Start()
		}(t)
	}
	wg.Wait()
}

// StopAll stops every task concurrently, so the worst case is bounded by
// roughly one StopGracePeriod rather than one per task.
func (r *Registry) StopAll() {
	r.log.Info("stopping all tasks", logx.Int("count", len(r.tasks)))
	var wg sync.WaitGroup
	for _, t := range r.tasks {
		wg.Add(1)
		go func(t *Task) {
			defer wg.Done()
			t.Stop()
		}(t)
	}
	wg.Wait()
}

// Trigger requests a manual execution of the task at index. Fire-and-forget:
// a busy task logs a skip instead of erroring.
func (r *Registry) Trigger(index int) error {
	t, err := r.Task(index)
	if err != nil {
		return err
	}
	t.ExecuteManually()
	return nil
}

// StartTask starts a single task by roster index.
func (r *Registry) StartTask(index int) error {
	t, err := r.Task(index)
	if err != nil {
		return err
	}
	t.Start()
	return nil
}

// StopTask stops a single task by roster index. May block for up to the
// grace period.
func (r *Registry) StopTask(index int) error {
	t, err := r.Task(index)
	if err != nil {
		return err
	}
	t.Stop()
	return nil
}

// Snapshots returns the per-task status in roster order. Reads only atomics;
// safe to poll at sub-second cadence.
func (r *Registry) Snapshots() []Status {
	out := make([]Status, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, Status{
			ID:        t.ID(),
			Name:      t.Name(),
			Running:   t.Running(),
			Executing: t.Executing(),
		})
	}
	return out
}
