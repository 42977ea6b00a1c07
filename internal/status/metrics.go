package status

import (
	"github.com/prometheus/client_golang/prometheus"

	"taskdeck/internal/task"
)

// Metrics owns the Prometheus collectors for the task roster. Each server
// gets its own registry so repeated construction (tests, restarts) never
// trips duplicate-registration panics.
type Metrics struct {
	reg *prometheus.Registry

	executions *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	skips      *prometheus.CounterVec
}

func newMetrics(tasks *task.Registry) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskdeck_task_executions_total",
				Help: "Completed task executions by outcome.",
			},
			[]string{"task", "result"},
		),
		durations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taskdeck_task_execution_seconds",
				Help:    "Wall-clock duration of task executions.",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"task"},
		),
		skips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskdeck_task_skips_total",
				Help: "Executions skipped because the task was already busy.",
			},
			[]string{"task", "trigger"},
		),
	}

	m.reg.MustRegister(m.executions, m.durations, m.skips)
	m.reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "taskdeck_tasks_running",
			Help: "Tasks with an active automatic loop.",
		},
		func() float64 { return countFlags(tasks, func(s task.Status) bool { return s.Running }) },
	))
	m.reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "taskdeck_tasks_executing",
			Help: "Tasks with a work invocation currently in flight.",
		},
		func() float64 { return countFlags(tasks, func(s task.Status) bool { return s.Executing }) },
	))

	return m
}

func countFlags(tasks *task.Registry, pred func(task.Status) bool) float64 {
	n := 0
	for _, s := range tasks.Snapshots() {
		if pred(s) {
			n++
		}
	}
	return float64(n)
}
