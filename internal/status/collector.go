package status

import (
	"context"

	"taskdeck/internal/eventbus"
)

// RunCollector consumes task lifecycle events from the bus and folds them
// into the Prometheus collectors. It keeps the scheduling core free of any
// metrics dependency. Blocks until ctx is cancelled.
func (s *Server) RunCollector(ctx context.Context) error {
	ch, unsub := s.bus.Subscribe(64)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			te, isTask := ev.Data.(eventbus.TaskEvent)
			if !isTask {
				continue
			}
			switch ev.Type {
			case eventbus.TypeTaskFinished:
				s.metrics.executions.WithLabelValues(te.Name, "completed").Inc()
				s.metrics.durations.WithLabelValues(te.Name).Observe(te.Duration.Seconds())
			case eventbus.TypeTaskFailed:
				s.metrics.executions.WithLabelValues(te.Name, "failed").Inc()
				s.metrics.durations.WithLabelValues(te.Name).Observe(te.Duration.Seconds())
			case eventbus.TypeTaskCancelled:
				s.metrics.executions.WithLabelValues(te.Name, "cancelled").Inc()
			case eventbus.TypeTaskSkipped:
				trigger := "automatic"
				if te.Manual {
					trigger = "manual"
				}
				s.metrics.skips.WithLabelValues(te.Name, trigger).Inc()
			}
		}
	}
}
