package task

import (
	"context"
	"math/rand"
	"time"
)

// SimulatedWork returns a work body that sleeps for a random duration in
// [min, max] and then succeeds. The sleep is cancellable: on ctx cancellation
// the body returns ctx.Err() promptly.
//
// This stands in for real work (a database sweep, a network session, a file
// rotation); only the duration contract matters to the scheduling core.
func SimulatedWork(min, max time.Duration) Work {
	if min < 0 {
		min = 0
	}
	if max < min {
		min, max = max, min
	}
	return func(ctx context.Context) error {
		d := min
		if span := int64(max - min); span > 0 {
			d += time.Duration(rand.Int63n(span + 1))
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
}
