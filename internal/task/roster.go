package task

import "time"

// DefaultRoster is the built-in 16-task demonstration roster. Initial
// intervals are short so a freshly started deck shows activity right away;
// regular intervals span seconds to 15 days to exercise the full timing
// range. Work bodies are simulated delays.
func DefaultRoster() []Definition {
	day := 24 * time.Hour
	entries := []struct {
		name    string
		initial time.Duration
		regular time.Duration
		workMin time.Duration
		workMax time.Duration
	}{
		{"heartbeat", 2 * time.Second, 15 * time.Second, 100 * time.Millisecond, 400 * time.Millisecond},
		{"cache-warmup", 3 * time.Second, 30 * time.Second, 200 * time.Millisecond, time.Second},
		{"queue-sweeper", 5 * time.Second, 45 * time.Second, 200 * time.Millisecond, time.Second},
		{"session-reaper", 5 * time.Second, time.Minute, 300 * time.Millisecond, 1500 * time.Millisecond},
		{"metrics-rollup", 8 * time.Second, 2 * time.Minute, 300 * time.Millisecond, 2 * time.Second},
		{"log-rotation", 10 * time.Second, 5 * time.Minute, 200 * time.Millisecond, time.Second},
		{"disk-usage-scan", 10 * time.Second, 10 * time.Minute, 500 * time.Millisecond, 2 * time.Second},
		{"index-compaction", 15 * time.Second, 30 * time.Minute, 500 * time.Millisecond, 3 * time.Second},
		{"report-generation", 15 * time.Second, time.Hour, time.Second, 3 * time.Second},
		{"backup-verification", 20 * time.Second, 3 * time.Hour, time.Second, 4 * time.Second},
		{"certificate-check", 20 * time.Second, 6 * time.Hour, 300 * time.Millisecond, time.Second},
		{"database-vacuum", 25 * time.Second, 12 * time.Hour, time.Second, 5 * time.Second},
		{"archive-pruning", 25 * time.Second, day, time.Second, 4 * time.Second},
		{"license-audit", 30 * time.Second, 3 * day, 500 * time.Millisecond, 2 * time.Second},
		{"capacity-forecast", 30 * time.Second, 7 * day, 2 * time.Second, 6 * time.Second},
		{"deep-integrity-scan", 30 * time.Second, 15 * day, 3 * time.Second, 8 * time.Second},
	}

	defs := make([]Definition, 0, len(entries))
	for i, e := range entries {
		defs = append(defs, Definition{
			ID:      i + 1,
			Name:    e.name,
			Initial: e.initial,
			Regular: e.regular,
			Work:    SimulatedWork(e.workMin, e.workMax),
		})
	}
	return defs
}
