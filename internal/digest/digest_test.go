package digest

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"taskdeck/internal/task"
	logx "taskdeck/pkg/logx"
)

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

func testRegistry() *task.Registry {
	defs := []task.Definition{
		{ID: 1, Name: "alpha", Initial: time.Hour, Regular: time.Hour,
			Work: func(ctx context.Context) error { return nil }},
		{ID: 2, Name: "beta", Initial: time.Hour, Regular: time.Hour,
			Work: func(ctx context.Context) error { return nil }},
	}
	return task.Build(defs, logx.Nop(), nil)
}

func TestEmit(t *testing.T) {
	t.Parallel()

	var buf syncBuffer
	reg := testRegistry()
	s := New(Config{Enabled: true, Schedule: "@every 1h"}, reg, logx.NewWriter(&buf, "debug"))

	reg.StartAll()
	defer reg.StopAll()

	s.emit()
	out := buf.String()
	if !strings.Contains(out, "roster digest") {
		t.Fatalf("digest line missing:\n%s", out)
	}
	if !strings.Contains(out, `"tasks":2`) || !strings.Contains(out, `"running":2`) {
		t.Fatalf("digest counts missing:\n%s", out)
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	t.Parallel()

	s := New(Config{Enabled: true, Schedule: "not a schedule"}, testRegistry(), logx.Nop())
	if err := s.Start(); err == nil {
		t.Fatal("bad schedule should fail Start")
	}
}

func TestStartStopIdempotent(t *testing.T) {
	t.Parallel()

	s := New(Config{Enabled: true, Schedule: "@every 1h"}, testRegistry(), logx.Nop())
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("second start: %v", err)
	}
	ctx := context.Background()
	s.Stop(ctx)
	s.Stop(ctx)
}

func TestApplyTransitions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New(Config{Enabled: false, Schedule: "@every 1h"}, testRegistry(), logx.Nop())

	// disabled -> enabled
	if err := s.Apply(ctx, Config{Enabled: true, Schedule: "@every 1h"}); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if !s.Enabled() {
		t.Fatal("should report enabled")
	}

	// schedule change restarts the cron
	if err := s.Apply(ctx, Config{Enabled: true, Schedule: "@every 2h"}); err != nil {
		t.Fatalf("reschedule: %v", err)
	}

	// enabled -> disabled
	if err := s.Apply(ctx, Config{Enabled: false}); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if s.Enabled() {
		t.Fatal("should report disabled")
	}
}
