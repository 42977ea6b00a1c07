// Package digest logs a periodic one-line summary of the task roster, so
// the log stream shows liveness even when every regular interval is long.
package digest

import (
	"context"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"

	"taskdeck/internal/task"
	logx "taskdeck/pkg/logx"
)

type Config struct {
	Enabled bool

	// Schedule is a cron spec or descriptor ("@every 1m", "@hourly").
	Schedule string
}

type Service struct {
	mu sync.Mutex

	cfg    Config
	log    logx.Logger
	tasks  *task.Registry
	parser cron.Parser
	c      *cron.Cron
}

func New(cfg Config, tasks *task.Registry, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg,
		log:    log,
		tasks:  tasks,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	c := cron.New(cron.WithParser(s.parser))
	if _, err := c.AddFunc(s.cfg.Schedule, s.emit); err != nil {
		return err
	}
	s.c = c
	c.Start()
	s.log.Debug("digest started", logx.String("schedule", s.cfg.Schedule))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		// best-effort
	}
	s.log.Debug("digest stopped")
}

// Apply reconfigures the digest at runtime (config hot reload). A schedule
// change restarts the underlying cron.
func (s *Service) Apply(ctx context.Context, cfg Config) error {
	s.mu.Lock()
	prev := s.cfg
	running := s.c != nil
	s.cfg = cfg
	s.mu.Unlock()

	if !cfg.Enabled {
		if running {
			s.Stop(ctx)
		}
		return nil
	}
	if !running {
		return s.Start()
	}
	if prev.Schedule != cfg.Schedule {
		s.Stop(ctx)
		return s.Start()
	}
	return nil
}

func (s *Service) emit() {
	snaps := s.tasks.Snapshots()
	running := 0
	var executing []string
	for _, sn := range snaps {
		if sn.Running {
			running++
		}
		if sn.Executing {
			executing = append(executing, sn.Name)
		}
	}
	fields := []logx.Field{
		logx.Int("tasks", len(snaps)),
		logx.Int("running", running),
		logx.Int("executing", len(executing)),
	}
	if len(executing) > 0 {
		fields = append(fields, logx.String("in_flight", strings.Join(executing, ",")))
	}
	s.log.Info("roster digest", fields...)
}
