// Package app wires taskdeck together: config, logging, the task roster,
// the status surface, and the digest job.
package app

import (
	"context"
	"fmt"
	"os"

	"taskdeck/internal/config"
	"taskdeck/internal/digest"
	"taskdeck/internal/eventbus"
	"taskdeck/internal/runtime/supervisor"
	"taskdeck/internal/status"
	"taskdeck/internal/task"
	logx "taskdeck/pkg/logx"
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	bus    eventbus.Bus
	tasks  *task.Registry
	status *status.Server
	digest *digest.Service

	sup *supervisor.Supervisor
}

// New loads configuration and builds all components. A missing config file
// is not an error: the built-in defaults (and the default 16-task roster)
// apply, so the demo runs out of the box.
func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
		}
		cfg = config.Default()
		mgr.Commit(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgPath, err)
	}

	logSvc, log := logx.New(logxConfig(cfg))
	mgr.SetLogger(log)
	mgr.SetValidator(func(c *config.Config) error { return c.Validate() })

	bus := eventbus.New()

	defs, err := rosterDefs(cfg)
	if err != nil {
		return nil, err
	}
	tasks := task.Build(defs, log, bus)

	a := &App{
		cfgMgr: mgr,
		logSvc: logSvc,
		log:    log,
		bus:    bus,
		tasks:  tasks,
		status: status.New(statusConfig(cfg), tasks, bus, log),
		digest: digest.New(digestConfig(cfg), tasks, log),
	}
	return a, nil
}

// Tasks exposes the registry (used by tests and by main for CLI output).
func (a *App) Tasks() *task.Registry { return a.tasks }

// Start brings up the background services and starts the whole roster.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log))

	if a.status.Enabled() {
		if err := a.status.Start(ctx); err != nil {
			return fmt.Errorf("status server: %w", err)
		}
		a.sup.Go("status.collector", a.status.RunCollector)
	}
	if a.digest.Enabled() {
		if err := a.digest.Start(); err != nil {
			return fmt.Errorf("digest: %w", err)
		}
	}

	a.sup.GoRestart("config.watch", a.cfgMgr.Watch)
	a.sup.Go0("config.apply", a.applyLoop)

	a.tasks.StartAll()
	a.log.Info("taskdeck started", logx.Int("tasks", a.tasks.Len()))
	return nil
}

// applyLoop consumes validated config updates from the manager and
// re-applies the hot-reloadable sections: logging and digest. The roster
// itself is fixed at build time.
func (a *App) applyLoop(ctx context.Context) {
	ch := a.cfgMgr.Subscribe(4)
	defer a.cfgMgr.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-ch:
			if !ok || cfg == nil {
				return
			}
			a.logSvc.Apply(logxConfig(cfg))
			if err := a.digest.Apply(ctx, digestConfig(cfg)); err != nil {
				a.log.Warn("digest reconfigure failed", logx.Err(err))
			}
			a.log.Info("config applied")
		}
	}
}

// Stop tears everything down: roster first (bounded by the stop grace
// period since tasks stop concurrently), then the services.
func (a *App) Stop(ctx context.Context) error {
	a.tasks.StopAll()
	a.digest.Stop(ctx)
	a.status.Stop(ctx)

	var err error
	if a.sup != nil {
		err = a.sup.Stop(ctx)
	}
	a.log.Info("taskdeck stopped")
	_ = a.logSvc.Close()
	return err
}

func rosterDefs(cfg *config.Config) ([]task.Definition, error) {
	entries, err := cfg.Roster()
	if err != nil {
		return nil, err
	}
	if entries == nil {
		return task.DefaultRoster(), nil
	}
	defs := make([]task.Definition, 0, len(entries))
	for i, e := range entries {
		defs = append(defs, task.Definition{
			ID:      i + 1,
			Name:    e.Name,
			Initial: e.Initial,
			Regular: e.Regular,
			Work:    task.SimulatedWork(e.WorkMin, e.WorkMax),
		})
	}
	return defs, nil
}

func logxConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func statusConfig(cfg *config.Config) status.Config {
	return status.Config{
		Enabled:           cfg.Status.Enabled,
		Addr:              cfg.Status.Addr,
		TriggerRatePerSec: cfg.Status.TriggerRatePerSec,
	}
}

func digestConfig(cfg *config.Config) digest.Config {
	return digest.Config{
		Enabled:  cfg.Digest.Enabled,
		Schedule: cfg.Digest.Schedule,
	}
}
