package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the full taskdeck configuration. YAML and JSON are both
// accepted; unknown fields are rejected.
type Config struct {
	Logging LoggingConfig `json:"logging"`
	Status  StatusConfig  `json:"status,omitempty"`
	Digest  DigestConfig  `json:"digest,omitempty"`

	// Tasks overrides the built-in demonstration roster. If empty, the
	// default 16-task roster is used. The roster is fixed at startup;
	// hot reload does not touch it.
	Tasks []TaskConfig `json:"tasks,omitempty"`
}

type LoggingConfig struct {
	Level   string     `json:"level,omitempty"`
	Console bool       `json:"console"`
	File    FileConfig `json:"file,omitempty"`
}

type FileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StatusConfig controls the HTTP status/control surface.
type StatusConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`

	// TriggerRatePerSec limits manual-trigger requests across all tasks.
	// 0 applies the default.
	TriggerRatePerSec int `json:"trigger_rate_per_sec,omitempty"`
}

// DigestConfig controls the periodic roster digest logged by the cron job.
type DigestConfig struct {
	Enabled bool `json:"enabled"`

	// Schedule is a cron spec or "@every <duration>". Default "@every 1m".
	Schedule string `json:"schedule,omitempty"`
}

// TaskConfig is one roster entry. All durations are Go duration strings
// (e.g. "30s", "2h", "360h" for 15 days).
type TaskConfig struct {
	Name            string `json:"name"`
	InitialInterval string `json:"initial_interval"`
	RegularInterval string `json:"regular_interval"`
	WorkMin         string `json:"work_min,omitempty"`
	WorkMax         string `json:"work_max,omitempty"`
}

// RosterEntry is a parsed, validated TaskConfig.
type RosterEntry struct {
	Name    string
	Initial time.Duration
	Regular time.Duration
	WorkMin time.Duration
	WorkMax time.Duration
}

// Default returns the baseline configuration used when fields are omitted.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Console: true},
		Status:  StatusConfig{Enabled: true, Addr: "127.0.0.1:8099"},
		Digest:  DigestConfig{Enabled: true, Schedule: "@every 1m"},
	}
}

// Validate checks the whole config. It is used both at startup and as the
// hot-reload gate, so a broken edit never replaces a good running config.
func (c *Config) Validate() error {
	if _, err := c.Roster(); err != nil {
		return err
	}
	if c.Status.TriggerRatePerSec < 0 {
		return fmt.Errorf("status.trigger_rate_per_sec: must be >= 0")
	}
	return nil
}

// Roster parses and validates the configured task entries. An empty Tasks
// list yields (nil, nil); the caller falls back to the built-in roster.
func (c *Config) Roster() ([]RosterEntry, error) {
	if len(c.Tasks) == 0 {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(c.Tasks))
	out := make([]RosterEntry, 0, len(c.Tasks))
	for i, tc := range c.Tasks {
		path := fmt.Sprintf("tasks[%d]", i)
		name := strings.TrimSpace(tc.Name)
		if name == "" {
			return nil, fmt.Errorf("%s.name: required", path)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%s.name: duplicate %q", path, name)
		}
		seen[name] = struct{}{}

		initial, err := ParseDurationField(path+".initial_interval", tc.InitialInterval)
		if err != nil {
			return nil, err
		}
		regular, err := ParseDurationField(path+".regular_interval", tc.RegularInterval)
		if err != nil {
			return nil, err
		}
		if initial <= 0 {
			return nil, fmt.Errorf("%s.initial_interval: must be > 0", path)
		}
		if regular <= 0 {
			return nil, fmt.Errorf("%s.regular_interval: must be > 0", path)
		}
		workMin, err := ParseDurationOrDefault(path+".work_min", tc.WorkMin, 200*time.Millisecond)
		if err != nil {
			return nil, err
		}
		workMax, err := ParseDurationOrDefault(path+".work_max", tc.WorkMax, 2*time.Second)
		if err != nil {
			return nil, err
		}
		if workMax < workMin {
			return nil, fmt.Errorf("%s.work_max: must be >= work_min", path)
		}

		out = append(out, RosterEntry{
			Name:    name,
			Initial: initial,
			Regular: regular,
			WorkMin: workMin,
			WorkMax: workMax,
		})
	}
	return out, nil
}

// WithDefaults fills omitted fields in place and returns the config.
func (c *Config) WithDefaults() *Config {
	def := Default()
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = def.Logging.Level
	}
	if strings.TrimSpace(c.Status.Addr) == "" {
		c.Status.Addr = def.Status.Addr
	}
	if strings.TrimSpace(c.Digest.Schedule) == "" {
		c.Digest.Schedule = def.Digest.Schedule
	}
	return c
}
