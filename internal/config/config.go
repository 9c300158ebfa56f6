// Package config loads and validates pulse configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/opencode-ai/pulse/internal/handlers"
	"github.com/opencode-ai/pulse/internal/models"
)

// Config is the root configuration.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	Journal   JournalConfig   `mapstructure:"journal" yaml:"journal"`
	TUI       TUIConfig       `mapstructure:"tui" yaml:"tui"`
	Actions   []ActionConfig  `mapstructure:"actions" yaml:"actions"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-" yaml:"-"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// SchedulerConfig configures the polling loop and the registry.
type SchedulerConfig struct {
	// PollInterval is the time between passes.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`

	// Capacity is the registry pool size. Zero sizes it to the action count.
	Capacity int `mapstructure:"capacity" yaml:"capacity"`

	// MaxPasses ends the run after this many passes. Zero means no limit.
	MaxPasses int64 `mapstructure:"max_passes" yaml:"max_passes"`
}

// JournalConfig configures the SQLite event journal.
type JournalConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Path        string `mapstructure:"path" yaml:"path"`
	RecordTicks bool   `mapstructure:"record_ticks" yaml:"record_ticks"`
}

// TUIConfig configures the watch view.
type TUIConfig struct {
	Theme           string        `mapstructure:"theme" yaml:"theme"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval" yaml:"refresh_interval"`
}

// ActionConfig describes one action. Durations must be whole milliseconds.
type ActionConfig struct {
	Name       string                 `mapstructure:"name" yaml:"name"`
	Interval   time.Duration          `mapstructure:"interval" yaml:"interval"`
	Duration   time.Duration          `mapstructure:"duration" yaml:"duration"`
	Timeout    time.Duration          `mapstructure:"timeout" yaml:"timeout"`
	Frozen     bool                   `mapstructure:"frozen" yaml:"frozen"`
	Autostart  bool                   `mapstructure:"autostart" yaml:"autostart"`
	Handler    handlers.HandlerConfig `mapstructure:"handler" yaml:"handler"`
	Dependents []string               `mapstructure:"dependents" yaml:"dependents"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Scheduler: SchedulerConfig{
			PollInterval: 10 * time.Millisecond,
		},
		Journal: JournalConfig{
			Path: filepath.Join(DefaultDataDir(), "journal.db"),
		},
		TUI: TUIConfig{
			Theme:           "default",
			RefreshInterval: 250 * time.Millisecond,
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	v := &models.ValidationErrors{}

	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "json":
	default:
		v.AddMessage("logging.format", fmt.Sprintf("unknown format %q (want console or json)", c.Logging.Format))
	}

	if c.Scheduler.PollInterval <= 0 {
		v.AddMessage("scheduler.poll_interval", "must be positive")
	}
	if c.Scheduler.Capacity < 0 {
		v.AddMessage("scheduler.capacity", "must not be negative")
	} else if c.Scheduler.Capacity > 0 && c.Scheduler.Capacity < len(c.Actions) {
		v.AddMessage("scheduler.capacity", fmt.Sprintf("%d is smaller than the %d configured actions", c.Scheduler.Capacity, len(c.Actions)))
	}
	if c.Scheduler.MaxPasses < 0 {
		v.AddMessage("scheduler.max_passes", "must not be negative")
	}
	if c.Journal.Enabled && strings.TrimSpace(c.Journal.Path) == "" {
		v.AddMessage("journal.path", "is required when the journal is enabled")
	}
	if c.TUI.RefreshInterval < 0 {
		v.AddMessage("tui.refresh_interval", "must not be negative")
	}

	names := make(map[string]int, len(c.Actions))
	for i, a := range c.Actions {
		field := fmt.Sprintf("actions[%d]", i)
		name := strings.TrimSpace(a.Name)
		if name == "" {
			v.AddMessage(field+".name", "is required")
		} else if _, dup := names[name]; dup {
			v.AddMessage(field+".name", fmt.Sprintf("duplicate action name %q", name))
		} else {
			names[name] = i
		}
		for _, d := range []struct {
			key   string
			value time.Duration
		}{
			{"interval", a.Interval},
			{"duration", a.Duration},
			{"timeout", a.Timeout},
		} {
			switch {
			case d.value < 0:
				v.AddMessage(field+"."+d.key, "must not be negative")
			case d.value%time.Millisecond != 0:
				v.AddMessage(field+"."+d.key, fmt.Sprintf("%s is not a whole number of milliseconds", d.value))
			}
		}
		if err := a.Handler.Validate(); err != nil {
			v.AddMessage(field+".handler", err.Error())
		}
	}

	parents := make(map[string]string)
	for i, a := range c.Actions {
		field := fmt.Sprintf("actions[%d].dependents", i)
		for _, dep := range a.Dependents {
			dep = strings.TrimSpace(dep)
			switch {
			case dep == strings.TrimSpace(a.Name):
				v.AddMessage(field, fmt.Sprintf("%q cannot depend on itself", dep))
			case !hasKey(names, dep):
				v.AddMessage(field, fmt.Sprintf("unknown action %q", dep))
			case parents[dep] != "":
				v.AddMessage(field, fmt.Sprintf("%q is already a dependent of %q", dep, parents[dep]))
			default:
				parents[dep] = strings.TrimSpace(a.Name)
			}
		}
	}

	for i, a := range c.Actions {
		name := strings.TrimSpace(a.Name)
		if a.Autostart && parents[name] != "" {
			v.AddMessage(fmt.Sprintf("actions[%d].autostart", i), "dependent actions start with their parent")
		}
		if reachesSelf(name, parents) {
			v.AddMessage(fmt.Sprintf("actions[%d].dependents", i), fmt.Sprintf("%q is part of a dependency cycle", name))
		}
	}

	return v.Err()
}

// reachesSelf walks the parent chain from name and reports whether it loops.
func reachesSelf(name string, parents map[string]string) bool {
	seen := map[string]bool{name: true}
	for p := parents[name]; p != ""; p = parents[p] {
		if seen[p] {
			return true
		}
		seen[p] = true
	}
	return false
}

func hasKey(m map[string]int, k string) bool {
	_, ok := m[k]
	return ok
}

// DefaultConfigDir returns the directory searched for pulse.yaml.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "pulse")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "pulse")
	}
	return filepath.Join(home, ".config", "pulse")
}

// DefaultDataDir returns the directory holding the journal database.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pulse"
	}
	return filepath.Join(home, ".pulse")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
