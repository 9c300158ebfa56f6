package config

import (
	"fmt"
	"strings"

	"github.com/opencode-ai/pulse/internal/actions"
	"github.com/opencode-ai/pulse/internal/clock"
	"github.com/opencode-ai/pulse/internal/handlers"
)

// BuildRegistry creates a registry holding every configured action, with
// handlers bound and dependents linked. Autostart actions are not scheduled;
// see AutostartNames.
func (c *Config) BuildRegistry(opts ...actions.Option) (*actions.Registry, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	capacity := c.Scheduler.Capacity
	if capacity == 0 {
		capacity = len(c.Actions)
	}
	if capacity == 0 {
		capacity = 1
	}

	registry, err := actions.NewRegistry(capacity, opts...)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*actions.Action, len(c.Actions))
	for _, ac := range c.Actions {
		handler, err := handlers.Build(ac.Handler)
		if err != nil {
			return nil, fmt.Errorf("action %q: %w", ac.Name, err)
		}
		a, err := registry.Add(actions.Spec{
			Name:     strings.TrimSpace(ac.Name),
			Interval: clock.Millis(ac.Interval),
			Duration: clock.Millis(ac.Duration),
			Timeout:  clock.Millis(ac.Timeout),
			Frozen:   ac.Frozen,
			Handler:  handler,
		})
		if err != nil {
			return nil, fmt.Errorf("action %q: %w", ac.Name, err)
		}
		byName[a.Name()] = a
	}

	for _, ac := range c.Actions {
		parent := byName[strings.TrimSpace(ac.Name)]
		for _, dep := range ac.Dependents {
			if err := registry.AddDependent(parent, byName[strings.TrimSpace(dep)]); err != nil {
				return nil, fmt.Errorf("action %q dependent %q: %w", ac.Name, dep, err)
			}
		}
	}

	return registry, nil
}

// AutostartNames returns the actions to schedule at startup, in config order.
func (c *Config) AutostartNames() []string {
	var names []string
	for _, ac := range c.Actions {
		if ac.Autostart {
			names = append(names, strings.TrimSpace(ac.Name))
		}
	}
	return names
}
