// Package handlers provides the built-in action behaviours that can be bound
// from configuration.
package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/opencode-ai/pulse/internal/actions"
	"github.com/opencode-ai/pulse/internal/logging"
	"github.com/rs/zerolog"
)

// Handler types.
const (
	TypeLog  = "log"
	TypeExec = "exec"
)

// Callback names accepted in HandlerConfig.On.
const (
	OnStart = "start"
	OnTick  = "tick"
	OnStop  = "stop"
)

// Handler errors.
var (
	ErrUnknownHandler  = errors.New("unknown handler type")
	ErrMissingCommand  = errors.New("exec handler requires a command")
	ErrUnknownCallback = errors.New("unknown callback")
	ErrInvalidEntry    = errors.New("entry must be KEY=VALUE")
)

// DefaultExecTimeout bounds an exec callback when no timeout is configured.
const DefaultExecTimeout = 30 * time.Second

// HandlerConfig describes a handler in configuration.
type HandlerConfig struct {
	// Type selects the behaviour: "log" (default) or "exec".
	Type string `mapstructure:"type" yaml:"type" json:"type"`

	// Command is the shell command run by exec handlers.
	Command string `mapstructure:"command" yaml:"command" json:"command,omitempty"`

	// Timeout bounds each exec invocation.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout,omitempty"`

	// On lists the callbacks that run the command. Default: start.
	On []string `mapstructure:"on" yaml:"on" json:"on,omitempty"`

	// Env adds KEY=VALUE variables to the command environment. A list keeps
	// key case intact through the config loader.
	Env []string `mapstructure:"env" yaml:"env" json:"env,omitempty"`

	// Vars are extra KEY=VALUE fields available to the command template.
	Vars []string `mapstructure:"vars" yaml:"vars" json:"vars,omitempty"`
}

// Validate checks the handler configuration.
func (c HandlerConfig) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Type)) {
	case "", TypeLog:
		return nil
	case TypeExec:
		if strings.TrimSpace(c.Command) == "" {
			return ErrMissingCommand
		}
		for _, on := range c.On {
			switch strings.ToLower(strings.TrimSpace(on)) {
			case OnStart, OnTick, OnStop:
			default:
				return fmt.Errorf("%w: %q", ErrUnknownCallback, on)
			}
		}
		if _, err := parseAssignments("env", c.Env); err != nil {
			return err
		}
		if _, err := parseAssignments("vars", c.Vars); err != nil {
			return err
		}
		if _, err := parseCommand("command", c.Command); err != nil {
			return err
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownHandler, c.Type)
	}
}

// Build creates the handler described by cfg.
func Build(cfg HandlerConfig) (actions.Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case TypeExec:
		return NewExec(cfg), nil
	default:
		return NewLog(), nil
	}
}

// Log logs every callback.
type Log struct {
	logger zerolog.Logger
}

// NewLog creates a Log handler.
func NewLog() *Log {
	return &Log{logger: logging.Component("handler")}
}

func (h *Log) OnStart(a *actions.Action) {
	h.logger.Info().Str("action", a.Name()).Bool("dependent", a.Dependent()).Msg("start")
}

func (h *Log) OnTick(a *actions.Action) {
	h.logger.Debug().Str("action", a.Name()).Msg("tick")
}

func (h *Log) OnStop(a *actions.Action) {
	h.logger.Info().
		Str("action", a.Name()).
		Uint64("started_at", a.LastStartTime()).
		Bool("stop_requested", a.StopRequested()).
		Msg("stop")
}

// Exec runs a shell command on selected callbacks. Commands run synchronously
// inside the pass, bounded by the configured timeout.
type Exec struct {
	command *commandTemplate
	vars    map[string]string
	timeout time.Duration
	on      map[string]bool
	env     []string
	logger  zerolog.Logger

	// run is replaced in tests.
	run func(ctx context.Context, command string, env []string) (string, error)
}

// NewExec creates an Exec handler. cfg should already be validated.
func NewExec(cfg HandlerConfig) *Exec {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}

	on := make(map[string]bool)
	for _, name := range cfg.On {
		on[strings.ToLower(strings.TrimSpace(name))] = true
	}
	if len(on) == 0 {
		on[OnStart] = true
	}

	// Invalid entries were rejected by Validate.
	envPairs, _ := parseAssignments("env", cfg.Env)
	env := make([]string, 0, len(envPairs))
	for _, kv := range envPairs {
		env = append(env, kv[0]+"="+kv[1])
	}
	vars := make(map[string]string, len(cfg.Vars))
	varPairs, _ := parseAssignments("vars", cfg.Vars)
	for _, kv := range varPairs {
		vars[kv[0]] = kv[1]
	}

	command, err := parseCommand("command", cfg.Command)
	if err != nil {
		command = &commandTemplate{raw: cfg.Command}
	}

	return &Exec{
		command: command,
		vars:    vars,
		timeout: timeout,
		on:      on,
		env:     env,
		logger:  logging.Component("handler"),
		run:     runShell,
	}
}

func (h *Exec) OnStart(a *actions.Action) { h.invoke(OnStart, a) }
func (h *Exec) OnTick(a *actions.Action)  { h.invoke(OnTick, a) }
func (h *Exec) OnStop(a *actions.Action)  { h.invoke(OnStop, a) }

func (h *Exec) invoke(callback string, a *actions.Action) {
	if !h.on[callback] {
		return
	}

	command, err := h.command.render(h.templateData(callback, a))
	if err != nil {
		h.logger.Warn().Err(err).Str("action", a.Name()).Str("callback", callback).Msg("command not run")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	env := append([]string{
		"PULSE_ACTION=" + a.Name(),
		"PULSE_CALLBACK=" + callback,
		"PULSE_STATE=" + a.Label(),
	}, h.env...)

	started := time.Now()
	output, err := h.run(ctx, command, env)
	if err != nil {
		h.logger.Warn().Err(err).
			Str("action", a.Name()).
			Str("callback", callback).
			Str("output", output).
			Msg("command failed")
		return
	}

	h.logger.Debug().
		Str("action", a.Name()).
		Str("callback", callback).
		Dur("took", time.Since(started)).
		Str("output", output).
		Msg("command finished")
}

func (h *Exec) templateData(callback string, a *actions.Action) map[string]string {
	data := make(map[string]string, len(h.vars)+4)
	for k, v := range h.vars {
		data[k] = v
	}
	data["action"] = a.Name()
	data["callback"] = callback
	data["state"] = a.Label()
	if p := a.Parent(); p != nil {
		data["parent"] = p.Name()
	}
	return data
}

// parseAssignments splits KEY=VALUE entries in order. The value may be empty
// or contain further '=' signs; the key may not be empty.
func parseAssignments(field string, entries []string) ([][2]string, error) {
	pairs := make([][2]string, 0, len(entries))
	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return pairs, fmt.Errorf("%w: %s %q", ErrInvalidEntry, field, entry)
		}
		pairs = append(pairs, [2]string{key, value})
	}
	return pairs, nil
}

func runShell(ctx context.Context, command string, env []string) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Env = append(os.Environ(), env...)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		err = fmt.Errorf("command timed out: %w", ctx.Err())
	}
	return strings.TrimSpace(out.String()), err
}
