package handlers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/opencode-ai/pulse/internal/actions"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	command string
	env     []string
}

func newAction(t *testing.T, handler actions.Handler) (*actions.Registry, *actions.Action) {
	t.Helper()
	r, err := actions.NewRegistry(1, actions.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	a, err := r.Add(actions.Spec{Name: "job", Duration: 10, Handler: handler})
	require.NoError(t, err)
	return r, a
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name    string
		cfg     HandlerConfig
		want    any
		wantErr error
	}{
		{name: "default is log", cfg: HandlerConfig{}, want: &Log{}},
		{name: "log", cfg: HandlerConfig{Type: "LOG"}, want: &Log{}},
		{name: "exec", cfg: HandlerConfig{Type: "exec", Command: "true"}, want: &Exec{}},
		{name: "exec without command", cfg: HandlerConfig{Type: "exec"}, wantErr: ErrMissingCommand},
		{name: "exec bad callback", cfg: HandlerConfig{Type: "exec", Command: "true", On: []string{"pause"}}, wantErr: ErrUnknownCallback},
		{name: "exec env without separator", cfg: HandlerConfig{Type: "exec", Command: "true", Env: []string{"TOKEN"}}, wantErr: ErrInvalidEntry},
		{name: "exec vars empty key", cfg: HandlerConfig{Type: "exec", Command: "true", Vars: []string{" =eu"}}, wantErr: ErrInvalidEntry},
		{name: "exec bad template", cfg: HandlerConfig{Type: "exec", Command: "echo {{.action"}, wantErr: ErrInvalidCommand},
		{name: "unknown", cfg: HandlerConfig{Type: "webhook"}, wantErr: ErrUnknownHandler},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := Build(tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, h)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, h)
		})
	}
}

func TestExec_RunsOnSelectedCallbacks(t *testing.T) {
	h := NewExec(HandlerConfig{Type: TypeExec, Command: "do-it", On: []string{"start", "stop"}, Env: []string{"A=1", "Api_Token=x=y"}})
	h.logger = zerolog.Nop()

	var calls []call
	h.run = func(ctx context.Context, command string, env []string) (string, error) {
		calls = append(calls, call{command: command, env: env})
		return "", nil
	}

	r, a := newAction(t, h)
	require.NoError(t, r.Schedule(a))
	r.Dispatch(0)
	r.Dispatch(5)
	r.Dispatch(10)

	require.Len(t, calls, 2)
	assert.Equal(t, "do-it", calls[0].command)
	assert.Contains(t, calls[0].env, "PULSE_ACTION=job")
	assert.Contains(t, calls[0].env, "PULSE_CALLBACK=start")
	assert.Contains(t, calls[0].env, "A=1")
	assert.Contains(t, calls[0].env, "Api_Token=x=y")
	assert.Contains(t, calls[1].env, "PULSE_CALLBACK=stop")
}

func TestExec_RendersCommandTemplate(t *testing.T) {
	h := NewExec(HandlerConfig{
		Type:    TypeExec,
		Command: `notify {{.action}} {{.callback}} {{.state}} {{.target}} {{default "none" .parent}} {{default "fallback" .missing}}`,
		On:      []string{"start", "stop"},
		Vars:    []string{"target=ops", "action=shadowed"},
	})
	h.logger = zerolog.Nop()

	var commands []string
	h.run = func(ctx context.Context, command string, env []string) (string, error) {
		commands = append(commands, command)
		return "", nil
	}

	r, a := newAction(t, h)
	require.NoError(t, r.Schedule(a))
	r.Dispatch(0)
	r.Dispatch(10)

	require.Len(t, commands, 2)
	assert.Equal(t, "notify job start SCHEDULED ops none fallback", commands[0])
	assert.Equal(t, "notify job stop RUNNING ops none fallback", commands[1])
}

func TestExec_VarsKeepKeyCase(t *testing.T) {
	h := NewExec(HandlerConfig{
		Type:    TypeExec,
		Command: `deploy {{.Region}} {{default "none" .region}}`,
		Vars:    []string{"Region=eu-west", "empty="},
	})
	h.logger = zerolog.Nop()

	var commands []string
	h.run = func(ctx context.Context, command string, env []string) (string, error) {
		commands = append(commands, command)
		return "", nil
	}

	r, a := newAction(t, h)
	require.NoError(t, r.Schedule(a))
	r.Dispatch(0)

	require.Len(t, commands, 1)
	assert.Equal(t, "deploy eu-west none", commands[0])
	assert.Equal(t, map[string]string{"Region": "eu-west", "empty": ""}, h.vars)
}

func TestParseAssignments(t *testing.T) {
	pairs, err := parseAssignments("env", []string{"A=1", " B =two=2", "C="})
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"A", "1"}, {"B", "two=2"}, {"C", ""}}, pairs)

	_, err = parseAssignments("env", []string{"A=1", "broken"})
	assert.ErrorIs(t, err, ErrInvalidEntry)
	assert.Contains(t, err.Error(), `env "broken"`)
}

func TestParseCommand(t *testing.T) {
	plain, err := parseCommand("c", "echo {not a template}")
	require.NoError(t, err)
	out, err := plain.render(nil)
	require.NoError(t, err)
	assert.Equal(t, "echo {not a template}", out)

	_, err = parseCommand("c", "echo {{ if }}")
	assert.ErrorIs(t, err, ErrInvalidCommand)

	assert.Equal(t, "d", defaultValue("d", nil))
	assert.Equal(t, "d", defaultValue("d", "  "))
	assert.Equal(t, "42", defaultValue("d", 42))
}

func TestExec_DefaultsToStartOnly(t *testing.T) {
	h := NewExec(HandlerConfig{Type: TypeExec, Command: "x"})

	assert.Equal(t, map[string]bool{OnStart: true}, h.on)
	assert.Equal(t, DefaultExecTimeout, h.timeout)
}

func TestExec_FailureIsLoggedNotFatal(t *testing.T) {
	h := NewExec(HandlerConfig{Type: TypeExec, Command: "x"})
	h.logger = zerolog.Nop()
	h.run = func(context.Context, string, []string) (string, error) {
		return "nope", errors.New("exit status 1")
	}

	r, a := newAction(t, h)
	require.NoError(t, r.Schedule(a))
	r.Dispatch(0)

	assert.Equal(t, "RUNNING", a.Label())
}

func TestRunShell(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}

	out, err := runShell(context.Background(), `echo "$PULSE_ACTION"`, []string{"PULSE_ACTION=job"})
	require.NoError(t, err)
	assert.Equal(t, "job", out)

	marker := filepath.Join(t.TempDir(), "ran")
	_, err = runShell(context.Background(), "touch "+marker, nil)
	require.NoError(t, err)
	_, err = os.Stat(marker)
	assert.NoError(t, err)

	_, err = runShell(context.Background(), "exit 3", nil)
	assert.Error(t, err)
}

func TestRunShell_Timeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := runShell(ctx, "sleep 5", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
