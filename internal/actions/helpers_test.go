package actions

import (
	"fmt"
	"strings"
	"testing"

	"github.com/opencode-ai/pulse/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// recorder collects handler callbacks as "<event> <name>" lines.
type recorder struct {
	now    *uint64
	events []string
}

func newRecorder() *recorder {
	var now uint64
	return &recorder{now: &now}
}

func (rec *recorder) add(event string, a *Action) {
	rec.events = append(rec.events, fmt.Sprintf("t=%d %s %s", *rec.now, event, a.Name()))
}

func (rec *recorder) handler() HandlerFuncs {
	return HandlerFuncs{
		Start: func(a *Action) { rec.add("start", a) },
		Tick:  func(a *Action) { rec.add("tick", a) },
		Stop:  func(a *Action) { rec.add("stop", a) },
	}
}

func (rec *recorder) dispatch(r *Registry, now uint64) {
	*rec.now = now
	r.Dispatch(now)
}

func (rec *recorder) count(event string) int {
	n := 0
	for _, e := range rec.events {
		if strings.Contains(e, " "+event+" ") {
			n++
		}
	}
	return n
}

func newTestRegistry(t *testing.T, capacity int, opts ...Option) *Registry {
	t.Helper()
	opts = append([]Option{WithLogger(zerolog.Nop())}, opts...)
	r, err := NewRegistry(capacity, opts...)
	require.NoError(t, err)
	return r
}

func mustAdd(t *testing.T, r *Registry, spec Spec) *Action {
	t.Helper()
	a, err := r.Add(spec)
	require.NoError(t, err)
	return a
}

// transitionChecker is an Observer that records every lifecycle move the
// state table does not allow. Ticks and stop requests leave the state as is.
type transitionChecker struct {
	last    map[*Action]models.ActionState
	invalid []string
}

func newTransitionChecker() *transitionChecker {
	return &transitionChecker{last: make(map[*Action]models.ActionState)}
}

func (c *transitionChecker) Observe(tr Transition) {
	if tr.Kind == TransitionTicked || tr.Kind == TransitionStopRequested {
		return
	}
	from, seen := c.last[tr.Action]
	if !seen {
		from = models.ActionStateNonActive
	}
	if !from.CanTransitionTo(tr.State) {
		c.invalid = append(c.invalid, fmt.Sprintf("%s %s: %s -> %s", tr.Kind, tr.Action.Name(), from, tr.State))
	}
	c.last[tr.Action] = tr.State
}
