package actions

import (
	"github.com/opencode-ai/pulse/internal/models"
)

// Handler receives the lifecycle callbacks of an action.
//
// Callbacks run synchronously inside Dispatch. They must not schedule or
// deschedule actions of the same registry.
type Handler interface {
	OnStart(a *Action)
	OnTick(a *Action)
	OnStop(a *Action)
}

// Gate is implemented by handlers that want a say in whether an action may
// start. It is only consulted after the built-in rules allow the start.
type Gate interface {
	CanStart(a *Action) bool
}

// HandlerFuncs adapts plain functions to Handler and Gate. Nil fields are no-ops;
// a nil Allow permits every start.
type HandlerFuncs struct {
	Start func(a *Action)
	Tick  func(a *Action)
	Stop  func(a *Action)
	Allow func(a *Action) bool
}

func (h HandlerFuncs) OnStart(a *Action) {
	if h.Start != nil {
		h.Start(a)
	}
}

func (h HandlerFuncs) OnTick(a *Action) {
	if h.Tick != nil {
		h.Tick(a)
	}
}

func (h HandlerFuncs) OnStop(a *Action) {
	if h.Stop != nil {
		h.Stop(a)
	}
}

func (h HandlerFuncs) CanStart(a *Action) bool {
	if h.Allow != nil {
		return h.Allow(a)
	}
	return true
}

type noopHandler struct{}

func (noopHandler) OnStart(*Action) {}
func (noopHandler) OnTick(*Action)  {}
func (noopHandler) OnStop(*Action)  {}

// Spec describes an action to add to a registry. Times are in the caller's
// clock unit, normally milliseconds.
type Spec struct {
	// Name is descriptive and need not be unique.
	Name string

	// Interval is the cooldown after a stop before the action may start again.
	// Zero disables the cooldown.
	Interval uint64

	// Duration is how long the action runs before it is stopped automatically.
	// Zero means it runs until a stop is requested.
	Duration uint64

	// Timeout is the delay after start before ticks are delivered.
	Timeout uint64

	// Frozen actions stay scheduled after they stop and restart once eligible.
	Frozen bool

	Handler Handler

	// Value is caller-owned data. The registry never reads it.
	Value any
}

// Action is one schedulable unit. Actions live in the fixed pool of the
// Registry that created them and are reused for the registry's lifetime.
type Action struct {
	Value any

	name     string
	interval uint64
	duration uint64
	timeout  uint64
	frozen   bool
	handler  Handler

	registry *Registry
	handle   int

	state         models.ActionState
	lastStart     uint64
	lastStop      uint64
	hasStopped    bool
	stopRequested bool
	pendingClear  bool

	parent     *Action
	dependents []*Action
}

func (a *Action) Name() string     { return a.name }
func (a *Action) Interval() uint64 { return a.interval }
func (a *Action) Duration() uint64 { return a.duration }
func (a *Action) Timeout() uint64  { return a.timeout }
func (a *Action) Frozen() bool     { return a.frozen }

// State returns the current lifecycle state.
func (a *Action) State() models.ActionState { return a.state }

// Label returns the state name, using the CHILD_ mirrors for dependents.
func (a *Action) Label() string { return a.state.Label(a.Dependent()) }

// Dependent reports whether the action is driven by a parent.
func (a *Action) Dependent() bool { return a.parent != nil }

// Parent returns the action this one depends on, or nil.
func (a *Action) Parent() *Action { return a.parent }

// Dependents returns the direct dependents in start order.
func (a *Action) Dependents() []*Action {
	out := make([]*Action, len(a.dependents))
	copy(out, a.dependents)
	return out
}

// LastStartTime is the time of the most recent start.
func (a *Action) LastStartTime() uint64 { return a.lastStart }

// LastStopTime is the time of the most recent stop.
func (a *Action) LastStopTime() uint64 { return a.lastStop }

// StopRequested reports whether a stop is pending for the next pass.
func (a *Action) StopRequested() bool { return a.stopRequested }

// eachDependent visits the dependents tree depth-first in start order.
func (a *Action) eachDependent(fn func(d *Action)) {
	for _, d := range a.dependents {
		fn(d)
		d.eachDependent(fn)
	}
}

// eachDependentReverse visits the dependents tree in exactly the reverse of
// eachDependent, so the deepest, last-started dependent comes first.
func (a *Action) eachDependentReverse(fn func(d *Action)) {
	for i := len(a.dependents) - 1; i >= 0; i-- {
		d := a.dependents[i]
		d.eachDependentReverse(fn)
		fn(d)
	}
}

func (a *Action) root() *Action {
	for a.parent != nil {
		a = a.parent
	}
	return a
}

func (a *Action) hasAncestor(candidate *Action) bool {
	for p := a; p != nil; p = p.parent {
		if p == candidate {
			return true
		}
	}
	return false
}
