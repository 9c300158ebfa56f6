// Package actions implements the cooperative action scheduler: a fixed pool
// of actions, the ordered set of scheduled ones, and the dispatch pass that
// starts, ticks and stops them against a caller-supplied clock.
//
// A Registry is not safe for concurrent use. One control flow must drive
// Dispatch and every Schedule, Deschedule and RequestStop call.
package actions

import (
	"fmt"
	"strings"

	"github.com/opencode-ai/pulse/internal/logging"
	"github.com/opencode-ai/pulse/internal/models"
	"github.com/rs/zerolog"
)

// Stats counts the work done by a registry.
type Stats struct {
	Passes             int64
	Starts             int64
	Ticks              int64
	Stops              int64
	Swept              int64
	// InvalidTransitions counts state writes the lifecycle table rejects.
	InvalidTransitions int64
	Scheduled          int
	LastPassAt         uint64
	Dispatching        bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithObserver adds an observer for lifecycle transitions.
func WithObserver(o Observer) Option {
	return func(r *Registry) {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
}

// WithLogger replaces the default component logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// Registry owns a fixed-capacity pool of actions and schedules a subset of them.
type Registry struct {
	pool     []Action
	byName   map[string]*Action
	list     scheduledList
	snapshot []int

	observers Observers
	logger    zerolog.Logger

	sealed      bool
	dispatching bool
	lastNow     uint64
	stats       Stats
}

// NewRegistry creates a registry able to hold capacity actions. The snapshot
// buffer used by Dispatch is sized here, once.
func NewRegistry(capacity int, opts ...Option) (*Registry, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}

	r := &Registry{
		pool:     make([]Action, 0, capacity),
		byName:   make(map[string]*Action, capacity),
		list:     newScheduledList(capacity),
		snapshot: make([]int, capacity),
		logger:   logging.Component("actions"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Add places a new action in the pool. Actions can only be added before the
// first Dispatch.
func (r *Registry) Add(spec Spec) (*Action, error) {
	if r.sealed {
		return nil, ErrRegistrySealed
	}
	if len(r.pool) == cap(r.pool) {
		return nil, fmt.Errorf("%w: capacity %d", ErrCapacityExceeded, cap(r.pool))
	}

	name := strings.TrimSpace(spec.Name)
	if name == "" {
		name = fmt.Sprintf("action-%d", len(r.pool))
	}
	handler := spec.Handler
	if handler == nil {
		handler = noopHandler{}
	}

	// The pool never grows past its capacity, so element addresses are stable.
	r.pool = append(r.pool, Action{
		Value:    spec.Value,
		name:     name,
		interval: spec.Interval,
		duration: spec.Duration,
		timeout:  spec.Timeout,
		frozen:   spec.Frozen,
		handler:  handler,
		registry: r,
		handle:   len(r.pool),
		state:    models.ActionStateNonActive,
	})
	a := &r.pool[len(r.pool)-1]
	if _, exists := r.byName[name]; !exists {
		r.byName[name] = a
	}
	return a, nil
}

// AddDependent makes child a dependent of parent. Dependents start right after
// their parent and stop right before it, within the same pass.
func (r *Registry) AddDependent(parent, child *Action) error {
	if err := r.owns(parent); err != nil {
		return err
	}
	if err := r.owns(child); err != nil {
		return err
	}
	if r.sealed {
		return ErrRegistrySealed
	}
	if parent.hasAncestor(child) {
		return fmt.Errorf("%w: %s -> %s", ErrDependencyCycle, parent.name, child.name)
	}
	if child.parent != nil {
		return fmt.Errorf("%w: %s depends on %s", ErrAlreadyDependent, child.name, child.parent.name)
	}
	if child.state != models.ActionStateNonActive || parent.root().state != models.ActionStateNonActive {
		return ErrInvalidState
	}

	child.parent = parent
	parent.dependents = append(parent.dependents, child)
	return nil
}

// Schedule adds a to the scheduled set. It fails if a is already scheduled or
// is not NON_ACTIVE.
func (r *Registry) Schedule(a *Action) error {
	if err := r.owns(a); err != nil {
		return err
	}
	if a.parent != nil {
		return ErrDependentAction
	}
	if r.list.find(a.handle) >= 0 {
		return ErrAlreadyScheduled
	}
	if a.state != models.ActionStateNonActive {
		return ErrInvalidState
	}

	r.setState(a, models.ActionStateScheduled)
	r.notify(TransitionScheduled, a, nil)
	a.eachDependent(func(d *Action) {
		r.setState(d, models.ActionStateScheduled)
		r.notify(TransitionScheduled, d, a)
	})
	r.list.insert(a.handle)

	r.logger.Debug().Str("action", a.name).Int("scheduled", r.list.len()).Msg("action scheduled")
	return nil
}

// Deschedule removes a from the scheduled set. A running action must be
// stopped first.
func (r *Registry) Deschedule(a *Action) error {
	if err := r.owns(a); err != nil {
		return err
	}
	return r.deschedule(a)
}

func (r *Registry) deschedule(a *Action) error {
	if r.list.find(a.handle) < 0 {
		return ErrNotScheduled
	}
	if a.state == models.ActionStateRunning {
		return ErrActionRunning
	}

	r.setState(a, models.ActionStateNonActive)
	a.stopRequested = false
	r.notify(TransitionDescheduled, a, nil)
	a.eachDependent(func(d *Action) {
		r.setState(d, models.ActionStateNonActive)
		r.notify(TransitionDescheduled, d, a)
	})
	r.list.remove(a.handle)

	r.logger.Debug().Str("action", a.name).Int("scheduled", r.list.len()).Msg("action descheduled")
	return nil
}

// RequestStop asks for a to be stopped on the next pass.
func (r *Registry) RequestStop(a *Action) error {
	if err := r.owns(a); err != nil {
		return err
	}
	if r.list.find(a.handle) < 0 {
		return ErrNotScheduled
	}

	a.stopRequested = true
	r.notify(TransitionStopRequested, a, nil)
	r.logger.Debug().Str("action", a.name).Msg("stop requested")
	return nil
}

// IsScheduled reports whether a is in the scheduled set.
func (r *Registry) IsScheduled(a *Action) bool {
	_, ok := r.Position(a)
	return ok
}

// Position returns the index of a in scheduling order.
func (r *Registry) Position(a *Action) (int, bool) {
	if r.owns(a) != nil {
		return -1, false
	}
	i := r.list.find(a.handle)
	return i, i >= 0
}

// Scheduled returns the scheduled actions in scheduling order.
func (r *Registry) Scheduled() []*Action {
	out := make([]*Action, 0, r.list.len())
	for _, h := range r.list.handles {
		out = append(out, &r.pool[h])
	}
	return out
}

// Actions returns every action in the pool, in the order they were added.
func (r *Registry) Actions() []*Action {
	out := make([]*Action, len(r.pool))
	for i := range r.pool {
		out[i] = &r.pool[i]
	}
	return out
}

// Lookup returns the first action added under name.
func (r *Registry) Lookup(name string) (*Action, bool) {
	a, ok := r.byName[strings.TrimSpace(name)]
	return a, ok
}

// Len returns the number of scheduled actions.
func (r *Registry) Len() int { return r.list.len() }

// Capacity returns the pool capacity fixed at construction.
func (r *Registry) Capacity() int { return cap(r.pool) }

// Stats returns counters accumulated since construction.
func (r *Registry) Stats() Stats {
	s := r.stats
	s.Scheduled = r.list.len()
	s.LastPassAt = r.lastNow
	s.Dispatching = r.dispatching
	return s
}

func (r *Registry) owns(a *Action) error {
	if a == nil {
		return ErrNilAction
	}
	if a.registry != r {
		return ErrForeignAction
	}
	return nil
}

// setState moves a to next. A move the lifecycle table does not allow is still
// applied, but counted and logged.
func (r *Registry) setState(a *Action, next models.ActionState) {
	if !a.state.CanTransitionTo(next) {
		r.stats.InvalidTransitions++
		r.logger.Error().
			Str("action", a.name).
			Str("from", string(a.state)).
			Str("to", string(next)).
			Msg("invalid state transition")
	}
	a.state = next
}

func (r *Registry) notify(kind TransitionKind, a, parent *Action) {
	if len(r.observers) == 0 {
		return
	}
	r.observers.Observe(Transition{
		Kind:   kind,
		Action: a,
		Parent: parent,
		At:     r.lastNow,
		State:  a.state,
	})
}
