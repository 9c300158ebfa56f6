package actions

import "github.com/opencode-ai/pulse/internal/models"

// TransitionKind names a lifecycle transition reported to observers.
type TransitionKind string

const (
	TransitionScheduled     TransitionKind = "scheduled"
	TransitionDescheduled   TransitionKind = "descheduled"
	TransitionStarted       TransitionKind = "started"
	TransitionTicked        TransitionKind = "ticked"
	TransitionStopped       TransitionKind = "stopped"
	TransitionStopRequested TransitionKind = "stop_requested"
)

// Transition describes one change applied by the registry.
type Transition struct {
	Kind   TransitionKind
	Action *Action

	// Parent is set when Action is a dependent and the change was propagated.
	Parent *Action

	// At is the pass time. Caller operations between passes carry the time
	// of the most recent pass.
	At uint64

	// State is the action state after the change.
	State models.ActionState
}

// Observer is notified synchronously after every transition.
type Observer interface {
	Observe(t Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(t Transition)

// Observe calls f(t).
func (f ObserverFunc) Observe(t Transition) { f(t) }

// Observers fans a transition out to several observers in order.
type Observers []Observer

// Observe forwards t to each observer.
func (o Observers) Observe(t Transition) {
	for _, obs := range o {
		obs.Observe(t)
	}
}
