package models

// ActionState represents the lifecycle state of a scheduled action.
//
// Dependent actions share the same states; whether a state belongs to a
// dependent is carried separately (see ActionState.Label).
type ActionState string

const (
	ActionStateNonActive ActionState = "NON_ACTIVE"
	ActionStateScheduled ActionState = "SCHEDULED"
	ActionStatePending   ActionState = "PENDING"
	ActionStateRunning   ActionState = "RUNNING"
)

// dependentPrefix marks the mirrored states of dependent actions.
const dependentPrefix = "CHILD_"

// String returns the string representation of the action state.
func (s ActionState) String() string {
	return string(s)
}

// IsActive returns true if the action is a member of a schedule.
func (s ActionState) IsActive() bool {
	switch s {
	case ActionStateScheduled, ActionStatePending, ActionStateRunning:
		return true
	}
	return false
}

// Label renders the state, using the CHILD_ mirror names for dependents.
// A dependent that is not active is reported as NON_ACTIVE.
func (s ActionState) Label(dependent bool) string {
	if dependent && s.IsActive() {
		return dependentPrefix + string(s)
	}
	return string(s)
}

// ValidActionTransitions defines the allowed state transitions for actions.
var ValidActionTransitions = map[ActionState][]ActionState{
	ActionStateNonActive: {ActionStateScheduled},
	ActionStateScheduled: {ActionStateRunning, ActionStatePending, ActionStateNonActive},
	ActionStateRunning:   {ActionStatePending},
	ActionStatePending:   {ActionStateRunning, ActionStatePending, ActionStateNonActive},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s ActionState) CanTransitionTo(next ActionState) bool {
	for _, allowed := range ValidActionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
