package models

import "testing"

func TestActionState_IsActive(t *testing.T) {
	tests := []struct {
		state  ActionState
		active bool
	}{
		{ActionStateNonActive, false},
		{ActionStateScheduled, true},
		{ActionStatePending, true},
		{ActionStateRunning, true},
	}
	for _, tt := range tests {
		if got := tt.state.IsActive(); got != tt.active {
			t.Errorf("ActionState(%q).IsActive() = %v, want %v", tt.state, got, tt.active)
		}
	}
}

func TestActionState_Label(t *testing.T) {
	tests := []struct {
		state     ActionState
		dependent bool
		want      string
	}{
		{ActionStateNonActive, false, "NON_ACTIVE"},
		{ActionStateRunning, false, "RUNNING"},
		{ActionStateNonActive, true, "NON_ACTIVE"},
		{ActionStateScheduled, true, "CHILD_SCHEDULED"},
		{ActionStateRunning, true, "CHILD_RUNNING"},
		{ActionStatePending, true, "CHILD_PENDING"},
	}
	for _, tt := range tests {
		if got := tt.state.Label(tt.dependent); got != tt.want {
			t.Errorf("ActionState(%q).Label(%v) = %q, want %q", tt.state, tt.dependent, got, tt.want)
		}
	}
}

func TestActionState_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from  ActionState
		to    ActionState
		valid bool
	}{
		// Valid transitions
		{ActionStateNonActive, ActionStateScheduled, true},
		{ActionStateScheduled, ActionStateRunning, true},
		{ActionStateScheduled, ActionStateNonActive, true},
		{ActionStateRunning, ActionStatePending, true},
		{ActionStatePending, ActionStateRunning, true},
		{ActionStatePending, ActionStateNonActive, true},

		// Invalid transitions
		{ActionStateNonActive, ActionStateRunning, false},
		{ActionStateRunning, ActionStateNonActive, false},
		{ActionStateRunning, ActionStateScheduled, false},
		{ActionStatePending, ActionStateScheduled, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.valid {
			t.Errorf("ActionState(%q).CanTransitionTo(%q) = %v, want %v", tt.from, tt.to, got, tt.valid)
		}
	}
}
