package actions

import "github.com/opencode-ai/pulse/internal/models"

// CanStartAt reports whether the action may start at now.
//
// A pending stop or a running action never starts, nor does one still inside
// its cooldown. A Gate handler decides the remaining cases.
func (a *Action) CanStartAt(now uint64) bool {
	if a.stopRequested {
		return false
	}
	if a.state == models.ActionStateRunning {
		return false
	}
	if a.interval > 0 && a.hasStopped && now-a.lastStop < a.interval {
		return false
	}
	if gate, ok := a.handler.(Gate); ok {
		return gate.CanStart(a)
	}
	return true
}

// ShouldStopAt reports whether the action must stop at now: a stop was
// requested, or a running action used up its duration.
func (a *Action) ShouldStopAt(now uint64) bool {
	if a.stopRequested {
		return true
	}
	return a.state == models.ActionStateRunning &&
		a.duration > 0 &&
		now-a.lastStart >= a.duration
}

// ShouldTickAt reports whether a running action receives a tick at now.
// The gate is measured from the start time, not from the previous tick.
func (a *Action) ShouldTickAt(now uint64) bool {
	return a.state == models.ActionStateRunning && now-a.lastStart > a.timeout
}
