package actions

import "errors"

// Registry errors.
var (
	ErrInvalidCapacity  = errors.New("capacity must be at least 1")
	ErrCapacityExceeded = errors.New("registry capacity exceeded")
	ErrRegistrySealed   = errors.New("registry is sealed after the first dispatch")
	ErrNilAction        = errors.New("action is nil")
	ErrForeignAction    = errors.New("action belongs to another registry")
	ErrAlreadyScheduled = errors.New("action already scheduled")
	ErrNotScheduled     = errors.New("action not scheduled")
	ErrInvalidState     = errors.New("action is not in a valid state for this operation")
	ErrActionRunning    = errors.New("action is running")
	ErrDependentAction  = errors.New("dependent actions are driven by their parent")
	ErrAlreadyDependent = errors.New("action already has a parent")
	ErrDependencyCycle  = errors.New("dependency would form a cycle")
)
