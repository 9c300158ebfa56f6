package models

import (
	"encoding/json"
	"strings"
	"time"
)

// EventType categorizes events in the system.
type EventType string

const (
	// Action lifecycle events
	EventTypeActionScheduled     EventType = "action.scheduled"
	EventTypeActionDescheduled   EventType = "action.descheduled"
	EventTypeActionStarted       EventType = "action.started"
	EventTypeActionTicked        EventType = "action.ticked"
	EventTypeActionStopped       EventType = "action.stopped"
	EventTypeActionStopRequested EventType = "action.stop_requested"

	// Scheduler events
	EventTypeSchedulerStarted EventType = "scheduler.started"
	EventTypeSchedulerStopped EventType = "scheduler.stopped"

	// System events
	EventTypeError   EventType = "error"
	EventTypeWarning EventType = "warning"
)

// EntityType identifies the type of entity an event relates to.
type EntityType string

const (
	EntityTypeAction    EntityType = "action"
	EntityTypeScheduler EntityType = "scheduler"
	EntityTypeSystem    EntityType = "system"
)

// Event represents an append-only journal entry.
type Event struct {
	// ID is the unique identifier for the event.
	ID string `json:"id"`

	// Timestamp is the wall-clock time the event was recorded.
	Timestamp time.Time `json:"timestamp"`

	// Type categorizes the event.
	Type EventType `json:"type"`

	// EntityType identifies what kind of entity this event relates to.
	EntityType EntityType `json:"entity_type"`

	// EntityID is the ID of the related entity.
	EntityID string `json:"entity_id"`

	// Payload contains event-specific data.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Metadata contains additional context.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Validate checks if the event is valid.
func (e *Event) Validate() error {
	validation := &ValidationErrors{}
	if strings.TrimSpace(string(e.Type)) == "" {
		validation.AddMessage("type", "event type is required")
	}
	if strings.TrimSpace(string(e.EntityType)) == "" {
		validation.AddMessage("entity_type", "entity_type is required")
	}
	if strings.TrimSpace(e.EntityID) == "" {
		validation.AddMessage("entity_id", "entity_id is required")
	}
	return validation.Err()
}

// ActionTransitionPayload is the payload for action.* events.
type ActionTransitionPayload struct {
	Name      string      `json:"name"`
	State     ActionState `json:"state"`
	Label     string      `json:"label"`
	Dependent bool        `json:"dependent,omitempty"`
	Parent    string      `json:"parent,omitempty"`
	AtMillis  uint64      `json:"at_ms"`
}

// SchedulerPayload is the payload for scheduler.* events.
type SchedulerPayload struct {
	PollInterval string `json:"poll_interval"`
	Actions      int    `json:"actions"`
	Passes       int64  `json:"passes,omitempty"`
}

// ErrorPayload is the payload for error events.
type ErrorPayload struct {
	Error   string `json:"error"`
	Context string `json:"context,omitempty"`
}
