// Package events records scheduler activity in the event journal.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opencode-ai/pulse/internal/actions"
	"github.com/opencode-ai/pulse/internal/logging"
	"github.com/opencode-ai/pulse/internal/models"
	"github.com/rs/zerolog"
)

// Repository is the minimal interface needed to write events.
type Repository interface {
	Create(ctx context.Context, event *models.Event) error
}

// JournalConfig controls which transitions are written.
type JournalConfig struct {
	// RecordTicks journals action.ticked events. Ticks can be very frequent.
	RecordTicks bool

	// WriteTimeout bounds each repository write. Default: 2 seconds.
	WriteTimeout time.Duration
}

// Journal is an actions.Observer that writes each transition to a Repository.
// Write failures are logged and counted; they never reach the dispatch pass.
type Journal struct {
	repo   Repository
	config JournalConfig
	logger zerolog.Logger

	written int64
	failed  int64
}

var transitionEvents = map[actions.TransitionKind]models.EventType{
	actions.TransitionScheduled:     models.EventTypeActionScheduled,
	actions.TransitionDescheduled:   models.EventTypeActionDescheduled,
	actions.TransitionStarted:       models.EventTypeActionStarted,
	actions.TransitionTicked:        models.EventTypeActionTicked,
	actions.TransitionStopped:       models.EventTypeActionStopped,
	actions.TransitionStopRequested: models.EventTypeActionStopRequested,
}

// NewJournal creates a Journal writing to repo.
func NewJournal(repo Repository, config JournalConfig) *Journal {
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 2 * time.Second
	}
	return &Journal{
		repo:   repo,
		config: config,
		logger: logging.Component("journal"),
	}
}

// Observe implements actions.Observer.
func (j *Journal) Observe(t actions.Transition) {
	if t.Kind == actions.TransitionTicked && !j.config.RecordTicks {
		return
	}
	eventType, ok := transitionEvents[t.Kind]
	if !ok || t.Action == nil {
		return
	}

	payload := models.ActionTransitionPayload{
		Name:      t.Action.Name(),
		State:     t.State,
		Label:     t.State.Label(t.Action.Dependent()),
		Dependent: t.Action.Dependent(),
		AtMillis:  t.At,
	}
	if t.Parent != nil {
		payload.Parent = t.Parent.Name()
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.config.WriteTimeout)
	defer cancel()

	if err := write(ctx, j.repo, eventType, models.EntityTypeAction, payload.Name, payload); err != nil {
		j.failed++
		j.logger.Warn().Err(err).
			Str("action", payload.Name).
			Str("type", string(eventType)).
			Msg("failed to journal transition")
		return
	}
	j.written++
}

// Written returns how many events were stored.
func (j *Journal) Written() int64 { return j.written }

// Failed returns how many writes failed.
func (j *Journal) Failed() int64 { return j.failed }

// LogSchedulerStarted records that a scheduler loop began.
func LogSchedulerStarted(ctx context.Context, repo Repository, pollInterval time.Duration, actionCount int) error {
	return write(ctx, repo, models.EventTypeSchedulerStarted, models.EntityTypeScheduler, "scheduler",
		models.SchedulerPayload{
			PollInterval: pollInterval.String(),
			Actions:      actionCount,
		})
}

// LogSchedulerStopped records that a scheduler loop ended after passes passes.
func LogSchedulerStopped(ctx context.Context, repo Repository, pollInterval time.Duration, actionCount int, passes int64) error {
	return write(ctx, repo, models.EventTypeSchedulerStopped, models.EntityTypeScheduler, "scheduler",
		models.SchedulerPayload{
			PollInterval: pollInterval.String(),
			Actions:      actionCount,
			Passes:       passes,
		})
}

// LogError records an error event against the system entity.
func LogError(ctx context.Context, repo Repository, errContext string, cause error) error {
	if cause == nil {
		return fmt.Errorf("error is required")
	}
	return write(ctx, repo, models.EventTypeError, models.EntityTypeSystem, "pulse",
		models.ErrorPayload{Error: cause.Error(), Context: errContext})
}

func write(ctx context.Context, repo Repository, eventType models.EventType, entityType models.EntityType, entityID string, payload any) error {
	if repo == nil {
		return fmt.Errorf("event repository is required")
	}
	if entityID == "" {
		return fmt.Errorf("entity id is required")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}

	return repo.Create(ctx, &models.Event{
		Type:       eventType,
		EntityType: entityType,
		EntityID:   entityID,
		Payload:    data,
	})
}
