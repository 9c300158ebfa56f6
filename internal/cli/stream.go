package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/opencode-ai/pulse/internal/db"
	"github.com/opencode-ai/pulse/internal/logging"
	"github.com/opencode-ai/pulse/internal/models"
	"github.com/rs/zerolog"
)

// ConnectionStatus describes the streamer's view of the journal.
type ConnectionStatus string

const (
	ConnectionStatusConnected    ConnectionStatus = "connected"
	ConnectionStatusReconnecting ConnectionStatus = "reconnecting"
	ConnectionStatusDisconnected ConnectionStatus = "disconnected"
)

// ReconnectConfig controls how the streamer retries failed polls.
type ReconnectConfig struct {
	Enabled bool

	// MaxAttempts is the number of consecutive failures tolerated. Zero means unlimited.
	MaxAttempts int

	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64

	// OnStatusChange is called whenever the connection status changes.
	OnStatusChange func(status ConnectionStatus, attempt int, nextRetry time.Duration, err error)
}

// DefaultReconnectConfig returns the default retry policy.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		Enabled:           true,
		MaxAttempts:       0,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// StreamConfig configures an EventStreamer.
type StreamConfig struct {
	PollInterval time.Duration
	BatchSize    int

	// Since bounds replayed events when IncludeExisting is set.
	Since           *time.Time
	IncludeExisting bool

	// Filters. Empty means no filter.
	EntityTypes []models.EntityType
	EntityID    string
	EventType   models.EventType

	Reconnect ReconnectConfig
}

// DefaultStreamConfig returns the default streaming configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		PollInterval: 500 * time.Millisecond,
		BatchSize:    100,
		Reconnect:    DefaultReconnectConfig(),
	}
}

// EventStreamer follows the journal and writes new events as JSON lines.
type EventStreamer struct {
	repo   *db.EventRepository
	out    io.Writer
	config StreamConfig
	logger zerolog.Logger
}

// NewEventStreamer creates a streamer reading from repo and writing to out.
func NewEventStreamer(repo *db.EventRepository, out io.Writer, config StreamConfig) *EventStreamer {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultStreamConfig().PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultStreamConfig().BatchSize
	}
	return &EventStreamer{
		repo:   repo,
		out:    out,
		config: config,
		logger: logging.Component("stream"),
	}
}

type streamState struct {
	cursor string
	since  *time.Time
	primed bool
}

// Stream polls until ctx is done. It returns nil on cancellation and an error
// when a poll fails and reconnection is disabled or exhausted.
func (s *EventStreamer) Stream(ctx context.Context) error {
	state := &streamState{}
	if s.config.IncludeExisting {
		state.since = s.config.Since
		state.primed = true
	}

	s.notify(ConnectionStatusConnected, 0, 0, nil)

	attempt := 0
	var backoff time.Duration
	for {
		wait := s.config.PollInterval

		if err := s.step(ctx, state); err != nil {
			if ctx.Err() != nil {
				s.notify(ConnectionStatusDisconnected, attempt, 0, nil)
				return nil
			}
			if !s.config.Reconnect.Enabled {
				s.notify(ConnectionStatusDisconnected, attempt, 0, err)
				return fmt.Errorf("poll events: %w", err)
			}
			attempt++
			if s.config.Reconnect.MaxAttempts > 0 && attempt > s.config.Reconnect.MaxAttempts {
				s.notify(ConnectionStatusDisconnected, attempt, 0, err)
				return fmt.Errorf("max reconnection attempts (%d) exceeded: %w", s.config.Reconnect.MaxAttempts, err)
			}
			backoff = s.calculateBackoff(attempt, backoff)
			wait = backoff
			s.logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", backoff).Msg("event poll failed")
			s.notify(ConnectionStatusReconnecting, attempt, backoff, err)
		} else if attempt > 0 {
			attempt = 0
			backoff = 0
			s.notify(ConnectionStatusConnected, 0, 0, nil)
		}

		select {
		case <-ctx.Done():
			s.notify(ConnectionStatusDisconnected, attempt, 0, nil)
			return nil
		case <-time.After(wait):
		}
	}
}

// step drains every page available after the cursor. Until the stream is
// primed, existing events only advance the cursor.
func (s *EventStreamer) step(ctx context.Context, state *streamState) error {
	for {
		events, cursor, err := s.poll(ctx, state.cursor, state.since)
		if err != nil {
			return err
		}
		if state.primed {
			for _, event := range events {
				if err := s.writeEvent(event); err != nil {
					return err
				}
			}
		}
		if cursor == state.cursor {
			state.primed = true
			return nil
		}
		state.cursor = cursor
	}
}

// poll fetches one batch after cursor. The returned cursor is the last event
// seen, including events dropped by the entity type filter.
func (s *EventStreamer) poll(ctx context.Context, cursor string, since *time.Time) ([]*models.Event, string, error) {
	query := db.EventQuery{
		Since:  since,
		Cursor: cursor,
		Limit:  s.config.BatchSize,
	}
	if s.config.EntityID != "" {
		id := s.config.EntityID
		query.EntityID = &id
	}
	if s.config.EventType != "" {
		eventType := s.config.EventType
		query.Type = &eventType
	}
	if len(s.config.EntityTypes) == 1 {
		entityType := s.config.EntityTypes[0]
		query.EntityType = &entityType
	}

	page, err := s.repo.Query(ctx, query)
	if err != nil {
		return nil, cursor, err
	}

	next := cursor
	if page.NextCursor != "" {
		next = page.NextCursor
	} else if len(page.Events) > 0 {
		next = page.Events[len(page.Events)-1].ID
	}

	if len(s.config.EntityTypes) <= 1 {
		return page.Events, next, nil
	}
	filtered := make([]*models.Event, 0, len(page.Events))
	for _, event := range page.Events {
		if s.matchesEntityType(event.EntityType) {
			filtered = append(filtered, event)
		}
	}
	return filtered, next, nil
}

func (s *EventStreamer) matchesEntityType(entityType models.EntityType) bool {
	for _, want := range s.config.EntityTypes {
		if want == entityType {
			return true
		}
	}
	return false
}

func (s *EventStreamer) writeEvent(event *models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.ID, err)
	}
	data = append(data, '\n')
	_, err = s.out.Write(data)
	return err
}

func (s *EventStreamer) calculateBackoff(attempt int, current time.Duration) time.Duration {
	cfg := s.config.Reconnect
	if attempt <= 1 || current <= 0 {
		return cfg.InitialBackoff
	}
	next := time.Duration(float64(current) * cfg.BackoffMultiplier)
	if cfg.MaxBackoff > 0 && next > cfg.MaxBackoff {
		next = cfg.MaxBackoff
	}
	return next
}

func (s *EventStreamer) notify(status ConnectionStatus, attempt int, nextRetry time.Duration, err error) {
	if s.config.Reconnect.OnStatusChange != nil {
		s.config.Reconnect.OnStatusChange(status, attempt, nextRetry, err)
	}
}

// MustBeJSONLForFollow rejects --follow without --jsonl.
func MustBeJSONLForFollow() error {
	if followMode && !IsJSONLOutput() {
		return &PreflightError{
			Message:  "--follow requires --jsonl",
			Hint:     "events are streamed as JSON lines",
			NextStep: "pulse events --follow --jsonl",
		}
	}
	return nil
}

// ParseSince parses a relative duration ("1h", "7d") or an absolute time
// (RFC3339, "2006-01-02", "2006-01-02T15:04:05"). Empty input returns nil.
func ParseSince(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	if d, err := parseDurationWithDays(value); err == nil {
		t := time.Now().UTC().Add(-d)
		return &t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		t = t.UTC()
		return &t, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return &t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", value, time.Local); err == nil {
		return &t, nil
	}
	return nil, fmt.Errorf("invalid --since value %q: use a duration like 1h or 7d, or a timestamp", value)
}

func parseDurationWithDays(value string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := strconv.ParseFloat(days, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid day count %q: %w", value, err)
		}
		return time.Duration(n * float64(24*time.Hour)), nil
	}
	return time.ParseDuration(value)
}
