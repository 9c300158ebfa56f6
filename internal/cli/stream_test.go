package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/pulse/internal/db"
	"github.com/opencode-ai/pulse/internal/models"
)

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	_, err = database.MigrateUp(context.Background())
	require.NoError(t, err)
	return database
}

func createActionEvents(t *testing.T, repo *db.EventRepository, n int, eventType models.EventType) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, repo.Create(context.Background(), &models.Event{
			Type:       eventType,
			EntityType: models.EntityTypeAction,
			EntityID:   fmt.Sprintf("action-%d", i),
			Payload:    json.RawMessage(`{"name":"action","state":"RUNNING"}`),
		}))
	}
}

func countLines(buf *bytes.Buffer) int {
	return bytes.Count(buf.Bytes(), []byte("\n"))
}

func TestEventStreamer_WriteEvent(t *testing.T) {
	var buf bytes.Buffer
	streamer := NewEventStreamer(nil, &buf, DefaultStreamConfig())

	event := &models.Event{
		ID:         "evt-1",
		Timestamp:  time.Now().UTC(),
		Type:       models.EventTypeActionStarted,
		EntityType: models.EntityTypeAction,
		EntityID:   "heartbeat",
	}
	require.NoError(t, streamer.writeEvent(event))

	var decoded models.Event
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, event.Type, decoded.Type)
	assert.Equal(t, 1, countLines(&buf))
}

func TestEventStreamer_PollPaginates(t *testing.T) {
	repo := db.NewEventRepository(setupTestDB(t))
	createActionEvents(t, repo, 5, models.EventTypeActionStarted)

	config := DefaultStreamConfig()
	config.BatchSize = 2
	streamer := NewEventStreamer(repo, &bytes.Buffer{}, config)

	events, cursor, err := streamer.poll(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.NotEmpty(t, cursor)

	var seen []string
	for _, e := range events {
		seen = append(seen, e.EntityID)
	}
	for {
		next, nextCursor, err := streamer.poll(context.Background(), cursor, nil)
		require.NoError(t, err)
		for _, e := range next {
			seen = append(seen, e.EntityID)
		}
		if nextCursor == cursor {
			break
		}
		cursor = nextCursor
	}
	assert.Equal(t, []string{"action-0", "action-1", "action-2", "action-3", "action-4"}, seen)
}

func TestEventStreamer_FilterByEntityType(t *testing.T) {
	repo := db.NewEventRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Event{
		Type:       models.EventTypeActionScheduled,
		EntityType: models.EntityTypeAction,
		EntityID:   "heartbeat",
	}))
	require.NoError(t, repo.Create(ctx, &models.Event{
		Type:       models.EventTypeSchedulerStarted,
		EntityType: models.EntityTypeScheduler,
		EntityID:   "scheduler",
	}))
	require.NoError(t, repo.Create(ctx, &models.Event{
		Type:       models.EventTypeError,
		EntityType: models.EntityTypeSystem,
		EntityID:   "system",
	}))

	config := DefaultStreamConfig()
	config.EntityTypes = []models.EntityType{models.EntityTypeAction}
	events, _, err := NewEventStreamer(repo, &bytes.Buffer{}, config).poll(ctx, "", nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EntityTypeAction, events[0].EntityType)

	config.EntityTypes = []models.EntityType{models.EntityTypeAction, models.EntityTypeScheduler}
	events, cursor, err := NewEventStreamer(repo, &bytes.Buffer{}, config).poll(ctx, "", nil)
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.NotEmpty(t, cursor, "cursor advances past filtered events")
}

func TestEventStreamer_StreamWithCancellation(t *testing.T) {
	repo := db.NewEventRepository(setupTestDB(t))

	config := DefaultStreamConfig()
	config.PollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.NoError(t, NewEventStreamer(repo, &bytes.Buffer{}, config).Stream(ctx))
}

func TestEventStreamer_SkipsExistingByDefault(t *testing.T) {
	repo := db.NewEventRepository(setupTestDB(t))
	createActionEvents(t, repo, 3, models.EventTypeActionStarted)

	config := DefaultStreamConfig()
	config.PollInterval = 10 * time.Millisecond

	var buf bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, NewEventStreamer(repo, &buf, config).Stream(ctx))
	assert.Zero(t, buf.Len())
}

func TestEventStreamer_IncludeExisting(t *testing.T) {
	repo := db.NewEventRepository(setupTestDB(t))
	createActionEvents(t, repo, 3, models.EventTypeActionStarted)

	config := DefaultStreamConfig()
	config.PollInterval = 10 * time.Millisecond
	config.IncludeExisting = true
	since := time.Now().Add(-time.Hour)
	config.Since = &since

	var buf bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, NewEventStreamer(repo, &buf, config).Stream(ctx))
	assert.Equal(t, 3, countLines(&buf), "each event is written once")
}

func TestEventStreamer_FollowsNewEvents(t *testing.T) {
	repo := db.NewEventRepository(setupTestDB(t))
	createActionEvents(t, repo, 2, models.EventTypeActionStarted)

	config := DefaultStreamConfig()
	config.PollInterval = 5 * time.Millisecond

	var mu sync.Mutex
	var buf bytes.Buffer
	out := writerFunc(func(p []byte) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		return buf.Write(p)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewEventStreamer(repo, out, config).Stream(ctx) }()

	time.Sleep(30 * time.Millisecond)
	createActionEvents(t, repo, 1, models.EventTypeActionStopped)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return countLines(&buf) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	var decoded models.Event
	mu.Lock()
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded))
	mu.Unlock()
	assert.Equal(t, models.EventTypeActionStopped, decoded.Type)
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

func TestDefaultStreamConfig(t *testing.T) {
	config := DefaultStreamConfig()
	assert.Equal(t, 500*time.Millisecond, config.PollInterval)
	assert.Equal(t, 100, config.BatchSize)
	assert.False(t, config.IncludeExisting)
	assert.True(t, config.Reconnect.Enabled)
}

func TestDefaultReconnectConfig(t *testing.T) {
	cfg := DefaultReconnectConfig()
	assert.True(t, cfg.Enabled)
	assert.Zero(t, cfg.MaxAttempts)
	assert.Equal(t, time.Second, cfg.InitialBackoff)
	assert.Equal(t, 30*time.Second, cfg.MaxBackoff)
	assert.Equal(t, 2.0, cfg.BackoffMultiplier)
}

func TestEventStreamer_StatusCallback(t *testing.T) {
	repo := db.NewEventRepository(setupTestDB(t))

	var mu sync.Mutex
	var statuses []ConnectionStatus

	config := DefaultStreamConfig()
	config.PollInterval = 10 * time.Millisecond
	config.Reconnect.OnStatusChange = func(status ConnectionStatus, attempt int, nextRetry time.Duration, err error) {
		mu.Lock()
		statuses = append(statuses, status)
		mu.Unlock()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, NewEventStreamer(repo, &bytes.Buffer{}, config).Stream(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(statuses), 2)
	assert.Equal(t, ConnectionStatusConnected, statuses[0])
	assert.Equal(t, ConnectionStatusDisconnected, statuses[len(statuses)-1])
}

func TestEventStreamer_CalculateBackoff(t *testing.T) {
	config := DefaultStreamConfig()
	config.Reconnect = ReconnectConfig{
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        time.Second,
		BackoffMultiplier: 2.0,
	}
	streamer := NewEventStreamer(nil, &bytes.Buffer{}, config)

	tests := []struct {
		attempt  int
		current  time.Duration
		expected time.Duration
	}{
		{1, 0, 100 * time.Millisecond},
		{2, 100 * time.Millisecond, 200 * time.Millisecond},
		{3, 200 * time.Millisecond, 400 * time.Millisecond},
		{4, 400 * time.Millisecond, 800 * time.Millisecond},
		{5, 800 * time.Millisecond, time.Second},
		{6, time.Second, time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, streamer.calculateBackoff(tt.attempt, tt.current), "attempt %d", tt.attempt)
	}
}

func TestEventStreamer_ReconnectDisabled(t *testing.T) {
	database := setupTestDB(t)
	repo := db.NewEventRepository(database)
	require.NoError(t, database.Close())

	config := DefaultStreamConfig()
	config.PollInterval = 10 * time.Millisecond
	config.Reconnect.Enabled = false

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	assert.Error(t, NewEventStreamer(repo, &bytes.Buffer{}, config).Stream(ctx))
}

func TestEventStreamer_ReconnectMaxAttempts(t *testing.T) {
	database := setupTestDB(t)
	repo := db.NewEventRepository(database)
	require.NoError(t, database.Close())

	var mu sync.Mutex
	reconnecting := 0

	config := DefaultStreamConfig()
	config.PollInterval = 10 * time.Millisecond
	config.Reconnect = ReconnectConfig{
		Enabled:           true,
		MaxAttempts:       3,
		InitialBackoff:    10 * time.Millisecond,
		MaxBackoff:        50 * time.Millisecond,
		BackoffMultiplier: 2.0,
		OnStatusChange: func(status ConnectionStatus, attempt int, nextRetry time.Duration, err error) {
			if status == ConnectionStatusReconnecting {
				mu.Lock()
				reconnecting++
				mu.Unlock()
			}
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := NewEventStreamer(repo, &bytes.Buffer{}, config).Stream(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max reconnection attempts")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, reconnecting)
}

func TestMustBeJSONLForFollow(t *testing.T) {
	origFollow, origJSONL := followMode, jsonlOutput
	t.Cleanup(func() {
		followMode = origFollow
		jsonlOutput = origJSONL
	})

	tests := []struct {
		name      string
		follow    bool
		jsonl     bool
		wantError bool
	}{
		{"follow without jsonl", true, false, true},
		{"follow with jsonl", true, true, false},
		{"no follow", false, false, false},
		{"no follow with jsonl", false, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			followMode = tt.follow
			jsonlOutput = tt.jsonl

			err := MustBeJSONLForFollow()
			if tt.wantError {
				var preflight *PreflightError
				require.ErrorAs(t, err, &preflight)
				assert.NotEmpty(t, preflight.NextStep)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseSince(t *testing.T) {
	within := func(want time.Duration) func(*testing.T, *time.Time) {
		return func(t *testing.T, got *time.Time) {
			require.NotNil(t, got)
			assert.InDelta(t, want.Seconds(), time.Since(*got).Seconds(), 60)
		}
	}

	tests := []struct {
		name    string
		input   string
		wantErr bool
		check   func(*testing.T, *time.Time)
	}{
		{name: "empty", input: "", check: func(t *testing.T, got *time.Time) { assert.Nil(t, got) }},
		{name: "hours", input: "1h", check: within(time.Hour)},
		{name: "minutes", input: "30m", check: within(30 * time.Minute)},
		{name: "one day", input: "1d", check: within(24 * time.Hour)},
		{name: "seven days", input: "7d", check: within(7 * 24 * time.Hour)},
		{name: "whitespace", input: "  1h  ", check: within(time.Hour)},
		{
			name:  "rfc3339",
			input: "2024-01-15T10:30:00Z",
			check: func(t *testing.T, got *time.Time) {
				require.NotNil(t, got)
				assert.True(t, got.Equal(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)))
			},
		},
		{
			name:  "rfc3339 with offset",
			input: "2024-01-15T10:30:00-05:00",
			check: func(t *testing.T, got *time.Time) {
				require.NotNil(t, got)
				assert.True(t, got.Equal(time.Date(2024, 1, 15, 15, 30, 0, 0, time.UTC)))
				assert.Equal(t, time.UTC, got.Location())
			},
		},
		{
			name:  "date",
			input: "2024-01-15",
			check: func(t *testing.T, got *time.Time) {
				require.NotNil(t, got)
				assert.True(t, got.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)))
			},
		},
		{
			name:  "local datetime",
			input: "2024-01-15T10:30:00",
			check: func(t *testing.T, got *time.Time) {
				require.NotNil(t, got)
				assert.True(t, got.Equal(time.Date(2024, 1, 15, 10, 30, 0, 0, time.Local)))
			},
		},
		{name: "garbage", input: "not-a-time", wantErr: true},
		{name: "bad duration", input: "abc123", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSince(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, got)
		})
	}
}

func TestParseDurationWithDays(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"1d", 24 * time.Hour, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"0.5d", 12 * time.Hour, false},
		{"1h", time.Hour, false},
		{"30m", 30 * time.Minute, false},
		{"1h30m", 90 * time.Minute, false},
		{"xd", 0, true},
		{"invalid", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseDurationWithDays(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
