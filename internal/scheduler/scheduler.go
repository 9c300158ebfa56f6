// Package scheduler drives an action registry from a polling loop.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/opencode-ai/pulse/internal/actions"
	"github.com/opencode-ai/pulse/internal/clock"
	"github.com/opencode-ai/pulse/internal/logging"
	"github.com/opencode-ai/pulse/internal/models"
	"github.com/rs/zerolog"
)

// Scheduler errors.
var (
	ErrSchedulerAlreadyRunning = errors.New("scheduler already running")
	ErrSchedulerNotRunning     = errors.New("scheduler not running")
	ErrActionNotFound          = errors.New("action not found")
)

// Config contains scheduler configuration.
type Config struct {
	// PollInterval is how often the scheduler runs a pass.
	// Default: 10 milliseconds.
	PollInterval time.Duration

	// EventBuffer is the capacity of the pass event channel.
	// Default: 100.
	EventBuffer int

	// MaxPasses ends the loop after this many passes. Zero means no limit.
	MaxPasses int64
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		PollInterval: 10 * time.Millisecond,
		EventBuffer:  100,
	}
}

// PassEvent summarises one dispatch pass.
type PassEvent struct {
	// At is the clock time handed to the registry.
	At uint64

	// Started, Ticked and Stopped count the callbacks of top-level actions
	// during the pass.
	Started int64
	Ticked  int64
	Stopped int64

	// Scheduled is the size of the scheduled set after the pass.
	Scheduled int

	// Timestamp is the wall-clock time the pass began.
	Timestamp time.Time

	// Duration is how long the pass took.
	Duration time.Duration
}

// SchedulerStats contains scheduler statistics.
type SchedulerStats struct {
	// Running indicates if the scheduler is active.
	Running bool

	// Paused indicates if the scheduler is paused.
	Paused bool

	// StartedAt is when the scheduler was started.
	StartedAt *time.Time

	// Passes is the number of passes run by this scheduler.
	Passes int64

	// Starts, Ticks and Stops are registry totals.
	Starts int64
	Ticks  int64
	Stops  int64

	// Scheduled is the current size of the scheduled set.
	Scheduled int

	// LastPassAt is when the last pass ran.
	LastPassAt *time.Time

	// LastPassMillis is the clock value of the last pass.
	LastPassMillis uint64
}

// ActionInfo is a read-only view of one action.
type ActionInfo struct {
	Name          string             `json:"name"`
	State         models.ActionState `json:"state"`
	Label         string             `json:"label"`
	Dependent     bool               `json:"dependent"`
	Parent        string             `json:"parent,omitempty"`
	Scheduled     bool               `json:"scheduled"`
	Frozen        bool               `json:"frozen"`
	Interval      uint64             `json:"interval_ms"`
	Duration      uint64             `json:"duration_ms"`
	Timeout       uint64             `json:"timeout_ms"`
	LastStart     uint64             `json:"last_start_ms"`
	LastStop      uint64             `json:"last_stop_ms"`
	StopRequested bool               `json:"stop_requested"`
}

// Scheduler runs registry passes on a fixed poll interval and serialises
// caller operations with those passes.
//
// Handlers run while the scheduler holds its pass lock and must not call back
// into the scheduler.
type Scheduler struct {
	config   Config
	registry *actions.Registry
	clock    clock.Clock
	logger   zerolog.Logger

	// passMu guards the registry, which is not safe for concurrent use.
	passMu sync.Mutex

	// Runtime state
	mu          sync.RWMutex
	running     bool
	paused      bool
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	scheduleNow chan struct{}

	// Stats
	stats   SchedulerStats
	statsMu sync.RWMutex
	passCh  chan PassEvent
}

// New creates a new Scheduler. A nil clock defaults to clock.NewSystem().
func New(config Config, registry *actions.Registry, clk clock.Clock) *Scheduler {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = DefaultConfig().EventBuffer
	}
	if clk == nil {
		clk = clock.NewSystem()
	}

	return &Scheduler{
		config:      config,
		registry:    registry,
		clock:       clk,
		logger:      logging.Component("scheduler"),
		scheduleNow: make(chan struct{}, 1),
		passCh:      make(chan PassEvent, config.EventBuffer),
	}
}

// Start begins the scheduler's background polling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSchedulerAlreadyRunning
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.paused = false

	now := time.Now().UTC()
	s.statsMu.Lock()
	s.stats.Running = true
	s.stats.Paused = false
	s.stats.StartedAt = &now
	s.statsMu.Unlock()

	s.logger.Info().
		Dur("poll_interval", s.config.PollInterval).
		Int("capacity", s.registry.Capacity()).
		Msg("scheduler starting")

	s.wg.Add(1)
	go s.runLoop()

	return nil
}

// Stop halts the scheduler and waits for the current pass to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}

	s.logger.Info().Msg("scheduler stopping")

	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()

	s.statsMu.Lock()
	s.stats.Running = false
	s.statsMu.Unlock()

	s.logger.Info().Msg("scheduler stopped")
	return nil
}

// Done returns a channel closed when the running loop's context ends, either
// through cancellation or because MaxPasses was reached. It returns nil when
// the scheduler is not running.
func (s *Scheduler) Done() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return nil
	}
	return s.ctx.Done()
}

// ScheduleNow triggers a pass without waiting for the next poll.
func (s *Scheduler) ScheduleNow() error {
	s.mu.RLock()
	running := s.running
	paused := s.paused
	s.mu.RUnlock()

	if !running || paused {
		return ErrSchedulerNotRunning
	}

	select {
	case s.scheduleNow <- struct{}{}:
	default:
		// A pass is already queued.
	}
	return nil
}

// Pause temporarily suspends passes without stopping the loop.
func (s *Scheduler) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrSchedulerNotRunning
	}
	if s.paused {
		return nil // Already paused
	}

	s.paused = true
	s.statsMu.Lock()
	s.stats.Paused = true
	s.statsMu.Unlock()

	s.logger.Info().Msg("scheduler paused")
	return nil
}

// Resume resumes a paused scheduler.
func (s *Scheduler) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrSchedulerNotRunning
	}
	if !s.paused {
		return nil // Already running
	}

	s.paused = false
	s.statsMu.Lock()
	s.stats.Paused = false
	s.statsMu.Unlock()

	s.logger.Info().Msg("scheduler resumed")
	return nil
}

// RunPass runs one pass immediately at the current clock time.
// It works whether or not the loop is running.
func (s *Scheduler) RunPass() PassEvent {
	return s.pass()
}

// Schedule schedules the named action.
func (s *Scheduler) Schedule(name string) error {
	return s.withAction(name, "schedule", s.registry.Schedule)
}

// Deschedule removes the named action from the schedule.
func (s *Scheduler) Deschedule(name string) error {
	return s.withAction(name, "deschedule", s.registry.Deschedule)
}

// RequestStop asks for the named action to stop on the next pass.
func (s *Scheduler) RequestStop(name string) error {
	return s.withAction(name, "request stop", s.registry.RequestStop)
}

func (s *Scheduler) withAction(name, op string, fn func(*actions.Action) error) error {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	a, ok := s.registry.Lookup(name)
	if !ok {
		return fmt.Errorf("%s %q: %w", op, name, ErrActionNotFound)
	}
	if err := fn(a); err != nil {
		return fmt.Errorf("%s %q: %w", op, name, err)
	}
	return nil
}

// Snapshot returns the state of every action in registry order.
func (s *Scheduler) Snapshot() []ActionInfo {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	all := s.registry.Actions()
	out := make([]ActionInfo, 0, len(all))
	for _, a := range all {
		info := ActionInfo{
			Name:          a.Name(),
			State:         a.State(),
			Label:         a.Label(),
			Dependent:     a.Dependent(),
			Scheduled:     s.registry.IsScheduled(a),
			Frozen:        a.Frozen(),
			Interval:      a.Interval(),
			Duration:      a.Duration(),
			Timeout:       a.Timeout(),
			LastStart:     a.LastStartTime(),
			LastStop:      a.LastStopTime(),
			StopRequested: a.StopRequested(),
		}
		if p := a.Parent(); p != nil {
			info.Parent = p.Name()
		}
		out = append(out, info)
	}
	return out
}

// Config returns the effective configuration.
func (s *Scheduler) Config() Config {
	return s.config
}

// Stats returns current scheduler statistics.
func (s *Scheduler) Stats() SchedulerStats {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()
	return s.stats
}

// PassEvents returns the channel of pass events.
// Events are dropped when nobody keeps up with the channel.
func (s *Scheduler) PassEvents() <-chan PassEvent {
	return s.passCh
}

// runLoop is the main polling loop.
func (s *Scheduler) runLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return

		case <-s.scheduleNow:
		case <-ticker.C:
		}

		if s.isPaused() {
			continue
		}
		s.pass()

		if s.config.MaxPasses > 0 && s.Stats().Passes >= s.config.MaxPasses {
			s.logger.Info().Int64("passes", s.config.MaxPasses).Msg("pass limit reached")
			s.cancel()
			return
		}
	}
}

func (s *Scheduler) isPaused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused
}

// pass performs one dispatch pass under the pass lock.
func (s *Scheduler) pass() PassEvent {
	started := time.Now()

	s.passMu.Lock()
	before := s.registry.Stats()
	now := s.clock.NowMillis()
	s.registry.Dispatch(now)
	after := s.registry.Stats()
	s.passMu.Unlock()

	event := PassEvent{
		At:        now,
		Started:   after.Starts - before.Starts,
		Ticked:    after.Ticks - before.Ticks,
		Stopped:   after.Stops - before.Stops,
		Scheduled: after.Scheduled,
		Timestamp: started,
		Duration:  time.Since(started),
	}
	s.recordPass(event, after)

	if event.Started > 0 || event.Stopped > 0 {
		s.logger.Debug().
			Uint64("at", now).
			Int64("started", event.Started).
			Int64("stopped", event.Stopped).
			Int("scheduled", event.Scheduled).
			Msg("pass complete")
	}
	return event
}

// recordPass records a pass in stats and publishes it.
func (s *Scheduler) recordPass(event PassEvent, totals actions.Stats) {
	s.statsMu.Lock()
	s.stats.Passes++
	s.stats.Starts = totals.Starts
	s.stats.Ticks = totals.Ticks
	s.stats.Stops = totals.Stops
	s.stats.Scheduled = totals.Scheduled
	ts := event.Timestamp
	s.stats.LastPassAt = &ts
	s.stats.LastPassMillis = event.At
	s.statsMu.Unlock()

	// Send to pass channel (non-blocking)
	select {
	case s.passCh <- event:
	default:
		// Channel full, drop event
	}
}
