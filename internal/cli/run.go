package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opencode-ai/pulse/internal/actions"
	"github.com/opencode-ai/pulse/internal/config"
	"github.com/opencode-ai/pulse/internal/db"
	"github.com/opencode-ai/pulse/internal/events"
	"github.com/opencode-ai/pulse/internal/logging"
	"github.com/opencode-ai/pulse/internal/scheduler"
	"github.com/opencode-ai/pulse/internal/tui"
	"github.com/spf13/cobra"
)

var (
	runMaxPasses    int64
	runPollInterval time.Duration
	runSchedule     []string
	runNoJournal    bool
)

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)

	for _, cmd := range []*cobra.Command{runCmd, watchCmd} {
		cmd.Flags().Int64Var(&runMaxPasses, "max-passes", 0, "stop after this many passes (0 = unlimited)")
		cmd.Flags().DurationVar(&runPollInterval, "poll-interval", 0, "override scheduler.poll_interval")
		cmd.Flags().StringSliceVarP(&runSchedule, "schedule", "s", nil, "schedule these actions in addition to autostart ones")
		cmd.Flags().BoolVar(&runNoJournal, "no-journal", false, "do not write the event journal")
	}
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler until interrupted",
	Long: `Run the scheduler in the foreground.

Autostart actions are scheduled immediately. The loop runs until SIGINT or
SIGTERM, or until --max-passes passes have completed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt, err := newEngine(ctx, GetConfig())
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.start(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
		case <-rt.sched.Done():
		}

		return rt.finish(cmd.Context())
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the scheduler with an interactive action view",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTerminal("watch", "pulse run"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt, err := newEngine(ctx, GetConfig())
		if err != nil {
			return err
		}
		defer rt.Close()

		// Only errors while the view owns the terminal.
		logging.Init(logging.Config{Level: "error", Format: "json"})

		if err := rt.start(ctx); err != nil {
			return err
		}

		cfg := GetConfig()
		viewErr := tui.Run(tui.Config{
			Source:          rt.sched,
			Theme:           cfg.TUI.Theme,
			RefreshInterval: cfg.TUI.RefreshInterval,
		})

		if err := rt.finish(cmd.Context()); err != nil {
			return err
		}
		return viewErr
	},
}

// engine is a wired scheduler with its optional journal.
type engine struct {
	cfg      *config.Config
	registry *actions.Registry
	sched    *scheduler.Scheduler
	database *db.DB
	repo     *db.EventRepository
	journal  *events.Journal
}

func newEngine(ctx context.Context, cfg *config.Config) (*engine, error) {
	if cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	if len(cfg.Actions) == 0 {
		return nil, &PreflightError{
			Message:  "no actions configured",
			Hint:     "add actions to pulse.yaml",
			NextStep: "pulse init",
		}
	}

	rt := &engine{cfg: cfg}
	var opts []actions.Option
	if cfg.Journal.Enabled && !runNoJournal {
		step := startProgress("Opening journal")
		database, err := openDatabase(ctx)
		if err != nil {
			step.Fail(err)
			return nil, err
		}
		step.Done()
		rt.database = database
		rt.repo = db.NewEventRepository(database)
		rt.journal = events.NewJournal(rt.repo, events.JournalConfig{RecordTicks: cfg.Journal.RecordTicks})
		opts = append(opts, actions.WithObserver(rt.journal))
	}

	step := startProgress(fmt.Sprintf("Building registry (%d actions)", len(cfg.Actions)))
	registry, err := cfg.BuildRegistry(opts...)
	if err != nil {
		step.Fail(err)
		rt.Close()
		return nil, err
	}
	step.Done()
	rt.registry = registry

	schedCfg := scheduler.DefaultConfig()
	schedCfg.PollInterval = cfg.Scheduler.PollInterval
	schedCfg.MaxPasses = cfg.Scheduler.MaxPasses
	if runPollInterval > 0 {
		schedCfg.PollInterval = runPollInterval
	}
	if runMaxPasses > 0 {
		schedCfg.MaxPasses = runMaxPasses
	}
	rt.sched = scheduler.New(schedCfg, registry, nil)

	for _, name := range append(cfg.AutostartNames(), runSchedule...) {
		if err := rt.sched.Schedule(name); err != nil {
			rt.Close()
			return nil, err
		}
	}
	return rt, nil
}

func (rt *engine) start(ctx context.Context) error {
	if err := rt.sched.Start(ctx); err != nil {
		return err
	}
	if rt.repo != nil {
		if err := events.LogSchedulerStarted(ctx, rt.repo, rt.sched.Config().PollInterval, len(rt.registry.Actions())); err != nil {
			rt.recordError(ctx, "journal scheduler start", err)
		}
	}
	return nil
}

// finish stops the loop and journals the shutdown. ctx is the parent of the
// signal context so the final write survives cancellation.
func (rt *engine) finish(ctx context.Context) error {
	if err := rt.sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
		rt.recordError(ctx, "stop scheduler", err)
		return err
	}
	stats := rt.sched.Stats()

	if n := rt.registry.Stats().InvalidTransitions; n > 0 {
		rt.recordError(ctx, "registry", fmt.Errorf("%d invalid action state transitions", n))
	}
	if rt.repo != nil {
		writeCtx := context.WithoutCancel(ctx)
		if err := events.LogSchedulerStopped(writeCtx, rt.repo, rt.sched.Config().PollInterval, len(rt.registry.Actions()), stats.Passes); err != nil {
			rt.recordError(ctx, "journal scheduler stop", err)
		}
	}
	if rt.journal != nil && rt.journal.Failed() > 0 {
		rt.recordError(ctx, "journal", fmt.Errorf("%d journal writes failed", rt.journal.Failed()))
	}

	if IsJSONOutput() || IsJSONLOutput() {
		return WriteOutput(os.Stdout, stats)
	}
	fmt.Printf("Scheduler stopped after %d passes (%d starts, %d stops, %d ticks).\n",
		stats.Passes, stats.Starts, stats.Stops, stats.Ticks)
	if rt.journal != nil && rt.journal.Failed() > 0 {
		fmt.Fprintln(os.Stderr, colorize(fmt.Sprintf("Warning: %d journal writes failed", rt.journal.Failed()), colorYellow))
	}
	return nil
}

// recordError logs cause and, when a journal is open, stores it as an error
// event. ctx may already be cancelled.
func (rt *engine) recordError(ctx context.Context, errContext string, cause error) {
	logger := logging.Component("cli")
	logger.Warn().Err(cause).Str("context", errContext).Msg("scheduler error")
	if rt.repo == nil {
		return
	}
	if err := events.LogError(context.WithoutCancel(ctx), rt.repo, errContext, cause); err != nil {
		logger.Debug().Err(err).Str("context", errContext).Msg("failed to journal error")
	}
}

// Close releases the journal database.
func (rt *engine) Close() {
	if rt.database != nil {
		rt.database.Close()
		rt.database = nil
	}
}
