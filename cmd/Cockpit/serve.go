package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/BTreeMap/Cockpit/internal/api"
	"github.com/BTreeMap/Cockpit/internal/config"
	"github.com/BTreeMap/Cockpit/internal/lockfile"
	"github.com/BTreeMap/Cockpit/internal/notify"
	"github.com/BTreeMap/Cockpit/internal/schedule"
	"github.com/BTreeMap/Cockpit/internal/scheduler"
	"github.com/BTreeMap/Cockpit/internal/store"
	"github.com/BTreeMap/Cockpit/internal/ticker"
	"github.com/BTreeMap/Cockpit/internal/timer"
)

// dayStartJob is the cron job name for the scheduled day start.
const dayStartJob = "day-start"

// serveOptions holds the serve flag values
type serveOptions struct {
	addr         string
	stateDir     string
	configPath   string
	scheduleDir  string
	dbDSN        string
	tickInterval time.Duration

	notifyWebhook string
	notifyCommand string
}

func newServeOptions(cfg Config) *serveOptions {
	return &serveOptions{
		addr:         cfg.APIAddr,
		stateDir:     cfg.StateDir,
		configPath:   cfg.ConfigPath,
		scheduleDir:  cfg.ScheduleDir,
		dbDSN:        cfg.DBDSN,
		tickInterval: cfg.TickInterval,

		notifyWebhook: cfg.NotifyWebhook,
		notifyCommand: cfg.NotifyCommand,
	}
}

func (o *serveOptions) bindFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.addr, "addr", o.addr, "API server address (overrides $API_ADDR)")
	f.StringVar(&o.stateDir, "state-dir", o.stateDir, "state directory for Cockpit data (overrides $COCKPIT_STATE_DIR)")
	f.StringVar(&o.configPath, "config", o.configPath, "profiles and settings YAML file (overrides $COCKPIT_CONFIG)")
	f.StringVar(&o.scheduleDir, "schedule-dir", o.scheduleDir, "directory of YYYY-MM-DD.yaml day plans (overrides $COCKPIT_SCHEDULE_DIR)")
	f.StringVar(&o.dbDSN, "db-dsn", o.dbDSN, "run history DSN, SQLite path or Postgres URL (overrides $DATABASE_URL)")
	f.DurationVar(&o.tickInterval, "tick-interval", o.tickInterval, "phase boundary check interval (overrides $COCKPIT_TICK_INTERVAL)")
	f.StringVar(&o.notifyWebhook, "notify-webhook", o.notifyWebhook, "URL receiving phase events as JSON (overrides $COCKPIT_NOTIFY_WEBHOOK)")
	f.StringVar(&o.notifyCommand, "notify-command", o.notifyCommand, "shell command run on every phase event (overrides $COCKPIT_NOTIFY_COMMAND)")
}

// buildNotifier returns the notification service for the configured sinks,
// or nil when none is configured.
func (o *serveOptions) buildNotifier() *notify.Service {
	var sinks []notify.Sink
	if o.notifyWebhook != "" {
		sinks = append(sinks, notify.NewWebhookSink(o.notifyWebhook, &http.Client{Timeout: notify.DefaultDeliveryTimeout}))
	}
	if o.notifyCommand != "" {
		sinks = append(sinks, notify.NewCommandSink(o.notifyCommand))
	}
	if len(sinks) == 0 {
		return nil
	}
	return notify.NewService(sinks...)
}

func newServeCmd(cfg Config) *cobra.Command {
	opts := newServeOptions(cfg)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the timer service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.followStateDir(cmd, cfg)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, *opts)
		},
	}
	opts.bindFlags(cmd)
	return cmd
}

// followStateDir moves paths derived from the state directory along with an
// explicit --state-dir, unless they were set on their own.
func (o *serveOptions) followStateDir(cmd *cobra.Command, cfg Config) {
	f := cmd.Flags()
	if !f.Changed("state-dir") || o.stateDir == cfg.StateDir {
		return
	}
	if !f.Changed("db-dsn") && cfg.DatabaseURL == "" && o.dbDSN == filepath.Join(cfg.StateDir, DefaultDBFileName) {
		o.dbDSN = filepath.Join(o.stateDir, DefaultDBFileName)
		slog.Debug("Updated db-dsn based on state directory", "db_dsn", o.dbDSN)
	}
	if !f.Changed("schedule-dir") && o.scheduleDir == filepath.Join(cfg.StateDir, DefaultScheduleDirName) {
		o.scheduleDir = filepath.Join(o.stateDir, DefaultScheduleDirName)
		slog.Debug("Updated schedule-dir based on state directory", "schedule_dir", o.scheduleDir)
	}
	if !f.Changed("config") && o.configPath == filepath.Join(cfg.StateDir, DefaultConfigFileName) {
		o.configPath = filepath.Join(o.stateDir, DefaultConfigFileName)
	}
}

// loadConfig reads the YAML config and applies environment overrides.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildEngine wires config and the history store into a timer engine.
func buildEngine(cfg *config.Config, recorder timer.Recorder, extra ...timer.Option) (*timer.Engine, error) {
	opts := []timer.Option{
		timer.WithRecorder(recorder),
		timer.WithSettings(cfg.Settings),
	}
	if !cfg.Settings.ConfirmBlocks {
		opts = append(opts, timer.WithConfirmationPolicy(timer.ConfirmNever))
	}
	return timer.NewEngine(cfg.Profiles, append(opts, extra...)...)
}

// startDay is the cron task for the scheduled day start.
func startDay(server *api.Server) {
	snap, err := server.StartDay(schedule.TargetToday)
	switch {
	case errors.Is(err, timer.ErrAlreadyRunning):
		slog.Info("startDay: a run is already active, leaving it alone")
	case err != nil:
		slog.Error("startDay: failed to start today's plan", "error", err)
	default:
		slog.Info("startDay: started today's plan", "run_id", snap.RunID, "blocks", len(snap.ScheduleState.Plan))
	}
}

func runServe(ctx context.Context, opts serveOptions) error {
	slog.Debug("Final configuration", "state_dir", opts.stateDir, "config", opts.configPath,
		"schedule_dir", opts.scheduleDir, "dsn_set", opts.dbDSN != "", "addr", opts.addr, "tick_interval", opts.tickInterval)

	lock, err := lockfile.AcquireLock(opts.stateDir, opts.addr)
	if err != nil {
		return err
	}
	defer lock.Release()

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	history, err := store.New(store.WithDSN(opts.dbDSN))
	if err != nil {
		return fmt.Errorf("open run history: %w", err)
	}
	defer history.Close()

	var engineOpts []timer.Option
	if notifier := opts.buildNotifier(); notifier != nil {
		// Stop drains queued events after ctx is cancelled.
		if err := notifier.Start(context.WithoutCancel(ctx)); err != nil {
			return err
		}
		defer notifier.Stop()
		engineOpts = append(engineOpts, timer.WithNotifier(notifier))
	}

	engine, err := buildEngine(cfg, history, engineOpts...)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	apiOpts := []api.Option{api.WithHistory(history), api.WithDays(schedule.NewStore(opts.scheduleDir))}
	if opts.addr != "" {
		apiOpts = append(apiOpts, api.WithAddr(opts.addr))
	}
	server := api.NewServer(engine, apiOpts...)

	cron := scheduler.NewScheduler(time.Local)
	defer cron.Stop()
	if expr := cfg.Settings.DayStartCron; expr != "" {
		if err := cron.AddJob(dayStartJob, expr, func() { startDay(server) }); err != nil {
			return fmt.Errorf("day_start_cron: %w", err)
		}
		next, _ := cron.Next(dayStartJob)
		slog.Info("Scheduled day start", "cron", expr, "next", next)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker.NewRunner(engine, opts.tickInterval).Run(ctx)
	}()

	slog.Info("Bootstrapping Cockpit", "config_source", cfg.Source(), "profiles", cfg.ProfileNames())
	err = server.Run(ctx)
	cancel()
	wg.Wait()
	if err != nil {
		return err
	}
	slog.Info("Cockpit exited successfully")
	return nil
}
