package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/crucial707/hci-scheduler/internal/apperr"
	"github.com/crucial707/hci-scheduler/internal/metrics"
	"github.com/crucial707/hci-scheduler/internal/models"
)

// DefaultTickSpec fires at the start of every minute.
const DefaultTickSpec = "* * * * *"

// tickTimeout bounds a single evaluation pass.
const tickTimeout = 30 * time.Second

// DaemonState is the lifecycle state of a Daemon.
type DaemonState string

const (
	DaemonStopped DaemonState = "stopped"
	DaemonActive  DaemonState = "active"
)

// DaemonOptions configures a Daemon.
type DaemonOptions struct {
	// TickSpec is a standard 5-field cron spec evaluated in UTC.
	TickSpec string
	Clock    Clock
	Logger   *slog.Logger
}

// Daemon evaluates schedules on every tick and triggers runs for those that
// match the current UTC minute.
type Daemon struct {
	store  *Store
	runner *Runner
	spec   string
	clock  Clock
	logger *slog.Logger

	mu    sync.Mutex
	cron  *cron.Cron
	state DaemonState
}

// NewDaemon returns a stopped Daemon. It fails if opts.TickSpec does not parse.
func NewDaemon(store *Store, runner *Runner, opts DaemonOptions) (*Daemon, error) {
	if opts.TickSpec == "" {
		opts.TickSpec = DefaultTickSpec
	}
	if _, err := cron.ParseStandard(opts.TickSpec); err != nil {
		return nil, fmt.Errorf("tick spec %q: %w", opts.TickSpec, err)
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Daemon{
		store:  store,
		runner: runner,
		spec:   opts.TickSpec,
		clock:  opts.Clock,
		logger: opts.Logger,
		state:  DaemonStopped,
	}, nil
}

// State reports whether the daemon is ticking.
func (d *Daemon) State() DaemonState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Start begins ticking. Starting an active daemon is a no-op.
func (d *Daemon) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == DaemonActive {
		return nil
	}

	cronLog := cron.PrintfLogger(slog.NewLogLogger(d.logger.Handler(), slog.LevelDebug))
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	if _, err := c.AddFunc(d.spec, d.runTick); err != nil {
		return fmt.Errorf("schedule tick: %w", err)
	}
	c.Start()
	d.cron = c
	d.state = DaemonActive
	d.logger.Info("scheduler: daemon started", "tick_spec", d.spec)
	return nil
}

// Stop halts ticking and waits for an in-progress tick to finish dispatching.
// Runs already dispatched keep executing.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	c := d.cron
	d.cron = nil
	d.state = DaemonStopped
	d.mu.Unlock()
	if c == nil {
		return nil
	}

	done := c.Stop()
	select {
	case <-done.Done():
		d.logger.Info("scheduler: daemon stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop daemon: %w", ctx.Err())
	}
}

func (d *Daemon) runTick() {
	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()
	if err := d.Tick(ctx); err != nil {
		d.logger.Error("scheduler: tick failed", "error", err)
	}
}

// Tick evaluates all schedules against the current UTC minute once and
// triggers a run for each match. Matches that lose to the once-per-day or
// single-running rules are logged and dropped.
func (d *Daemon) Tick(ctx context.Context) error {
	now := d.clock.Now().UTC().Truncate(time.Minute)
	date := models.TriggerDate(now)

	list, err := d.store.List(ctx)
	if err != nil {
		return err
	}
	for _, s := range list {
		if !s.Matches(now) {
			continue
		}
		id := s.ID
		run, err := d.runner.Trigger(ctx, &id, date)
		switch {
		case err == nil:
			metrics.IncTrigger("started")
			d.logger.Info("scheduler: schedule fired", "schedule_id", id, "run_id", run.ID, "at", now)
		case errors.Is(err, apperr.ErrDuplicateTrigger):
			metrics.IncTrigger("duplicate")
			d.logger.Debug("scheduler: schedule already fired today", "schedule_id", id, "date", date)
		case errors.Is(err, apperr.ErrAlreadyRunning):
			metrics.IncTrigger("skipped")
			d.logger.Warn("scheduler: skipped, scan already running", "schedule_id", id, "date", date)
		default:
			metrics.IncTrigger("error")
			d.logger.Error("scheduler: trigger schedule", "schedule_id", id, "error", err)
		}
	}
	return nil
}
