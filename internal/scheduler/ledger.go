package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/crucial707/hci-scheduler/internal/apperr"
	"github.com/crucial707/hci-scheduler/internal/models"
)

const recoveredLogLine = "run interrupted: service restarted before the scan finished"

// activeRun is the single running slot. seq is the last log sequence used.
type activeRun struct {
	id  string
	seq int
}

// Ledger records scan runs and enforces that at most one run is running and
// that a schedule fires at most once per UTC date.
type Ledger struct {
	runs   RunRepository
	clock  Clock
	logger *slog.Logger

	mu     sync.Mutex
	active *activeRun
}

// NewLedger returns a Ledger over runs. Nil clock or logger use the defaults.
func NewLedger(runs RunRepository, clock Clock, logger *slog.Logger) *Ledger {
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{runs: runs, clock: clock, logger: logger}
}

// BeginRun creates a run for scheduleID (nil for on-demand) on triggerDate and
// moves it to running. It fails with apperr.ErrDuplicateTrigger when the
// schedule already has a run for the date and apperr.ErrAlreadyRunning when
// another run is running.
func (l *Ledger) BeginRun(ctx context.Context, scheduleID *string, triggerDate string) (*models.ScanRun, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if scheduleID != nil {
		exists, err := l.runs.ExistsForTrigger(ctx, *scheduleID, triggerDate)
		if err != nil {
			return nil, fmt.Errorf("check trigger: %w", err)
		}
		if exists {
			return nil, apperr.ErrDuplicateTrigger
		}
	}
	if l.active != nil {
		return nil, apperr.ErrAlreadyRunning
	}

	now := l.clock.Now().UTC()
	run := &models.ScanRun{
		ID:          uuid.NewString(),
		TriggerDate: triggerDate,
		Status:      models.RunPending,
		CreatedAt:   now,
	}
	if scheduleID != nil {
		id := *scheduleID
		run.ScheduleID = &id
	}
	if err := l.runs.Insert(ctx, run); err != nil {
		if errors.Is(err, apperr.ErrDuplicateTrigger) {
			return nil, apperr.ErrDuplicateTrigger
		}
		return nil, fmt.Errorf("insert run: %w", err)
	}

	ok, err := l.runs.Transition(ctx, run.ID, models.RunPending, models.RunRunning, now)
	if err == nil && !ok {
		err = fmt.Errorf("scan run %s left pending: %w", run.ID, apperr.ErrInvalidState)
	}
	if err != nil {
		// Another process holds the running slot, or the store failed.
		if _, ferr := l.runs.Transition(ctx, run.ID, models.RunPending, models.RunFailed, now); ferr != nil {
			l.logger.Error("ledger: abandon pending run", "run_id", run.ID, "error", ferr)
		}
		if errors.Is(err, apperr.ErrAlreadyRunning) {
			return nil, apperr.ErrAlreadyRunning
		}
		return nil, fmt.Errorf("start run: %w", err)
	}

	run.Status = models.RunRunning
	run.StartedAt = &now
	l.active = &activeRun{id: run.ID}
	return run, nil
}

// AppendLog appends line to the log of the running run runID.
func (l *Ledger) AppendLog(ctx context.Context, runID, line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active == nil || l.active.id != runID {
		return l.notRunning(ctx, runID)
	}
	seq := l.active.seq + 1
	if err := l.runs.AppendLog(ctx, runID, seq, line, l.clock.Now().UTC()); err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	l.active.seq = seq
	return nil
}

// Finish moves the running run runID to succeeded or failed.
func (l *Ledger) Finish(ctx context.Context, runID string, succeeded bool) error {
	to := models.RunFailed
	if succeeded {
		to = models.RunSucceeded
	}
	return l.end(ctx, runID, to)
}

// Cancel moves the running run runID to cancelled.
func (l *Ledger) Cancel(ctx context.Context, runID string) error {
	return l.end(ctx, runID, models.RunCancelled)
}

func (l *Ledger) end(ctx context.Context, runID string, to models.RunStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active == nil || l.active.id != runID {
		return l.notRunning(ctx, runID)
	}
	ok, err := l.runs.Transition(ctx, runID, models.RunRunning, to, l.clock.Now().UTC())
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	l.active = nil
	if !ok {
		return fmt.Errorf("scan run %s not running: %w", runID, apperr.ErrInvalidState)
	}
	return nil
}

// Abandon releases the running slot held by runID when its terminal state
// could not be recorded, then marks the run failed if the store accepts it.
// It is a no-op when runID is not the active run.
func (l *Ledger) Abandon(ctx context.Context, runID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active == nil || l.active.id != runID {
		return nil
	}
	l.active = nil
	if _, err := l.runs.Transition(ctx, runID, models.RunRunning, models.RunFailed, l.clock.Now().UTC()); err != nil {
		return fmt.Errorf("abandon run %s: %w", runID, err)
	}
	return nil
}

// notRunning explains why runID is not the active run. Callers hold l.mu.
func (l *Ledger) notRunning(ctx context.Context, runID string) error {
	run, err := l.runs.GetByID(ctx, runID)
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	if run == nil {
		return fmt.Errorf("scan run %s: %w", runID, apperr.ErrNotFound)
	}
	return fmt.Errorf("scan run %s is %s: %w", runID, run.Status, apperr.ErrInvalidState)
}

// Get returns run runID with its log lines.
func (l *Ledger) Get(ctx context.Context, runID string) (*models.ScanRun, error) {
	run, err := l.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	if run == nil {
		return nil, fmt.Errorf("scan run %s: %w", runID, apperr.ErrNotFound)
	}
	lines, err := l.runs.Logs(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get run logs: %w", err)
	}
	run.LogLines = lines
	return run, nil
}

// Latest returns the most recently started run, or nil when none has started.
func (l *Ledger) Latest(ctx context.Context) (*models.ScanRun, error) {
	run, err := l.runs.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return run, nil
}

// List returns run history, newest first.
func (l *Ledger) List(ctx context.Context, limit, offset int) ([]models.ScanRun, error) {
	list, err := l.runs.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return list, nil
}

// Count returns the number of recorded runs.
func (l *Ledger) Count(ctx context.Context) (int, error) {
	n, err := l.runs.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return n, nil
}

// Recover fails runs left pending or running by a previous process. Call once
// at startup before the daemon starts.
func (l *Ledger) Recover(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	runs, err := l.runs.ListUnfinished(ctx)
	if err != nil {
		return 0, fmt.Errorf("list unfinished runs: %w", err)
	}
	now := l.clock.Now().UTC()
	n := 0
	for _, run := range runs {
		if l.active != nil && l.active.id == run.ID {
			continue
		}
		lines, err := l.runs.Logs(ctx, run.ID)
		if err != nil {
			return n, fmt.Errorf("recover run %s: %w", run.ID, err)
		}
		if err := l.runs.AppendLog(ctx, run.ID, len(lines)+1, recoveredLogLine, now); err != nil {
			return n, fmt.Errorf("recover run %s: %w", run.ID, err)
		}
		ok, err := l.runs.Transition(ctx, run.ID, run.Status, models.RunFailed, now)
		if err != nil {
			return n, fmt.Errorf("recover run %s: %w", run.ID, err)
		}
		if ok {
			n++
			l.logger.Warn("ledger: recovered orphaned run", "run_id", run.ID, "was", run.Status)
		}
	}
	return n, nil
}
