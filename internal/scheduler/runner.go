package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/crucial707/hci-scheduler/internal/apperr"
	"github.com/crucial707/hci-scheduler/internal/metrics"
	"github.com/crucial707/hci-scheduler/internal/models"
)

// ScanWork performs one scan. It reports progress through emit and must
// return promptly once ctx is done.
type ScanWork func(ctx context.Context, emit func(line string)) error

// finishTimeout bounds ledger writes made after a run's own context ended.
const finishTimeout = 10 * time.Second

// finishBackoff spaces retries of a terminal write that failed. Its sum stays
// well under finishTimeout.
var finishBackoff = []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, 2 * time.Second}

var errRunnerClosed = errors.New("runner is shut down")

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	// Timeout cancels a run that takes longer. Zero means no limit.
	Timeout time.Duration
	Clock   Clock
	Logger  *slog.Logger
}

// Runner starts scan runs through the ledger and executes ScanWork for each
// one in its own goroutine.
type Runner struct {
	ledger  *Ledger
	work    ScanWork
	timeout time.Duration
	clock   Clock
	logger  *slog.Logger

	mu       sync.Mutex
	cancels  map[string]context.CancelFunc
	closed   bool
	inflight sync.WaitGroup
}

// NewRunner returns a Runner executing work for runs recorded in ledger.
func NewRunner(ledger *Ledger, work ScanWork, opts RunnerOptions) *Runner {
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Runner{
		ledger:  ledger,
		work:    work,
		timeout: opts.Timeout,
		clock:   opts.Clock,
		logger:  opts.Logger,
		cancels: make(map[string]context.CancelFunc),
	}
}

// Trigger begins a run for scheduleID (nil for on-demand) on date and
// dispatches it. It returns once the run is recorded as running.
func (r *Runner) Trigger(ctx context.Context, scheduleID *string, date string) (*models.ScanRun, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, errRunnerClosed
	}
	// Shutdown waits for this slot even while BeginRun is in flight.
	r.inflight.Add(1)
	r.mu.Unlock()

	run, err := r.ledger.BeginRun(ctx, scheduleID, date)
	if err != nil {
		r.inflight.Done()
		return nil, err
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if r.timeout > 0 {
		runCtx, cancel = context.WithTimeout(context.Background(), r.timeout)
	} else {
		runCtx, cancel = context.WithCancel(context.Background())
	}
	r.mu.Lock()
	closed := r.closed
	if !closed {
		r.cancels[run.ID] = cancel
	}
	r.mu.Unlock()
	if closed {
		// Shutdown started while the run was being recorded.
		cancel()
		cctx, ccancel := context.WithTimeout(context.Background(), finishTimeout)
		if err := r.ledger.Cancel(cctx, run.ID); err != nil {
			r.logger.Error("runner: cancel run started during shutdown", "run_id", run.ID, "error", err)
			if aerr := r.ledger.Abandon(cctx, run.ID); aerr != nil {
				r.logger.Error("runner: abandon run", "run_id", run.ID, "error", aerr)
			}
		}
		ccancel()
		r.inflight.Done()
		return nil, errRunnerClosed
	}

	metrics.RunStarted()
	r.logger.Info("runner: scan started", "run_id", run.ID, "schedule_id", derefOr(run.ScheduleID, ""), "trigger_date", run.TriggerDate)
	go r.execute(runCtx, cancel, run)
	return run, nil
}

// RunNow starts an on-demand run for today's UTC date.
func (r *Runner) RunNow(ctx context.Context) (*models.ScanRun, error) {
	return r.Trigger(ctx, nil, models.TriggerDate(r.clock.Now()))
}

// Cancel cancels the running run runID and signals its ScanWork to stop.
func (r *Runner) Cancel(ctx context.Context, runID string) (*models.ScanRun, error) {
	if err := r.ledger.Cancel(ctx, runID); err != nil {
		return nil, err
	}
	r.mu.Lock()
	cancel := r.cancels[runID]
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	r.logger.Info("runner: scan cancelled", "run_id", runID)
	return r.ledger.Get(ctx, runID)
}

// Shutdown cancels in-flight runs and waits for their goroutines to exit.
// Runs cancelled this way are recorded as cancelled.
func (r *Runner) Shutdown() {
	r.mu.Lock()
	r.closed = true
	ids := make([]string, 0, len(r.cancels))
	for id := range r.cancels {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		ctx, cancel := context.WithTimeout(context.Background(), finishTimeout)
		if _, err := r.Cancel(ctx, id); err != nil && !errors.Is(err, apperr.ErrInvalidState) {
			r.logger.Error("runner: cancel on shutdown", "run_id", id, "error", err)
		}
		cancel()
	}
	r.inflight.Wait()
}

func (r *Runner) execute(ctx context.Context, cancel context.CancelFunc, run *models.ScanRun) {
	defer r.inflight.Done()
	defer func() {
		cancel()
		r.mu.Lock()
		delete(r.cancels, run.ID)
		r.mu.Unlock()
	}()

	started := r.clock.Now()
	emit := func(line string) {
		wctx, wcancel := context.WithTimeout(context.Background(), finishTimeout)
		defer wcancel()
		if err := r.ledger.AppendLog(wctx, run.ID, line); err != nil {
			r.logger.Debug("runner: drop log line", "run_id", run.ID, "error", err)
		}
	}

	err := r.safeWork(ctx, emit)

	fctx, fcancel := context.WithTimeout(context.Background(), finishTimeout)
	defer fcancel()

	var status models.RunStatus
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		emit(fmt.Sprintf("scan timed out after %s", r.timeout))
		status = models.RunCancelled
		err = r.record(fctx, run.ID, func(ctx context.Context) error { return r.ledger.Cancel(ctx, run.ID) })
	case ctx.Err() != nil:
		// Cancelled through Runner.Cancel; the ledger already recorded it.
		status = models.RunCancelled
		err = nil
	case err != nil:
		emit("scan failed: " + err.Error())
		status = models.RunFailed
		err = r.record(fctx, run.ID, func(ctx context.Context) error { return r.ledger.Finish(ctx, run.ID, false) })
	default:
		status = models.RunSucceeded
		err = r.record(fctx, run.ID, func(ctx context.Context) error { return r.ledger.Finish(ctx, run.ID, true) })
	}
	if errors.Is(err, apperr.ErrInvalidState) {
		// Cancelled before the work observed it.
		status = models.RunCancelled
	} else if err != nil {
		r.logger.Error("runner: record run result", "run_id", run.ID, "status", status, "error", err)
		emit("scan result could not be recorded: " + err.Error())
		status = models.RunFailed
		actx, acancel := context.WithTimeout(context.Background(), finishTimeout)
		if aerr := r.ledger.Abandon(actx, run.ID); aerr != nil {
			r.logger.Error("runner: abandon run", "run_id", run.ID, "error", aerr)
		}
		acancel()
	}

	elapsed := r.clock.Now().Sub(started)
	metrics.RunFinished(string(status), elapsed.Seconds())
	r.logger.Info("runner: scan finished", "run_id", run.ID, "status", status, "duration", elapsed)
}

// record performs a terminal ledger write, retrying store failures with
// finishBackoff. State errors are returned at once.
func (r *Runner) record(ctx context.Context, runID string, write func(context.Context) error) error {
	err := write(ctx)
	for _, wait := range finishBackoff {
		if err == nil || errors.Is(err, apperr.ErrInvalidState) || errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		r.logger.Warn("runner: retry recording run result", "run_id", runID, "error", err, "backoff", wait)
		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return err
		}
		err = write(ctx)
	}
	return err
}

// safeWork runs the ScanWork, turning a panic into an error.
func (r *Runner) safeWork(ctx context.Context, emit func(string)) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("runner: scan panic", "panic", p, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return r.work(ctx, emit)
}

func derefOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
