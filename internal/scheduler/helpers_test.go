package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crucial707/hci-scheduler/internal/models"
	"github.com/crucial707/hci-scheduler/internal/repo"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// blockingWork returns a ScanWork that emits one line and waits for release
// or cancellation.
func blockingWork() (ScanWork, chan struct{}) {
	release := make(chan struct{})
	work := func(ctx context.Context, emit func(string)) error {
		emit("scan started")
		select {
		case <-release:
			emit("scan finished")
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return work, release
}

type testEnv struct {
	clock    *fakeClock
	schedRep *repo.MemoryScheduleRepo
	runRep   *repo.MemoryScanRunRepo
	store    *Store
	ledger   *Ledger
	runner   *Runner
	reporter *Reporter
}

func newTestEnv(t *testing.T, now time.Time, work ScanWork, timeout time.Duration) *testEnv {
	t.Helper()
	runs := repo.NewMemoryScanRunRepo()
	env := newTestEnvWithRuns(t, now, work, timeout, runs)
	env.runRep = runs
	return env
}

// newTestEnvWithRuns builds a testEnv over a caller-supplied run repository.
func newTestEnvWithRuns(t *testing.T, now time.Time, work ScanWork, timeout time.Duration, runs RunRepository) *testEnv {
	t.Helper()
	env := &testEnv{
		clock:    newFakeClock(now),
		schedRep: repo.NewMemoryScheduleRepo(),
	}
	log := discardLogger()
	env.store = NewStore(env.schedRep, env.clock)
	env.ledger = NewLedger(runs, env.clock, log)
	env.runner = NewRunner(env.ledger, work, RunnerOptions{Timeout: timeout, Clock: env.clock, Logger: log})
	env.reporter = NewReporter(env.store, env.ledger, env.clock, log)
	t.Cleanup(env.runner.Shutdown)
	return env
}

// waitTerminal waits until run id reaches a terminal status and returns it.
func (e *testEnv) waitTerminal(t *testing.T, id string) *models.ScanRun {
	t.Helper()
	var run *models.ScanRun
	require.Eventually(t, func() bool {
		got, err := e.ledger.Get(context.Background(), id)
		if err != nil {
			return false
		}
		run = got
		return got.Status.Terminal()
	}, 2*time.Second, 5*time.Millisecond)
	return run
}

var errBackend = errors.New("backend unavailable")

type failingScheduleRepo struct{ repo.MemoryScheduleRepo }

func (f *failingScheduleRepo) List(ctx context.Context) ([]models.Schedule, error) {
	return nil, errBackend
}

type failingRunRepo struct{ repo.MemoryScanRunRepo }

func (f *failingRunRepo) Latest(ctx context.Context) (*models.ScanRun, error) {
	return nil, errBackend
}

// flakyRuns fails the next failTerminal transitions into a terminal state.
type flakyRuns struct {
	*repo.MemoryScanRunRepo

	mu           sync.Mutex
	failTerminal int
}

func (f *flakyRuns) Transition(ctx context.Context, id string, from, to models.RunStatus, at time.Time) (bool, error) {
	if to.Terminal() {
		f.mu.Lock()
		fail := f.failTerminal > 0
		if fail {
			f.failTerminal--
		}
		f.mu.Unlock()
		if fail {
			return false, errors.New("connection reset by peer")
		}
	}
	return f.MemoryScanRunRepo.Transition(ctx, id, from, to, at)
}

// gatedRuns blocks Insert until gate is closed, signalling entered first.
type gatedRuns struct {
	*repo.MemoryScanRunRepo

	entered chan struct{}
	gate    chan struct{}
}

func (g *gatedRuns) Insert(ctx context.Context, run *models.ScanRun) error {
	close(g.entered)
	<-g.gate
	return g.MemoryScanRunRepo.Insert(ctx, run)
}

// fastFinishBackoff shortens terminal-write retries. Call before newTestEnv so
// the restore runs after the runner is shut down.
func fastFinishBackoff(t *testing.T) {
	t.Helper()
	orig := finishBackoff
	finishBackoff = []time.Duration{time.Millisecond, time.Millisecond}
	t.Cleanup(func() { finishBackoff = orig })
}
