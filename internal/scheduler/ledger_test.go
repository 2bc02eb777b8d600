package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crucial707/hci-scheduler/internal/apperr"
	"github.com/crucial707/hci-scheduler/internal/models"
	"github.com/crucial707/hci-scheduler/internal/repo"
)

func newTestLedger(now time.Time) (*Ledger, *repo.MemoryScanRunRepo, *fakeClock) {
	runs := repo.NewMemoryScanRunRepo()
	clock := newFakeClock(now)
	return NewLedger(runs, clock, discardLogger()), runs, clock
}

func TestLedger_BeginRun_SingleActive(t *testing.T) {
	l, _, _ := newTestLedger(time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC))
	ctx := context.Background()

	const n = 32
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		started []*models.ScanRun
		busy    int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run, err := l.BeginRun(ctx, nil, "2026-03-01")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				started = append(started, run)
			case errors.Is(err, apperr.ErrAlreadyRunning):
				busy++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Len(t, started, 1)
	assert.Equal(t, n-1, busy)
	assert.Equal(t, models.RunRunning, started[0].Status)
	assert.NotNil(t, started[0].StartedAt)

	require.NoError(t, l.Finish(ctx, started[0].ID, true))
	_, err := l.BeginRun(ctx, nil, "2026-03-01")
	assert.NoError(t, err, "slot frees once the run finishes")
}

func TestLedger_BeginRun_DuplicateTrigger(t *testing.T) {
	l, _, _ := newTestLedger(time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC))
	ctx := context.Background()
	sid := "sched-1"

	run, err := l.BeginRun(ctx, &sid, "2026-03-01")
	require.NoError(t, err)
	require.NoError(t, l.Finish(ctx, run.ID, false))

	_, err = l.BeginRun(ctx, &sid, "2026-03-01")
	assert.ErrorIs(t, err, apperr.ErrDuplicateTrigger)

	next, err := l.BeginRun(ctx, &sid, "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", next.TriggerDate)
	require.Equal(t, sid, *next.ScheduleID)
}

func TestLedger_BeginRun_DuplicateCheckedBeforeBusy(t *testing.T) {
	l, _, _ := newTestLedger(time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC))
	ctx := context.Background()
	sid := "sched-1"

	_, err := l.BeginRun(ctx, &sid, "2026-03-01")
	require.NoError(t, err)
	_, err = l.BeginRun(ctx, &sid, "2026-03-01")
	assert.ErrorIs(t, err, apperr.ErrDuplicateTrigger)
	_, err = l.BeginRun(ctx, nil, "2026-03-01")
	assert.ErrorIs(t, err, apperr.ErrAlreadyRunning)
}

func TestLedger_LogsAndTerminalStates(t *testing.T) {
	l, _, clock := newTestLedger(time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC))
	ctx := context.Background()

	run, err := l.BeginRun(ctx, nil, "2026-03-01")
	require.NoError(t, err)
	for _, line := range []string{"one", "two", "three"} {
		require.NoError(t, l.AppendLog(ctx, run.ID, line))
	}
	clock.Set(clock.Now().Add(3 * time.Minute))
	require.NoError(t, l.Finish(ctx, run.ID, true))

	got, err := l.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunSucceeded, got.Status)
	assert.Equal(t, []string{"one", "two", "three"}, got.LogLines)
	require.NotNil(t, got.FinishedAt)
	assert.Equal(t, 3*time.Minute, got.FinishedAt.Sub(*got.StartedAt))

	assert.ErrorIs(t, l.AppendLog(ctx, run.ID, "late"), apperr.ErrInvalidState)
	assert.ErrorIs(t, l.Finish(ctx, run.ID, false), apperr.ErrInvalidState)
	assert.ErrorIs(t, l.Cancel(ctx, run.ID), apperr.ErrInvalidState)

	got, err = l.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunSucceeded, got.Status, "terminal state is immutable")
}

func TestLedger_UnknownRun(t *testing.T) {
	l, _, _ := newTestLedger(time.Now())
	ctx := context.Background()

	assert.ErrorIs(t, l.AppendLog(ctx, "missing", "x"), apperr.ErrNotFound)
	assert.ErrorIs(t, l.Cancel(ctx, "missing"), apperr.ErrNotFound)
	_, err := l.Get(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	latest, err := l.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestLedger_Recover(t *testing.T) {
	now := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	runs := repo.NewMemoryScanRunRepo()
	ctx := context.Background()

	// Left behind by a crashed process.
	require.NoError(t, runs.Insert(ctx, &models.ScanRun{ID: "orphan", TriggerDate: "2026-03-01", Status: models.RunPending, CreatedAt: now}))
	_, err := runs.Transition(ctx, "orphan", models.RunPending, models.RunRunning, now)
	require.NoError(t, err)
	require.NoError(t, runs.AppendLog(ctx, "orphan", 1, "scan started", now))

	l := NewLedger(runs, newFakeClock(now.Add(time.Hour)), discardLogger())
	_, err = l.BeginRun(ctx, nil, "2026-03-01")
	require.ErrorIs(t, err, apperr.ErrAlreadyRunning, "orphan blocks new runs until recovered")

	n, err := l.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := l.Get(ctx, "orphan")
	require.NoError(t, err)
	assert.Equal(t, models.RunFailed, got.Status)
	assert.Equal(t, []string{"scan started", recoveredLogLine}, got.LogLines)

	_, err = l.BeginRun(ctx, nil, "2026-03-01")
	assert.NoError(t, err)
}
