package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crucial707/hci-scheduler/internal/models"
	"github.com/crucial707/hci-scheduler/internal/repo"
)

func TestNextFire(t *testing.T) {
	tests := []struct {
		name         string
		hour, minute int
		now          time.Time
		want         time.Time
	}{
		{"later today", 14, 0, time.Date(2026, 3, 1, 13, 59, 59, 0, time.UTC), time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)},
		{"exactly now is tomorrow", 14, 0, time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC), time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)},
		{"already passed", 1, 30, time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC), time.Date(2026, 3, 2, 1, 30, 0, 0, time.UTC)},
		{"month end", 0, 0, time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"non-UTC now", 14, 0, time.Date(2026, 3, 1, 8, 0, 0, 0, time.FixedZone("EST", -5*3600)), time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)},
		{"west zone already next UTC day", 1, 30, time.Date(2026, 3, 1, 22, 0, 0, 0, time.FixedZone("EST", -5*3600)), time.Date(2026, 3, 3, 1, 30, 0, 0, time.UTC)},
		{"east zone still previous UTC day", 14, 0, time.Date(2026, 3, 1, 2, 0, 0, 0, time.FixedZone("JST", 9*3600)), time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextFire(tt.hour, tt.minute, tt.now)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %s want %s", got, tt.want)
		})
	}
}

func TestReporter_NextDuePicksEarliest(t *testing.T) {
	env := newTestEnv(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), nil, 0)
	ctx := context.Background()

	_, err := env.store.Create(ctx, "late", 23, 0)
	require.NoError(t, err)
	early, err := env.store.Create(ctx, "early", 12, 30)
	require.NoError(t, err)
	_, err = env.store.Create(ctx, "tomorrow", 6, 0)
	require.NoError(t, err)

	snap := env.reporter.Snapshot(ctx)
	assert.False(t, snap.Degraded)
	require.NotNil(t, snap.NextDue)
	assert.Equal(t, early.ID, snap.NextDue.ScheduleID)
	assert.Equal(t, "early", snap.NextDue.Name)
}

func TestReporter_Empty(t *testing.T) {
	env := newTestEnv(t, time.Now(), nil, 0)
	snap := env.reporter.Snapshot(context.Background())
	assert.Equal(t, models.StateIdle, snap.State)
	assert.Nil(t, snap.NextDue)
	assert.Nil(t, snap.Latest)
	assert.False(t, snap.Degraded)
}

func TestReporter_Degraded(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	log := discardLogger()

	goodStore := NewStore(repo.NewMemoryScheduleRepo(), clock)
	goodLedger := NewLedger(repo.NewMemoryScanRunRepo(), clock, log)
	badStore := NewStore(&failingScheduleRepo{}, clock)
	badLedger := NewLedger(&failingRunRepo{}, clock, log)

	for _, r := range []*Reporter{
		NewReporter(goodStore, badLedger, clock, log),
		NewReporter(badStore, goodLedger, clock, log),
	} {
		snap := r.Snapshot(context.Background())
		assert.True(t, snap.Degraded)
		assert.Equal(t, models.StateIdle, snap.State)
		assert.Nil(t, snap.NextDue)
		assert.Equal(t, clock.Now(), snap.At)
	}
}
