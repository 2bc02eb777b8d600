package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/crucial707/hci-scheduler/internal/models"
)

// Reporter derives status snapshots from the ledger and the store.
type Reporter struct {
	store  *Store
	ledger *Ledger
	clock  Clock
	logger *slog.Logger
}

// NewReporter returns a Reporter. Nil clock or logger use the defaults.
func NewReporter(store *Store, ledger *Ledger, clock Clock, logger *slog.Logger) *Reporter {
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{store: store, ledger: ledger, clock: clock, logger: logger}
}

// Snapshot reports whether a scan is running, the latest run and the next
// schedule due. Read failures yield an idle, degraded snapshot.
func (r *Reporter) Snapshot(ctx context.Context) models.StatusSnapshot {
	now := r.clock.Now().UTC()
	snap := models.StatusSnapshot{State: models.StateIdle, At: now}

	latest, err := r.ledger.Latest(ctx)
	if err != nil {
		r.logger.Warn("status: read latest run", "error", err)
		snap.Degraded = true
		return snap
	}
	schedules, err := r.store.List(ctx)
	if err != nil {
		r.logger.Warn("status: read schedules", "error", err)
		snap.Degraded = true
		return snap
	}

	snap.Latest = latest
	if latest != nil && latest.Status == models.RunRunning {
		snap.State = models.StateRunning
		snap.Current = latest
	}
	snap.NextDue = nextDue(schedules, now)
	return snap
}

// nextDue returns the schedule firing soonest strictly after now.
func nextDue(schedules []models.Schedule, now time.Time) *models.NextDue {
	var best *models.NextDue
	for _, s := range schedules {
		at, err := NextFire(s.Hour, s.Minute, now)
		if err != nil {
			continue
		}
		if best == nil || at.Before(best.At) {
			best = &models.NextDue{ScheduleID: s.ID, Name: s.Name, Hour: s.Hour, Minute: s.Minute, At: at}
		}
	}
	return best
}

// NextFire returns the first UTC instant strictly after now whose time of day
// is hour:minute.
func NextFire(hour, minute int, now time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(fmt.Sprintf("CRON_TZ=UTC %d %d * * *", minute, hour))
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(now.UTC()), nil
}
