package scheduler

import (
	"context"
	"time"

	"github.com/crucial707/hci-scheduler/internal/models"
)

// ScheduleRepository persists schedules. Lookups return (nil, nil) when the
// schedule does not exist.
type ScheduleRepository interface {
	Create(ctx context.Context, s *models.Schedule) error
	List(ctx context.Context) ([]models.Schedule, error)
	GetByID(ctx context.Context, id string) (*models.Schedule, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// RunRepository persists scan runs and their log lines. Insert must reject a
// second run for the same schedule and trigger date with
// apperr.ErrDuplicateTrigger, and Transition into running must reject a second
// running run with apperr.ErrAlreadyRunning.
type RunRepository interface {
	Insert(ctx context.Context, run *models.ScanRun) error
	ExistsForTrigger(ctx context.Context, scheduleID, triggerDate string) (bool, error)
	Transition(ctx context.Context, id string, from, to models.RunStatus, at time.Time) (bool, error)
	AppendLog(ctx context.Context, runID string, seq int, line string, at time.Time) error
	GetByID(ctx context.Context, id string) (*models.ScanRun, error)
	Logs(ctx context.Context, runID string) ([]string, error)
	Latest(ctx context.Context) (*models.ScanRun, error)
	ListUnfinished(ctx context.Context) ([]models.ScanRun, error)
	List(ctx context.Context, limit, offset int) ([]models.ScanRun, error)
	Count(ctx context.Context) (int, error)
}
