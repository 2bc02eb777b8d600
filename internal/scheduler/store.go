package scheduler

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/crucial707/hci-scheduler/internal/apperr"
	"github.com/crucial707/hci-scheduler/internal/models"
	"github.com/crucial707/hci-scheduler/internal/timeofday"
)

// Store manages the set of daily scan schedules.
type Store struct {
	repo  ScheduleRepository
	clock Clock
}

// NewStore returns a Store over repo. A nil clock uses SystemClock.
func NewStore(repo ScheduleRepository, clock Clock) *Store {
	if clock == nil {
		clock = SystemClock
	}
	return &Store{repo: repo, clock: clock}
}

// Create adds a schedule firing daily at hour:minute UTC.
func (s *Store) Create(ctx context.Context, name string, hour, minute int) (*models.Schedule, error) {
	return s.CreateLocal(ctx, name, hour, minute, 0)
}

// CreateLocal adds a schedule given a local time of day and the caller's
// offset in minutes (local + offset = UTC). The UTC trigger is stored.
func (s *Store) CreateLocal(ctx context.Context, name string, localHour, localMinute, offsetMinutes int) (*models.Schedule, error) {
	hour, minute, err := timeofday.Normalize(localHour, localMinute, offsetMinutes)
	if err != nil {
		return nil, err
	}
	sched := &models.Schedule{
		ID:            uuid.NewString(),
		Name:          name,
		Hour:          hour,
		Minute:        minute,
		LocalHour:     localHour,
		LocalMinute:   localMinute,
		OffsetMinutes: offsetMinutes,
		CreatedAt:     s.clock.Now().UTC(),
	}
	if err := s.repo.Create(ctx, sched); err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}
	return sched, nil
}

// List returns all schedules in creation order.
func (s *Store) List(ctx context.Context) ([]models.Schedule, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return list, nil
}

// Get returns the schedule with id or apperr.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*models.Schedule, error) {
	sched, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	if sched == nil {
		return nil, fmt.Errorf("schedule %s: %w", id, apperr.ErrNotFound)
	}
	return sched, nil
}

// Delete removes the schedule with id. Runs it already produced are kept.
func (s *Store) Delete(ctx context.Context, id string) error {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if !ok {
		return fmt.Errorf("schedule %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}
