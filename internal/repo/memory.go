package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/crucial707/hci-scheduler/internal/apperr"
	"github.com/crucial707/hci-scheduler/internal/models"
)

// MemoryScheduleRepo keeps schedules in process memory. Used when
// STORE_DRIVER=memory and in tests.
type MemoryScheduleRepo struct {
	mu    sync.RWMutex
	items []models.Schedule
}

// NewMemoryScheduleRepo returns an empty MemoryScheduleRepo.
func NewMemoryScheduleRepo() *MemoryScheduleRepo {
	return &MemoryScheduleRepo{}
}

func (r *MemoryScheduleRepo) List(ctx context.Context) ([]models.Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Schedule, len(r.items))
	copy(out, r.items)
	return out, nil
}

func (r *MemoryScheduleRepo) GetByID(ctx context.Context, id string) (*models.Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.items {
		if r.items[i].ID == id {
			s := r.items[i]
			return &s, nil
		}
	}
	return nil, nil
}

func (r *MemoryScheduleRepo) Create(ctx context.Context, s *models.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].ID == s.ID {
			return fmt.Errorf("schedule %s already exists", s.ID)
		}
	}
	r.items = append(r.items, *s)
	return nil
}

func (r *MemoryScheduleRepo) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].ID == id {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type memRun struct {
	run  models.ScanRun
	seq  int
	logs []string
}

// MemoryScanRunRepo keeps scan runs in process memory and enforces the same
// uniqueness rules as the SQL schema.
type MemoryScanRunRepo struct {
	mu   sync.RWMutex
	runs []*memRun
	seq  int
}

// NewMemoryScanRunRepo returns an empty MemoryScanRunRepo.
func NewMemoryScanRunRepo() *MemoryScanRunRepo {
	return &MemoryScanRunRepo{}
}

func (r *MemoryScanRunRepo) Insert(ctx context.Context, run *models.ScanRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.runs {
		if m.run.ID == run.ID {
			return fmt.Errorf("scan run %s already exists", run.ID)
		}
		if run.ScheduleID != nil && m.run.ScheduleID != nil &&
			*m.run.ScheduleID == *run.ScheduleID && m.run.TriggerDate == run.TriggerDate {
			return apperr.ErrDuplicateTrigger
		}
		if run.Status == models.RunRunning && m.run.Status == models.RunRunning {
			return apperr.ErrAlreadyRunning
		}
	}
	r.seq++
	stored := *run
	stored.LogLines = nil
	r.runs = append(r.runs, &memRun{run: stored, seq: r.seq})
	return nil
}

func (r *MemoryScanRunRepo) ExistsForTrigger(ctx context.Context, scheduleID, triggerDate string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.runs {
		if m.run.ScheduleID != nil && *m.run.ScheduleID == scheduleID && m.run.TriggerDate == triggerDate {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryScanRunRepo) Transition(ctx context.Context, id string, from, to models.RunStatus, at time.Time) (bool, error) {
	if to != models.RunRunning && !to.Terminal() {
		return false, fmt.Errorf("transition to %q not supported", to)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var target *memRun
	for _, m := range r.runs {
		if m.run.ID == id {
			target = m
		} else if to == models.RunRunning && m.run.Status == models.RunRunning {
			return false, apperr.ErrAlreadyRunning
		}
	}
	if target == nil || target.run.Status != from {
		return false, nil
	}
	target.run.Status = to
	t := at
	if to == models.RunRunning {
		target.run.StartedAt = &t
	} else {
		target.run.FinishedAt = &t
	}
	return true, nil
}

func (r *MemoryScanRunRepo) AppendLog(ctx context.Context, runID string, seq int, line string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.runs {
		if m.run.ID == runID {
			m.logs = append(m.logs, line)
			return nil
		}
	}
	return fmt.Errorf("scan run %s: %w", runID, apperr.ErrNotFound)
}

func (r *MemoryScanRunRepo) GetByID(ctx context.Context, id string) (*models.ScanRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.runs {
		if m.run.ID == id {
			return copyRun(m.run), nil
		}
	}
	return nil, nil
}

func (r *MemoryScanRunRepo) Logs(ctx context.Context, runID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.runs {
		if m.run.ID == runID {
			out := make([]string, len(m.logs))
			copy(out, m.logs)
			return out, nil
		}
	}
	return nil, nil
}

func (r *MemoryScanRunRepo) Latest(ctx context.Context) (*models.ScanRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *memRun
	for _, m := range r.runs {
		if m.run.StartedAt == nil {
			continue
		}
		if best == nil || m.run.StartedAt.After(*best.run.StartedAt) ||
			(m.run.StartedAt.Equal(*best.run.StartedAt) && m.seq > best.seq) {
			best = m
		}
	}
	if best == nil {
		return nil, nil
	}
	return copyRun(best.run), nil
}

func (r *MemoryScanRunRepo) ListUnfinished(ctx context.Context) ([]models.ScanRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.ScanRun
	for _, m := range r.runs {
		if !m.run.Status.Terminal() {
			out = append(out, *copyRun(m.run))
		}
	}
	return out, nil
}

func (r *MemoryScanRunRepo) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.runs), nil
}

func (r *MemoryScanRunRepo) List(ctx context.Context, limit, offset int) ([]models.ScanRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sorted := make([]*memRun, len(r.runs))
	copy(sorted, r.runs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].seq > sorted[j].seq })
	if offset >= len(sorted) {
		return nil, nil
	}
	sorted = sorted[offset:]
	if limit > 0 && limit < len(sorted) {
		sorted = sorted[:limit]
	}
	out := make([]models.ScanRun, 0, len(sorted))
	for _, m := range sorted {
		out = append(out, *copyRun(m.run))
	}
	return out, nil
}

func copyRun(run models.ScanRun) *models.ScanRun {
	c := run
	if run.ScheduleID != nil {
		id := *run.ScheduleID
		c.ScheduleID = &id
	}
	if run.StartedAt != nil {
		t := *run.StartedAt
		c.StartedAt = &t
	}
	if run.FinishedAt != nil {
		t := *run.FinishedAt
		c.FinishedAt = &t
	}
	c.LogLines = nil
	return &c
}
