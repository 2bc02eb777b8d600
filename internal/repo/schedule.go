package repo

import (
	"context"
	"database/sql"

	"github.com/crucial707/hci-scheduler/internal/models"
)

const scheduleColumns = `id, name, hour, minute, local_hour, local_minute, offset_minutes, created_at`

// ScheduleRepo persists scan schedules in Postgres or SQLite.
type ScheduleRepo struct {
	DB *sql.DB
}

// NewScheduleRepo returns a new ScheduleRepo.
func NewScheduleRepo(db *sql.DB) *ScheduleRepo {
	return &ScheduleRepo{DB: db}
}

// List returns all schedules in creation order.
func (r *ScheduleRepo) List(ctx context.Context) ([]models.Schedule, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+scheduleColumns+` FROM scan_schedules ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Schedule
	for rows.Next() {
		var s models.Schedule
		if err := scanSchedule(rows, &s); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// GetByID returns one schedule by id, or nil if not found.
func (r *ScheduleRepo) GetByID(ctx context.Context, id string) (*models.Schedule, error) {
	s := &models.Schedule{}
	err := scanSchedule(r.DB.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM scan_schedules WHERE id = $1`, id), s)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts s. The caller assigns ID and CreatedAt.
func (r *ScheduleRepo) Create(ctx context.Context, s *models.Schedule) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO scan_schedules (id, name, hour, minute, local_hour, local_minute, offset_minutes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, s.ID, s.Name, s.Hour, s.Minute, s.LocalHour, s.LocalMinute, s.OffsetMinutes, s.CreatedAt)
	return err
}

// Delete removes a schedule by id and reports whether a row was removed.
// Scan runs that reference the schedule are left untouched.
func (r *ScheduleRepo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM scan_schedules WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner, s *models.Schedule) error {
	return row.Scan(&s.ID, &s.Name, &s.Hour, &s.Minute, &s.LocalHour, &s.LocalMinute, &s.OffsetMinutes, &s.CreatedAt)
}
