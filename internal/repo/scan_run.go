package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/crucial707/hci-scheduler/internal/models"
)

const runColumns = `id, schedule_id, trigger_date, status, created_at, started_at, finished_at`

// ScanRunRepo persists scan runs and their log lines in Postgres or SQLite.
type ScanRunRepo struct {
	DB *sql.DB
}

// NewScanRunRepo returns a new ScanRunRepo.
func NewScanRunRepo(db *sql.DB) *ScanRunRepo {
	return &ScanRunRepo{DB: db}
}

// Insert stores a new run. A second run for the same schedule and trigger date
// fails with apperr.ErrDuplicateTrigger.
func (r *ScanRunRepo) Insert(ctx context.Context, run *models.ScanRun) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO scan_runs (id, schedule_id, trigger_date, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, run.ID, nullStringPtr(run.ScheduleID), run.TriggerDate, string(run.Status), run.CreatedAt)
	return translateConstraint(err)
}

// ExistsForTrigger reports whether scheduleID already has a run for triggerDate.
func (r *ScanRunRepo) ExistsForTrigger(ctx context.Context, scheduleID, triggerDate string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scan_runs WHERE schedule_id = $1 AND trigger_date = $2`,
		scheduleID, triggerDate,
	).Scan(&n)
	return n > 0, err
}

// Transition moves run id from one status to another and stamps the matching
// timestamp (started_at for running, finished_at for terminal states). It
// reports false when the run was not in the from state.
func (r *ScanRunRepo) Transition(ctx context.Context, id string, from, to models.RunStatus, at time.Time) (bool, error) {
	var query string
	switch {
	case to == models.RunRunning:
		query = `UPDATE scan_runs SET status = $1, started_at = $2 WHERE id = $3 AND status = $4`
	case to.Terminal():
		query = `UPDATE scan_runs SET status = $1, finished_at = $2 WHERE id = $3 AND status = $4`
	default:
		return false, fmt.Errorf("transition to %q not supported", to)
	}
	res, err := r.DB.ExecContext(ctx, query, string(to), at, id, string(from))
	if err != nil {
		return false, translateConstraint(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// AppendLog stores one log line with its sequence number.
func (r *ScanRunRepo) AppendLog(ctx context.Context, runID string, seq int, line string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO scan_run_logs (run_id, seq, line, logged_at) VALUES ($1, $2, $3, $4)`,
		runID, seq, line, at,
	)
	return err
}

// GetByID returns a run by id without its log lines, or nil if not found.
func (r *ScanRunRepo) GetByID(ctx context.Context, id string) (*models.ScanRun, error) {
	run := &models.ScanRun{}
	err := scanRun(r.DB.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM scan_runs WHERE id = $1`, id), run)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// Logs returns the log lines of a run in append order.
func (r *ScanRunRepo) Logs(ctx context.Context, runID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT line FROM scan_run_logs WHERE run_id = $1 ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// Latest returns the most recently started run, or nil if none has started.
func (r *ScanRunRepo) Latest(ctx context.Context) (*models.ScanRun, error) {
	run := &models.ScanRun{}
	err := scanRun(r.DB.QueryRowContext(ctx, `
		SELECT `+runColumns+` FROM scan_runs
		WHERE started_at IS NOT NULL
		ORDER BY started_at DESC, seq DESC
		LIMIT 1
	`), run)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListUnfinished returns runs still pending or running, oldest first.
func (r *ScanRunRepo) ListUnfinished(ctx context.Context) ([]models.ScanRun, error) {
	return r.query(ctx,
		`SELECT `+runColumns+` FROM scan_runs WHERE status IN ($1, $2) ORDER BY seq`,
		string(models.RunPending), string(models.RunRunning),
	)
}

// Count returns the total number of runs.
func (r *ScanRunRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM scan_runs").Scan(&n)
	return n, err
}

// List returns runs newest first. limit/offset for pagination.
func (r *ScanRunRepo) List(ctx context.Context, limit, offset int) ([]models.ScanRun, error) {
	return r.query(ctx,
		`SELECT `+runColumns+` FROM scan_runs ORDER BY seq DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
}

func (r *ScanRunRepo) query(ctx context.Context, query string, args ...any) ([]models.ScanRun, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.ScanRun
	for rows.Next() {
		var run models.ScanRun
		if err := scanRun(rows, &run); err != nil {
			return nil, err
		}
		list = append(list, run)
	}
	return list, rows.Err()
}

func scanRun(row rowScanner, run *models.ScanRun) error {
	var (
		scheduleID sql.NullString
		status     string
		startedAt  sql.NullTime
		finishedAt sql.NullTime
	)
	if err := row.Scan(&run.ID, &scheduleID, &run.TriggerDate, &status, &run.CreatedAt, &startedAt, &finishedAt); err != nil {
		return err
	}
	run.Status = models.RunStatus(status)
	if scheduleID.Valid {
		id := scheduleID.String
		run.ScheduleID = &id
	}
	if startedAt.Valid {
		t := startedAt.Time
		run.StartedAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	return nil
}

func nullStringPtr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
