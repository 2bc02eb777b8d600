package models

import "time"

// RunStatus is the lifecycle state of a scan run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed from s.
func (s RunStatus) Terminal() bool {
	return s == RunSucceeded || s == RunFailed || s == RunCancelled
}

// TriggerDateLayout is the layout of ScanRun.TriggerDate.
const TriggerDateLayout = "2006-01-02"

// TriggerDate returns the UTC calendar date of t as used for run idempotency.
func TriggerDate(t time.Time) string {
	return t.UTC().Format(TriggerDateLayout)
}

// ScanRun is one execution attempt of the scan job. ScheduleID is nil for
// on-demand runs.
type ScanRun struct {
	ID          string     `json:"id"`
	ScheduleID  *string    `json:"schedule_id"`
	TriggerDate string     `json:"trigger_date"`
	Status      RunStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	LogLines    []string   `json:"log_lines,omitempty"`
}

// OnDemand reports whether the run was requested directly rather than by a schedule.
func (r ScanRun) OnDemand() bool {
	return r.ScheduleID == nil
}
