package models

import "time"

// Overall scheduler states reported by StatusSnapshot.
const (
	StateIdle    = "idle"
	StateRunning = "running"
)

// NextDue describes the schedule that fires next and when.
type NextDue struct {
	ScheduleID string    `json:"schedule_id"`
	Name       string    `json:"name,omitempty"`
	Hour       int       `json:"hour"`
	Minute     int       `json:"minute"`
	At         time.Time `json:"at"`
}

// StatusSnapshot is a point-in-time view of the scheduler. It is derived on
// request and never stored.
type StatusSnapshot struct {
	State    string    `json:"state"`
	Current  *ScanRun  `json:"current,omitempty"`
	Latest   *ScanRun  `json:"latest,omitempty"`
	NextDue  *NextDue  `json:"next_due,omitempty"`
	At       time.Time `json:"at"`
	Degraded bool      `json:"degraded,omitempty"`
}
