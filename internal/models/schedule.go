package models

import "time"

// Schedule is a named recurring daily scan trigger. Hour and Minute are the
// canonical UTC time-of-day; the Local* fields echo what the caller asked for.
type Schedule struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Hour          int       `json:"hour"`
	Minute        int       `json:"minute"`
	LocalHour     int       `json:"local_hour"`
	LocalMinute   int       `json:"local_minute"`
	OffsetMinutes int       `json:"offset_minutes"`
	CreatedAt     time.Time `json:"created_at"`
}

// Matches reports whether the schedule fires in the UTC minute containing t.
func (s Schedule) Matches(t time.Time) bool {
	t = t.UTC()
	return s.Hour == t.Hour() && s.Minute == t.Minute()
}
