// Package timeofday converts a caller's local wall-clock time to the canonical
// UTC time-of-day stored on schedules.
//
// Offsets are raw minutes fixed at creation time. There is no zone database
// lookup, so a schedule does not follow daylight-saving changes.
package timeofday

import (
	"fmt"
	"time"

	"github.com/crucial707/hci-scheduler/internal/apperr"
)

const minutesPerDay = 24 * 60

// Validate returns apperr.ErrInvalidTimeOfDay unless 0 <= hour <= 23 and 0 <= minute <= 59.
func Validate(hour, minute int) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("hour %d out of range 0-23: %w", hour, apperr.ErrInvalidTimeOfDay)
	}
	if minute < 0 || minute > 59 {
		return fmt.Errorf("minute %d out of range 0-59: %w", minute, apperr.ErrInvalidTimeOfDay)
	}
	return nil
}

// Normalize converts a local time-of-day to UTC. offsetMinutes is the number of
// minutes to add to local time to get UTC, i.e. the negated UTC offset
// (UTC-5 is 300, UTC+2 is -120). The result wraps around midnight in either direction.
func Normalize(localHour, localMinute, offsetMinutes int) (utcHour, utcMinute int, err error) {
	if err := Validate(localHour, localMinute); err != nil {
		return 0, 0, err
	}
	total := localHour*60 + localMinute + offsetMinutes
	total = ((total % minutesPerDay) + minutesPerDay) % minutesPerDay
	return total / 60, total % 60, nil
}

// OffsetMinutes returns the offset of t's zone in the convention Normalize expects.
func OffsetMinutes(t time.Time) int {
	_, secs := t.Zone()
	return -secs / 60
}

// Format renders hour and minute as HH:MM.
func Format(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, minute)
}
