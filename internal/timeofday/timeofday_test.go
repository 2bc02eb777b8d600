package timeofday

import (
	"errors"
	"testing"
	"time"

	"github.com/crucial707/hci-scheduler/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name         string
		hour, minute int
		offset       int
		wantH        int
		wantM        int
	}{
		{name: "utc unchanged", hour: 9, minute: 0, offset: 0, wantH: 9, wantM: 0},
		{name: "utc-5 to utc", hour: 9, minute: 0, offset: 300, wantH: 14, wantM: 0},
		{name: "wraps forward past midnight", hour: 23, minute: 30, offset: 90, wantH: 1, wantM: 0},
		{name: "wraps backward past midnight", hour: 0, minute: 15, offset: -60, wantH: 23, wantM: 15},
		{name: "half hour zone", hour: 10, minute: 0, offset: -330, wantH: 4, wantM: 30},
		{name: "full day offset", hour: 6, minute: 45, offset: 1440, wantH: 6, wantM: 45},
		{name: "end of day", hour: 23, minute: 59, offset: 1, wantH: 0, wantM: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, m, err := Normalize(tt.hour, tt.minute, tt.offset)
			require.NoError(t, err)
			assert.Equal(t, tt.wantH, h)
			assert.Equal(t, tt.wantM, m)
		})
	}
}

func TestNormalize_InvalidInput(t *testing.T) {
	cases := [][2]int{{-1, 0}, {24, 0}, {0, -1}, {0, 60}, {99, 99}}
	for _, c := range cases {
		_, _, err := Normalize(c[0], c[1], 0)
		if !errors.Is(err, apperr.ErrInvalidTimeOfDay) {
			t.Errorf("Normalize(%d, %d): got %v, want ErrInvalidTimeOfDay", c[0], c[1], err)
		}
	}
}

// TestNormalize_RangeAndInverse walks every local minute of the day against a
// spread of offsets in (-1440, 1440) and checks the result stays in range and
// that applying the negated offset recovers the local time.
func TestNormalize_RangeAndInverse(t *testing.T) {
	for offset := -1439; offset < 1440; offset += 17 {
		for hour := 0; hour < 24; hour++ {
			for minute := 0; minute < 60; minute++ {
				h, m, err := Normalize(hour, minute, offset)
				if err != nil {
					t.Fatalf("Normalize(%d, %d, %d): %v", hour, minute, offset, err)
				}
				if h < 0 || h > 23 || m < 0 || m > 59 {
					t.Fatalf("Normalize(%d, %d, %d) = %d:%d out of range", hour, minute, offset, h, m)
				}
				lh, lm, err := Normalize(h, m, -offset)
				if err != nil {
					t.Fatalf("inverse Normalize(%d, %d, %d): %v", h, m, -offset, err)
				}
				if lh != hour || lm != minute {
					t.Fatalf("inverse of %d:%d with offset %d = %d:%d", hour, minute, offset, lh, lm)
				}
			}
		}
	}
}

func TestOffsetMinutes(t *testing.T) {
	est := time.FixedZone("EST", -5*60*60)
	assert.Equal(t, 300, OffsetMinutes(time.Date(2026, 1, 5, 9, 0, 0, 0, est)))

	ist := time.FixedZone("IST", 5*60*60+30*60)
	assert.Equal(t, -330, OffsetMinutes(time.Date(2026, 1, 5, 9, 0, 0, 0, ist)))

	assert.Equal(t, 0, OffsetMinutes(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "09:05", Format(9, 5))
	assert.Equal(t, "23:59", Format(23, 59))
}
