package availability

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseClock converts "HH:MM" (24h) to minutes from midnight. "24:00" is
// accepted as the exclusive end of a day.
func ParseClock(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	total := h*60 + m
	if total > MinutesPerDay {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return total, nil
}

func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// ParseDay parses a "2006-01-02" date into a UTC-midnight time.
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", strings.TrimSpace(s), time.UTC)
}

func FormatDay(day time.Time) string {
	return day.Format("2006-01-02")
}

// MinuteOfDay returns t's clock position in minutes from midnight.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// DayBounds returns the UTC instants spanning the given day.
func DayBounds(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// ClampToDay projects an absolute [start, end) instant range onto the given
// day's minute axis. Returns false when the range misses the day entirely.
func ClampToDay(day time.Time, start, end time.Time) (TimeRange, bool) {
	dayStart, dayEnd := DayBounds(day)
	if !start.Before(dayEnd) || !end.After(dayStart) {
		return TimeRange{}, false
	}
	r := TimeRange{StartMinute: 0, EndMinute: MinutesPerDay}
	if start.After(dayStart) {
		r.StartMinute = int(start.Sub(dayStart) / time.Minute)
	}
	if end.Before(dayEnd) {
		r.EndMinute = int(end.Sub(dayStart) / time.Minute)
	}
	if r.EndMinute <= r.StartMinute {
		return TimeRange{}, false
	}
	return r, true
}
