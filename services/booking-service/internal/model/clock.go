package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock is a wall-clock time of day in minutes since midnight (0..1439).
type Clock int

const minutesPerDay = 24 * 60

// ParseClock parses "HH:MM" (24h). Hours 0..23, minutes 0..59.
func ParseClock(s string) (Clock, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid clock %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid clock %q: hour out of range", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || len(m) != 2 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid clock %q: minute out of range", s)
	}
	return Clock(hour*60 + minute), nil
}

func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) Valid() bool { return c >= 0 && c < minutesPerDay }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// On returns the instant at this clock time on the calendar day of day, in day's location.
// offsetDays shifts the calendar day.
func (c Clock) On(day time.Time, offsetDays int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day()+offsetDays, c.Hour(), c.Minute(), 0, 0, day.Location())
}
