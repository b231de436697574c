package model

import "time"

// Window is a requested booking interval [Start, Start+DurationMinutes).
type Window struct {
	Start           time.Time
	DurationMinutes int
}

func (w Window) End() time.Time {
	return w.Start.Add(time.Duration(w.DurationMinutes) * time.Minute)
}

// Overlaps reports whether half-open intervals [aStart,aEnd) and [bStart,bEnd)
// intersect. Touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

func (w Window) Valid() bool {
	return !w.Start.IsZero() && w.DurationMinutes > 0
}

// Reason explains why a window is not available. The zero value means available.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonOffDay          Reason = "OFF_DAY"
	ReasonOutsideHours    Reason = "OUTSIDE_HOURS"
	ReasonBookingConflict Reason = "BOOKING_CONFLICT"
)
