package availability

import (
	"slices"
	"time"

	"github.com/md-rashed-zaman/ritebook/services/booking-service/internal/model"
)

// AvailableSlots returns slot start times within [windowStart, windowEnd) where a booking of
// length duration would not overlap any of the busy intervals.
//
// All times are expected to be in the same location (timezone).
func AvailableSlots(windowStart, windowEnd time.Time, duration, step time.Duration, busy []Interval, now time.Time) []time.Time {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if !windowEnd.After(windowStart) {
		return nil
	}
	if windowStart.Add(duration).After(windowEnd) {
		return nil
	}

	var slots []time.Time
	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(step) {
		if t.Before(now) {
			continue
		}
		if !overlapsAny(t, t.Add(duration), busy) {
			slots = append(slots, t)
		}
	}
	return slots
}

// OpenSlots lists start times on the calendar day of day at which the provider could
// take a booking of durationMinutes: inside a shift, clear of busy, and not before now.
// Slots are stepped from each shift's start and returned sorted without duplicates.
func OpenSlots(p model.Provider, day time.Time, durationMinutes, stepMinutes int, busy []Interval, now time.Time) []time.Time {
	if durationMinutes <= 0 || stepMinutes <= 0 {
		return nil
	}
	if !p.WorksOn(day.Weekday()) || p.IsOffDate(day) {
		return nil
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	dur := time.Duration(durationMinutes) * time.Minute
	step := time.Duration(stepMinutes) * time.Minute

	var out []time.Time
	for _, span := range ShiftSpans(p.WorkShifts, day) {
		for _, t := range AvailableSlots(span.Start, span.End, dur, step, busy, now) {
			if t.Before(dayStart) || !t.Before(dayEnd) {
				continue
			}
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return slices.CompactFunc(out, func(a, b time.Time) bool { return a.Equal(b) })
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if model.Overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}
