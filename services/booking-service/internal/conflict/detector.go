// Package conflict finds existing assignments that overlap a requested window.
package conflict

import (
	"time"

	"github.com/md-rashed-zaman/ritebook/services/booking-service/internal/model"
)

// FallbackDurationMinutes is assumed for assignments stored without a duration.
const FallbackDurationMinutes = 60

// Span reconstructs the occupied interval of an assignment in loc. ok is false when the
// assignment has no usable date or time slot.
func Span(a model.Assignment, loc *time.Location) (start, end time.Time, ok bool) {
	if a.Date == "" || a.TimeSlot == "" {
		return time.Time{}, time.Time{}, false
	}
	day, err := time.ParseInLocation(model.DateLayout, a.Date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	slot, err := ParseTimeSlot(a.TimeSlot)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}

	mins := a.DurationMinutes
	if mins <= 0 {
		mins = FallbackDurationMinutes
	}
	start = slot.Start.On(day, 0)
	return start, start.Add(time.Duration(mins) * time.Minute), true
}

// First returns the first assignment of providerID that overlaps w. Intervals are
// half-open, so back-to-back bookings do not conflict.
func First(providerID string, w model.Window, all []model.Assignment) (model.Assignment, bool) {
	if providerID == "" {
		return model.Assignment{}, false
	}
	loc := w.Start.Location()
	start, end := w.Start, w.End()
	for _, a := range all {
		if a.ProviderRef() != providerID {
			continue
		}
		s, e, ok := Span(a, loc)
		if !ok {
			continue
		}
		if model.Overlaps(start, end, s, e) {
			return a, true
		}
	}
	return model.Assignment{}, false
}

func FindConflict(p model.Provider, w model.Window, all []model.Assignment) bool {
	_, found := First(p.ID, w, all)
	return found
}
