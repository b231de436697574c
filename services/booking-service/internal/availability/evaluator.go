package availability

import (
	"time"

	"github.com/md-rashed-zaman/ritebook/services/booking-service/internal/model"
)

type Interval struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether [start,end) lies entirely inside the interval.
func (i Interval) Contains(start, end time.Time) bool {
	return !start.Before(i.Start) && !end.After(i.End)
}

// Evaluate checks a window against the provider's schedule only; existing
// assignments are not considered. It returns model.ReasonNone when the window is
// inside one of the provider's shifts.
func Evaluate(p model.Provider, w model.Window) model.Reason {
	if !p.WorksOn(w.Start.Weekday()) || p.IsOffDate(w.Start) {
		return model.ReasonOffDay
	}
	if !w.Valid() {
		return model.ReasonOutsideHours
	}

	start, end := w.Start, w.End()
	for _, span := range ShiftSpans(p.WorkShifts, w.Start) {
		if span.Contains(start, end) {
			return model.ReasonNone
		}
	}
	return model.ReasonOutsideHours
}

func IsWithinWorkingWindow(p model.Provider, w model.Window) bool {
	return Evaluate(p, w) == model.ReasonNone
}

// ShiftSpans materializes shifts around the calendar day of day. Every shift gets a
// span starting on that day; overnight shifts also get the span that started the day
// before and runs into it. Spans are built in day's location.
func ShiftSpans(shifts []model.Shift, day time.Time) []Interval {
	spans := make([]Interval, 0, len(shifts)*2)
	for _, s := range shifts {
		if !s.Start.Valid() || !s.End.Valid() {
			continue
		}
		if !s.Overnight() {
			spans = append(spans, Interval{Start: s.Start.On(day, 0), End: s.End.On(day, 0)})
			continue
		}
		spans = append(spans,
			Interval{Start: s.Start.On(day, 0), End: s.End.On(day, 1)},
			Interval{Start: s.Start.On(day, -1), End: s.End.On(day, 0)},
		)
	}
	return spans
}
