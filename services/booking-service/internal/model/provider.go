package model

import (
	"slices"
	"time"
)

// DateLayout is the calendar date format used for off dates and assignment dates.
const DateLayout = "2006-01-02"

// Shift is one continuous working span within a day. End <= Start means the
// shift runs past midnight and ends on the following day.
type Shift struct {
	Start Clock
	End   Clock
}

func (s Shift) Overnight() bool { return s.End <= s.Start }

func (s Shift) String() string { return s.Start.String() + "-" + s.End.String() }

type Provider struct {
	ID          string
	Name        string
	Location    string
	Services    []string
	WorkingDays []time.Weekday
	WorkShifts  []Shift
	OffDates    []string
}

func (p Provider) WorksOn(d time.Weekday) bool {
	return slices.Contains(p.WorkingDays, d)
}

// IsOffDate reports whether the calendar date of t is a configured exception.
func (p Provider) IsOffDate(t time.Time) bool {
	return slices.Contains(p.OffDates, t.Format(DateLayout))
}

func (p Provider) Offers(serviceID string) bool {
	if serviceID == "" {
		return true
	}
	return slices.Contains(p.Services, serviceID)
}
