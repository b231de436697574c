package conflict

import (
	"testing"
	"time"

	"github.com/md-rashed-zaman/ritebook/services/booking-service/internal/model"
)

func window(hour, minute, mins int) model.Window {
	return model.Window{Start: time.Date(2026, 1, 5, hour, minute, 0, 0, time.UTC), DurationMinutes: mins}
}

func TestParseTimeSlot(t *testing.T) {
	cases := []struct {
		in      string
		start   string
		end     string
		withEnd bool
	}{
		{"09:00", "09:00", "", false},
		{"9:30 AM", "09:30", "", false},
		{"2:15pm", "14:15", "", false},
		{"7 PM", "19:00", "", false},
		{"10:00:00", "10:00", "", false},
		{"09:00 - 10:30", "09:00", "10:30", true},
		{"9:00 AM – 11:00 AM", "09:00", "11:00", true},
		{"1 pm to 3 pm", "13:00", "15:00", true},
		{"18:00-??", "18:00", "", false},
		{"9.30 AM", "09:30", "", false},
		{"4.15 p.m.", "16:15", "", false},
		{"10.30 - 11.45", "10:30", "11:45", true},
		{"10 to 11", "10:00", "11:00", true},
	}
	for _, tc := range cases {
		slot, err := ParseTimeSlot(tc.in)
		if err != nil {
			t.Fatalf("ParseTimeSlot(%q): %v", tc.in, err)
		}
		if slot.Start.String() != tc.start {
			t.Fatalf("ParseTimeSlot(%q) start = %s, want %s", tc.in, slot.Start, tc.start)
		}
		if slot.HasEnd != tc.withEnd || (tc.withEnd && slot.End.String() != tc.end) {
			t.Fatalf("ParseTimeSlot(%q) end = %s (%v), want %s", tc.in, slot.End, slot.HasEnd, tc.end)
		}
	}

	for _, bad := range []string{"", "noon", "25:00", "- 10:00", "930 AM", "9.30.15"} {
		if _, err := ParseTimeSlot(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestFindConflict_TouchingBoundariesDoNotConflict(t *testing.T) {
	p := model.Provider{ID: "p1"}
	existing := []model.Assignment{
		{ID: "a1", ProviderID: "p1", Date: "2026-01-05", TimeSlot: "10:00", DurationMinutes: 60},
	}

	if FindConflict(p, window(11, 0, 60), existing) {
		t.Fatalf("window starting at existing end must not conflict")
	}
	if FindConflict(p, window(9, 0, 60), existing) {
		t.Fatalf("window ending at existing start must not conflict")
	}
	if !FindConflict(p, window(10, 59, 30), existing) {
		t.Fatalf("one minute of overlap must conflict")
	}
}

func TestFindConflict_Containment(t *testing.T) {
	p := model.Provider{ID: "p1"}
	existing := []model.Assignment{
		{ID: "a1", ProviderID: "p1", Date: "2026-01-05", TimeSlot: "10:00 - 13:00", DurationMinutes: 180},
	}
	if !FindConflict(p, window(11, 0, 30), existing) {
		t.Fatalf("window inside an assignment must conflict")
	}
	if !FindConflict(p, window(9, 0, 300), existing) {
		t.Fatalf("window containing an assignment must conflict")
	}
}

func TestFindConflict_FallbackDuration(t *testing.T) {
	p := model.Provider{ID: "p1"}
	existing := []model.Assignment{
		{ID: "legacy", ProviderID: "p1", Date: "2026-01-05", TimeSlot: "2:00 PM"},
	}
	if !FindConflict(p, window(14, 45, 30), existing) {
		t.Fatalf("assignment without duration must occupy 60 minutes")
	}
	if FindConflict(p, window(15, 0, 30), existing) {
		t.Fatalf("fallback span must end at 15:00")
	}
}

func TestFirst_FiltersProviderAndSkipsMalformed(t *testing.T) {
	existing := []model.Assignment{
		{ID: "other", ProviderID: "p2", Date: "2026-01-05", TimeSlot: "10:00", DurationMinutes: 60},
		{ID: "no-date", ProviderID: "p1", TimeSlot: "10:00", DurationMinutes: 60},
		{ID: "no-slot", ProviderID: "p1", Date: "2026-01-05", DurationMinutes: 60},
		{ID: "garbage", ProviderID: "p1", Date: "2026-01-05", TimeSlot: "whenever"},
		{ID: "bad-date", ProviderID: "p1", Date: "05/01/2026", TimeSlot: "10:00"},
		{ID: "embedded", Service: &model.ServiceBooking{ServiceID: "s1", ProviderID: "p1"}, Date: "2026-01-05", TimeSlot: "10:15", DurationMinutes: 30},
	}

	got, ok := First("p1", window(10, 0, 60), existing)
	if !ok || got.ID != "embedded" {
		t.Fatalf("expected embedded assignment conflict, got %+v (%v)", got, ok)
	}
	if _, ok := First("p3", window(10, 0, 60), existing); ok {
		t.Fatalf("unexpected conflict for provider without assignments")
	}
	if _, ok := First("", window(10, 0, 60), existing); ok {
		t.Fatalf("empty provider id must not match")
	}
}

func TestFindConflict_OtherDay(t *testing.T) {
	p := model.Provider{ID: "p1"}
	existing := []model.Assignment{
		{ID: "a1", ProviderID: "p1", Date: "2026-01-06", TimeSlot: "10:00", DurationMinutes: 60},
	}
	if FindConflict(p, window(10, 0, 60), existing) {
		t.Fatalf("assignment on another date must not conflict")
	}
}

func TestSpan_CrossesMidnight(t *testing.T) {
	a := model.Assignment{ProviderID: "p1", Date: "2026-01-05", TimeSlot: "23:30", DurationMinutes: 90}
	start, end, ok := Span(a, time.UTC)
	if !ok {
		t.Fatalf("expected span")
	}
	if !start.Equal(time.Date(2026, 1, 5, 23, 30, 0, 0, time.UTC)) || !end.Equal(time.Date(2026, 1, 6, 1, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected span %s - %s", start, end)
	}
	if !FindConflict(model.Provider{ID: "p1"}, model.Window{Start: time.Date(2026, 1, 6, 0, 30, 0, 0, time.UTC), DurationMinutes: 30}, []model.Assignment{a}) {
		t.Fatalf("window after midnight must conflict with the late assignment")
	}
}
