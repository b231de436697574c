package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/md-rashed-zaman/ritebook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/ritebook/services/booking-service/internal/memstore"
	"github.com/md-rashed-zaman/ritebook/services/booking-service/internal/model"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestHandler(t *testing.T) (*BookingHandler, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	engine := booking.New(store,
		booking.WithLogger(quiet),
		booking.WithDirectory(store),
		booking.WithClock(func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }),
	)
	h := NewBookingHandler(engine, store, store, quiet, time.UTC)

	// Monday to Friday 09:00-17:00 plus a late shift.
	body := `{"id":"p1","name":"Pandit Hari","location":"Kathmandu","services":["puja"],
		"working_days":[1,2,3,4,5],"shifts":[{"start":"09:00","end":"17:00"},{"start":"22:00","end":"02:00"}],
		"off_dates":["2026-01-07"]}`
	rec := do(t, h.Providers, http.MethodPut, "/api/v1/providers", body)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("save provider: expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	return h, store
}

func do(t *testing.T, fn http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	fn(rec, httptest.NewRequest(method, target, r))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestCreateBooking_ConfirmThenConflict(t *testing.T) {
	h, store := newTestHandler(t)

	body := `{"provider_id":"p1","date":"2026-01-05","time":"10:00","duration":"1.5 hours","service_id":"puja","customer_name":"Sita"}`
	rec := do(t, h.Bookings, http.MethodPost, "/api/v1/bookings", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[createBookingResponse](t, rec)
	if !resp.Confirmed || resp.Assignment == nil || resp.Assignment.DurationMinutes != 90 || resp.Assignment.TimeSlot != "10:00" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Assignment.ServiceID != "puja" || resp.Assignment.ProviderID != "p1" {
		t.Fatalf("service reference lost: %+v", resp.Assignment)
	}

	overlap := `{"provider_id":"p1","date":"2026-01-05","time":"11:00","duration_minutes":30,"customer_name":"Gita"}`
	rec = do(t, h.Bookings, http.MethodPost, "/api/v1/bookings", overlap)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if got := decode[createBookingResponse](t, rec); got.Confirmed || got.Reason != string(model.ReasonBookingConflict) {
		t.Fatalf("expected BOOKING_CONFLICT, got %+v", got)
	}

	adjacent := `{"provider_id":"p1","date":"2026-01-05","time":"11:30","duration_minutes":30}`
	if rec := do(t, h.Bookings, http.MethodPost, "/api/v1/bookings", adjacent); rec.Code != http.StatusCreated {
		t.Fatalf("adjacent booking: expected 201, got %d", rec.Code)
	}

	all, _ := store.ListAssignments(context.Background(), "p1")
	if len(all) != 2 {
		t.Fatalf("expected 2 stored assignments, got %d", len(all))
	}
}

func TestCreateBooking_Rejections(t *testing.T) {
	h, _ := newTestHandler(t)

	cases := []struct {
		name string
		body string
		want model.Reason
	}{
		{"straddles shift end", `{"provider_id":"p1","date":"2026-01-05","time":"16:30","duration_minutes":60}`, model.ReasonOutsideHours},
		{"weekend", `{"provider_id":"p1","date":"2026-01-10","time":"10:00","duration_minutes":60}`, model.ReasonOffDay},
		{"off date", `{"provider_id":"p1","date":"2026-01-07","time":"10:00","duration_minutes":60}`, model.ReasonOffDay},
	}
	for _, tc := range cases {
		rec := do(t, h.Bookings, http.MethodPost, "/api/v1/bookings", tc.body)
		if rec.Code != http.StatusConflict {
			t.Fatalf("%s: expected 409, got %d", tc.name, rec.Code)
		}
		if got := decode[createBookingResponse](t, rec); got.Reason != string(tc.want) {
			t.Fatalf("%s: expected %s, got %q", tc.name, tc.want, got.Reason)
		}
	}
}

func TestCreateBooking_OvernightShift(t *testing.T) {
	h, _ := newTestHandler(t)

	late := `{"provider_id":"p1","date":"2026-01-05","time":"23:00","duration_minutes":60}`
	if rec := do(t, h.Bookings, http.MethodPost, "/api/v1/bookings", late); rec.Code != http.StatusCreated {
		t.Fatalf("23:00 Monday: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	early := `{"provider_id":"p1","date":"2026-01-06","time":"01:00","duration_minutes":60}`
	if rec := do(t, h.Bookings, http.MethodPost, "/api/v1/bookings", early); rec.Code != http.StatusCreated {
		t.Fatalf("01:00 Tuesday: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateBooking_BadRequests(t *testing.T) {
	h, _ := newTestHandler(t)

	cases := map[string]struct {
		body string
		code int
	}{
		"invalid json":     {`{`, http.StatusBadRequest},
		"missing provider": {`{"date":"2026-01-05","time":"10:00"}`, http.StatusBadRequest},
		"bad date":         {`{"provider_id":"p1","date":"05-01-2026","time":"10:00"}`, http.StatusBadRequest},
		"bad time":         {`{"provider_id":"p1","date":"2026-01-05","time":"25:00"}`, http.StatusBadRequest},
		"negative minutes": {`{"provider_id":"p1","date":"2026-01-05","time":"10:00","duration_minutes":-5}`, http.StatusBadRequest},
		"unknown provider": {`{"provider_id":"nobody","date":"2026-01-05","time":"10:00"}`, http.StatusNotFound},
		"huge duration":    {`{"provider_id":"p1","date":"2026-01-05","time":"10:00","duration":"100 hours"}`, http.StatusBadRequest},
	}
	for name, tc := range cases {
		if rec := do(t, h.Bookings, http.MethodPost, "/api/v1/bookings", tc.body); rec.Code != tc.code {
			t.Fatalf("%s: expected %d, got %d", name, tc.code, rec.Code)
		}
	}

	if rec := do(t, h.Bookings, http.MethodDelete, "/api/v1/bookings", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

type brokenStore struct{}

func (brokenStore) ListAssignments(context.Context, string) ([]model.Assignment, error) {
	return nil, errors.New("connection reset")
}

func (brokenStore) AppendAssignment(context.Context, model.Assignment) error {
	return errors.New("connection reset")
}

func TestCreateBooking_StoreFailureIs503(t *testing.T) {
	providers := memstore.New()
	_ = providers.SaveProvider(context.Background(), model.Provider{
		ID:          "p1",
		WorkingDays: []time.Weekday{time.Monday},
		WorkShifts:  []model.Shift{{Start: 9 * 60, End: 17 * 60}},
	})
	engine := booking.New(brokenStore{}, booking.WithLogger(quiet))
	h := NewBookingHandler(engine, providers, brokenStore{}, quiet, time.UTC)

	rec := do(t, h.Bookings, http.MethodPost, "/api/v1/bookings", `{"provider_id":"p1","date":"2026-01-05","time":"10:00"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if rec := do(t, h.Bookings, http.MethodGet, "/api/v1/bookings", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 listing, got %d", rec.Code)
	}
}

func TestAvailability(t *testing.T) {
	h, store := newTestHandler(t)
	_ = store.SaveProvider(context.Background(), model.Provider{
		ID:          "p2",
		Name:        "Pandit Shyam",
		Location:    "Kathmandu",
		Services:    []string{"puja"},
		WorkingDays: []time.Weekday{time.Monday},
		WorkShifts:  []model.Shift{{Start: 12 * 60, End: 18 * 60}},
	})

	rec := do(t, h.Availability, http.MethodGet, "/api/v1/providers/availability?service=puja&location=kathmandu&date=2026-01-05&time=10:00&duration=1%20hour", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	items := decode[[]availabilityItem](t, rec)
	if len(items) != 2 {
		t.Fatalf("expected 2 providers, got %+v", items)
	}
	if items[0].ProviderID != "p1" || !items[0].Available {
		t.Fatalf("expected p1 available first, got %+v", items[0])
	}
	if items[1].ProviderID != "p2" || items[1].Available || items[1].Reason != string(model.ReasonOutsideHours) {
		t.Fatalf("expected p2 OUTSIDE_HOURS, got %+v", items[1])
	}

	if rec := do(t, h.Availability, http.MethodGet, "/api/v1/providers/availability?date=2026-01-05&time=10:00&duration_minutes=abc", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad duration, got %d", rec.Code)
	}
	if rec := do(t, h.Availability, http.MethodGet, "/api/v1/providers/availability?date=2026-01-05&time=10:00&duration=100%20hours", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized text duration, got %d", rec.Code)
	}
}

func TestSlots(t *testing.T) {
	h, _ := newTestHandler(t)

	if rec := do(t, h.Bookings, http.MethodPost, "/api/v1/bookings", `{"provider_id":"p1","date":"2026-01-05","time":"09:00","duration_minutes":420}`); rec.Code != http.StatusCreated {
		t.Fatalf("seed booking: expected 201, got %d", rec.Code)
	}

	rec := do(t, h.Slots, http.MethodGet, "/api/v1/providers/slots?provider_id=p1&date=2026-01-05&duration_minutes=60&step_minutes=60", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	items := decode[[]slotItem](t, rec)
	// 00:00 and 01:00 come from the late shift that started Sunday evening.
	want := []string{
		"2026-01-05T00:00:00Z",
		"2026-01-05T01:00:00Z",
		"2026-01-05T16:00:00Z",
		"2026-01-05T22:00:00Z",
		"2026-01-05T23:00:00Z",
	}
	if len(items) != len(want) {
		t.Fatalf("expected %v, got %+v", want, items)
	}
	for i := range want {
		if items[i].StartTime != want[i] {
			t.Fatalf("slot %d: expected %s, got %s", i, want[i], items[i].StartTime)
		}
	}

	if rec := do(t, h.Slots, http.MethodGet, "/api/v1/providers/slots?provider_id=ghost&date=2026-01-05", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListBookings(t *testing.T) {
	h, _ := newTestHandler(t)
	do(t, h.Bookings, http.MethodPost, "/api/v1/bookings", `{"provider_id":"p1","date":"2026-01-05","time":"10:00","customer_name":"Sita"}`)

	rec := do(t, h.Bookings, http.MethodGet, "/api/v1/bookings?provider_id=p1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	items := decode[[]assignmentItem](t, rec)
	if len(items) != 1 || items[0].CustomerName != "Sita" || items[0].DurationMinutes != 60 {
		t.Fatalf("unexpected items %+v", items)
	}
}

func TestProviders_Validation(t *testing.T) {
	h, _ := newTestHandler(t)
	cases := []string{
		`{"name":"no id"}`,
		`{"id":"p9","working_days":[7]}`,
		`{"id":"p9","shifts":[{"start":"9am","end":"17:00"}]}`,
		`{"id":"p9","off_dates":["tomorrow"]}`,
	}
	for _, body := range cases {
		if rec := do(t, h.Providers, http.MethodPut, "/api/v1/providers", body); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, rec.Code)
		}
	}
	if rec := do(t, h.Providers, http.MethodPost, "/api/v1/providers", `{}`); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
