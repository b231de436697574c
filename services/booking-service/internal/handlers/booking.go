package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/ritebook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/ritebook/services/booking-service/internal/duration"
	"github.com/md-rashed-zaman/ritebook/services/booking-service/internal/model"
)

const maxDurationMinutes = 24 * 60

// ProviderDirectory is the provider storage the handlers need.
type ProviderDirectory interface {
	booking.Directory
	SaveProvider(ctx context.Context, p model.Provider) error
}

type BookingHandler struct {
	engine      *booking.Engine
	providers   ProviderDirectory
	assignments booking.Store
	logger      *slog.Logger
	loc         *time.Location
}

func NewBookingHandler(engine *booking.Engine, providers ProviderDirectory, assignments booking.Store, logger *slog.Logger, loc *time.Location) *BookingHandler {
	if loc == nil {
		loc = time.Local
	}
	return &BookingHandler{
		engine:      engine,
		providers:   providers,
		assignments: assignments,
		logger:      logger,
		loc:         loc,
	}
}

type availabilityItem struct {
	ProviderID string `json:"provider_id"`
	Name       string `json:"name"`
	Location   string `json:"location"`
	Available  bool   `json:"available"`
	Reason     string `json:"reason,omitempty"`
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type createBookingRequest struct {
	ProviderID      string `json:"provider_id"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	Duration        string `json:"duration"`
	DurationMinutes int    `json:"duration_minutes"`
	ServiceID       string `json:"service_id"`
	CustomerName    string `json:"customer_name"`
	Notes           string `json:"notes"`
}

type assignmentItem struct {
	AssignmentID    string `json:"assignment_id"`
	ProviderID      string `json:"provider_id"`
	ServiceID       string `json:"service_id,omitempty"`
	Date            string `json:"date"`
	TimeSlot        string `json:"time_slot"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	CustomerName    string `json:"customer_name,omitempty"`
	Notes           string `json:"notes,omitempty"`
	CreatedAt       string `json:"created_at"`
}

type createBookingResponse struct {
	Confirmed  bool            `json:"confirmed"`
	Reason     string          `json:"reason,omitempty"`
	Assignment *assignmentItem `json:"assignment,omitempty"`
}

// Availability lists providers for a service and location with their verdict for the
// requested window.
func (h *BookingHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	mins, err := resolveDuration(q.Get("duration_minutes"), q.Get("duration"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	win, err := h.parseWindow(q.Get("date"), q.Get("time"), mins)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	candidates, err := h.engine.Browse(r.Context(), booking.ProviderQuery{
		ServiceID: strings.TrimSpace(q.Get("service")),
		Location:  strings.TrimSpace(q.Get("location")),
	}, win)
	if err != nil {
		h.logger.Error("browse providers failed", "err", err)
		http.Error(w, "availability unavailable", http.StatusServiceUnavailable)
		return
	}

	items := make([]availabilityItem, 0, len(candidates))
	for _, c := range candidates {
		items = append(items, availabilityItem{
			ProviderID: c.Provider.ID,
			Name:       c.Provider.Name,
			Location:   c.Provider.Location,
			Available:  c.Available,
			Reason:     string(c.Reason),
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	providerID := strings.TrimSpace(q.Get("provider_id"))
	dateStr := strings.TrimSpace(q.Get("date"))
	if providerID == "" || dateStr == "" {
		http.Error(w, "provider_id and date are required", http.StatusBadRequest)
		return
	}
	day, err := time.ParseInLocation(model.DateLayout, dateStr, h.loc)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}
	mins, err := resolveDuration(q.Get("duration_minutes"), q.Get("duration"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	step := 30
	if v := strings.TrimSpace(q.Get("step_minutes")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 240 {
			http.Error(w, "invalid step_minutes", http.StatusBadRequest)
			return
		}
		step = n
	}

	p, ok := h.lookupProvider(r.Context(), w, providerID)
	if !ok {
		return
	}
	starts, err := h.engine.OpenSlots(r.Context(), p, day, mins, step)
	if err != nil {
		h.logger.Error("open slots failed", "provider_id", providerID, "err", err)
		http.Error(w, "failed to load booked slots", http.StatusServiceUnavailable)
		return
	}

	items := make([]slotItem, 0, len(starts))
	for _, s := range starts {
		items = append(items, slotItem{
			StartTime: s.Format(time.RFC3339),
			EndTime:   s.Add(time.Duration(mins) * time.Minute).Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, items)
}

// Bookings serves POST (attempt a booking) and GET (list assignments).
func (h *BookingHandler) Bookings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *BookingHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ProviderID = strings.TrimSpace(req.ProviderID)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	if req.ProviderID == "" || req.Date == "" || req.Time == "" {
		http.Error(w, "provider_id, date and time are required", http.StatusBadRequest)
		return
	}

	mins := req.DurationMinutes
	if mins < 0 || mins > maxDurationMinutes {
		http.Error(w, "invalid duration_minutes", http.StatusBadRequest)
		return
	}
	if mins == 0 {
		if mins = duration.ResolveMinutes(req.Duration); mins > maxDurationMinutes {
			http.Error(w, "invalid duration", http.StatusBadRequest)
			return
		}
	}
	win, err := h.parseWindow(req.Date, req.Time, mins)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	p, ok := h.lookupProvider(ctx, w, req.ProviderID)
	if !ok {
		return
	}

	res, err := h.engine.AttemptBooking(ctx, p, win, func(model.Provider, model.Window) model.Assignment {
		a := model.Assignment{CustomerName: req.CustomerName, Notes: strings.TrimSpace(req.Notes)}
		if svc := strings.TrimSpace(req.ServiceID); svc != "" {
			a.Service = &model.ServiceBooking{ServiceID: svc}
		}
		return a
	})
	if err != nil {
		http.Error(w, "booking store unavailable", http.StatusServiceUnavailable)
		return
	}

	if !res.Confirmed {
		writeJSON(w, http.StatusConflict, createBookingResponse{Reason: string(res.Reason)})
		return
	}
	item := toAssignmentItem(res.Assignment)
	writeJSON(w, http.StatusCreated, createBookingResponse{Confirmed: true, Assignment: &item})
}

func (h *BookingHandler) list(w http.ResponseWriter, r *http.Request) {
	providerID := strings.TrimSpace(r.URL.Query().Get("provider_id"))
	assignments, err := h.assignments.ListAssignments(r.Context(), providerID)
	if err != nil {
		h.logger.Error("list assignments failed", "err", err)
		http.Error(w, "failed to list bookings", http.StatusServiceUnavailable)
		return
	}

	items := make([]assignmentItem, 0, len(assignments))
	for _, a := range assignments {
		items = append(items, toAssignmentItem(a))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *BookingHandler) lookupProvider(ctx context.Context, w http.ResponseWriter, id string) (model.Provider, bool) {
	p, err := h.providers.GetProvider(ctx, id)
	if err == nil {
		return p, true
	}
	if errors.Is(err, booking.ErrProviderNotFound) {
		http.Error(w, "provider not found", http.StatusNotFound)
		return model.Provider{}, false
	}
	h.logger.Error("provider lookup failed", "provider_id", id, "err", err)
	http.Error(w, "provider lookup failed", http.StatusServiceUnavailable)
	return model.Provider{}, false
}

func (h *BookingHandler) parseWindow(dateStr, clockStr string, mins int) (model.Window, error) {
	day, err := time.ParseInLocation(model.DateLayout, strings.TrimSpace(dateStr), h.loc)
	if err != nil {
		return model.Window{}, errors.New("invalid date (want YYYY-MM-DD)")
	}
	c, err := model.ParseClock(clockStr)
	if err != nil {
		return model.Window{}, errors.New("invalid time (want HH:MM)")
	}
	return model.Window{Start: c.On(day, 0), DurationMinutes: mins}, nil
}

// resolveDuration prefers an explicit minute count and falls back to the free-text
// description.
func resolveDuration(minutesRaw, description string) (int, error) {
	if v := strings.TrimSpace(minutesRaw); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxDurationMinutes {
			return 0, fmt.Errorf("invalid duration_minutes")
		}
		return n, nil
	}
	if n := duration.ResolveMinutes(description); n <= maxDurationMinutes {
		return n, nil
	}
	return 0, fmt.Errorf("invalid duration")
}

func toAssignmentItem(a model.Assignment) assignmentItem {
	return assignmentItem{
		AssignmentID:    a.ID,
		ProviderID:      a.ProviderRef(),
		ServiceID:       a.ServiceID(),
		Date:            a.Date,
		TimeSlot:        a.TimeSlot,
		DurationMinutes: a.DurationMinutes,
		CustomerName:    a.CustomerName,
		Notes:           a.Notes,
		CreatedAt:       a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
