package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/ritebook/services/booking-service/internal/model"
)

type shiftItem struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type providerRequest struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Location    string      `json:"location"`
	Services    []string    `json:"services"`
	WorkingDays []int       `json:"working_days"`
	Shifts      []shiftItem `json:"shifts"`
	OffDates    []string    `json:"off_dates"`
}

// Providers upserts a provider schedule (PUT).
func (h *BookingHandler) Providers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req providerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	p, err := req.toProvider()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.providers.SaveProvider(r.Context(), p); err != nil {
		h.logger.Error("save provider failed", "provider_id", p.ID, "err", err)
		http.Error(w, "failed to save provider", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (req providerRequest) toProvider() (model.Provider, error) {
	p := model.Provider{
		ID:       strings.TrimSpace(req.ID),
		Name:     strings.TrimSpace(req.Name),
		Location: strings.TrimSpace(req.Location),
	}
	if p.ID == "" {
		return model.Provider{}, fmt.Errorf("id is required")
	}

	for _, svc := range req.Services {
		if svc = strings.TrimSpace(svc); svc != "" {
			p.Services = append(p.Services, svc)
		}
	}
	for _, d := range req.WorkingDays {
		if d < 0 || d > 6 {
			return model.Provider{}, fmt.Errorf("working_days must be 0 (Sunday) to 6 (Saturday)")
		}
		p.WorkingDays = append(p.WorkingDays, time.Weekday(d))
	}
	for i, s := range req.Shifts {
		start, err := model.ParseClock(s.Start)
		if err != nil {
			return model.Provider{}, fmt.Errorf("shifts[%d].start: %w", i, err)
		}
		end, err := model.ParseClock(s.End)
		if err != nil {
			return model.Provider{}, fmt.Errorf("shifts[%d].end: %w", i, err)
		}
		p.WorkShifts = append(p.WorkShifts, model.Shift{Start: start, End: end})
	}
	for _, d := range req.OffDates {
		d = strings.TrimSpace(d)
		if _, err := time.Parse(model.DateLayout, d); err != nil {
			return model.Provider{}, fmt.Errorf("off_dates: invalid date %q", d)
		}
		p.OffDates = append(p.OffDates, d)
	}
	return p, nil
}
