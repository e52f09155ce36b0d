package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/yordan-p/slotledger/internal/availability"
	"github.com/yordan-p/slotledger/internal/booking"
)

type AvailabilityHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewAvailabilityHandler(svc *booking.Service, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{svc: svc, logger: logger}
}

type availabilityResponse struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// Check answers GET /api/v1/availability?provider_kind=&provider_id=&day=&start=&duration_minutes=.
func (h *AvailabilityHandler) Check(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	provider, ok := providerFromQuery(r)
	if !ok {
		http.Error(w, "provider_kind and provider_id required", http.StatusBadRequest)
		return
	}
	day, ok := parseDayParam(r.URL.Query().Get("day"))
	if !ok {
		http.Error(w, "invalid day", http.StatusBadRequest)
		return
	}
	start, ok := parseClockParam(r.URL.Query().Get("start"))
	if !ok {
		http.Error(w, "invalid start", http.StatusBadRequest)
		return
	}
	duration, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("duration_minutes")))
	if err != nil || duration <= 0 {
		http.Error(w, "invalid duration_minutes", http.StatusBadRequest)
		return
	}

	dec, err := h.svc.CheckAvailability(r.Context(), booking.CheckRequest{
		Provider:             provider,
		Day:                  day,
		StartMinute:          start,
		DurationMinutes:      duration,
		ExcludeReservationID: strings.TrimSpace(r.URL.Query().Get("exclude_reservation_id")),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, availabilityResponse{Available: dec.Available, Reason: dec.Reason})
}

type scheduleResponse struct {
	ProviderKind string      `json:"provider_kind"`
	ProviderID   string      `json:"provider_id"`
	Day          string      `json:"day"`
	Available    bool        `json:"available"`
	WorkingHours []rangeItem `json:"working_hours"`
	BreakTimes   []rangeItem `json:"break_times"`
	BookedSlots  []rangeItem `json:"booked_slots"`
	ExternalBusy []rangeItem `json:"external_busy"`
	FreeStarts   []string    `json:"free_starts,omitempty"`
}

// Schedule answers GET /api/v1/schedule: the provider's day as a calendar UI
// renders it. duration_minutes (optional) also computes free slot starts.
func (h *AvailabilityHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	provider, ok := providerFromQuery(r)
	if !ok {
		http.Error(w, "provider_kind and provider_id required", http.StatusBadRequest)
		return
	}
	day, ok := parseDayParam(r.URL.Query().Get("day"))
	if !ok {
		http.Error(w, "invalid day", http.StatusBadRequest)
		return
	}

	duration := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("duration_minutes")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > availability.MinutesPerDay {
			http.Error(w, "invalid duration_minutes", http.StatusBadRequest)
			return
		}
		duration = n
	}
	step := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("slot_step_minutes")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 120 {
			http.Error(w, "invalid slot_step_minutes", http.StatusBadRequest)
			return
		}
		step = n
	}

	proj, err := h.svc.ProjectDay(r.Context(), provider, day, duration, step)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := scheduleResponse{
		ProviderKind: string(proj.Provider.Kind),
		ProviderID:   proj.Provider.ID,
		Day:          availability.FormatDay(proj.Day),
		Available:    proj.Available,
		WorkingHours: rangeItems(proj.WorkingHours),
		BreakTimes:   rangeItems(proj.Breaks),
		BookedSlots:  rangeItems(proj.Booked),
		ExternalBusy: rangeItems(proj.ExternalBusy),
	}
	for _, start := range proj.SlotStarts {
		resp.FreeStarts = append(resp.FreeStarts, availability.FormatClock(start))
	}
	writeJSON(w, http.StatusOK, resp)
}
