package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yordan-p/slotledger/internal/availability"
	"github.com/yordan-p/slotledger/internal/booking"
	"github.com/yordan-p/slotledger/internal/model"
	"github.com/yordan-p/slotledger/internal/storage"
)

// ScheduleAdminHandler lets providers maintain both availability
// representations plus manual blocks. All operations require the provider
// identity headers.
type ScheduleAdminHandler struct {
	schedules *storage.ScheduleRepository
	svc       *booking.Service
	logger    *slog.Logger
}

func NewScheduleAdminHandler(schedules *storage.ScheduleRepository, svc *booking.Service, logger *slog.Logger) *ScheduleAdminHandler {
	return &ScheduleAdminHandler{schedules: schedules, svc: svc, logger: logger}
}

func (h *ScheduleAdminHandler) provider(w http.ResponseWriter, r *http.Request) (model.ProviderRef, bool) {
	actor := actorFromRequest(r)
	if actor.Provider.IsZero() {
		http.Error(w, "provider identity headers required", http.StatusBadRequest)
		return model.ProviderRef{}, false
	}
	return actor.Provider, true
}

type weeklyWindowItem struct {
	Weekday int    `json:"weekday"`
	Start   string `json:"start"`
	End     string `json:"end"`
	Active  bool   `json:"active"`
}

// Weekly routes /api/v1/schedule/weekly: GET lists the legacy representation,
// PUT upserts one weekday window.
func (h *ScheduleAdminHandler) Weekly(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.provider(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		windows, err := h.schedules.ListWeeklyWindows(r.Context(), provider)
		if err != nil {
			writeError(w, err)
			return
		}
		items := make([]weeklyWindowItem, 0, len(windows))
		for _, win := range windows {
			items = append(items, weeklyWindowItem{
				Weekday: win.Weekday,
				Start:   availability.FormatClock(win.StartMinute),
				End:     availability.FormatClock(win.EndMinute),
				Active:  win.Active,
			})
		}
		writeJSON(w, http.StatusOK, items)

	case http.MethodPut:
		var req weeklyWindowItem
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		if req.Weekday < 0 || req.Weekday > 6 {
			http.Error(w, "weekday must be 0 (Sunday) through 6", http.StatusBadRequest)
			return
		}
		start, startOK := parseClockParam(req.Start)
		end, endOK := parseClockParam(req.End)
		if !startOK || !endOK || end <= start {
			http.Error(w, "invalid window times", http.StatusBadRequest)
			return
		}
		if err := h.schedules.UpsertWeeklyWindow(r.Context(), model.WeeklyWindow{
			Provider:    provider,
			Weekday:     req.Weekday,
			StartMinute: start,
			EndMinute:   end,
			Active:      req.Active,
		}); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type dayScheduleItem struct {
	Weekday   int         `json:"weekday"`
	Available bool        `json:"available"`
	Windows   []rangeItem `json:"windows"`
	Breaks    []rangeItem `json:"breaks"`
}

// Days routes /api/v1/schedule/days: GET returns all seven weekdays of the
// newer representation, PUT replaces one weekday wholesale.
func (h *ScheduleAdminHandler) Days(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.provider(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		items := make([]dayScheduleItem, 0, 7)
		for weekday := 0; weekday < 7; weekday++ {
			detail, found, err := h.schedules.DayScheduleDetail(r.Context(), provider, weekday)
			if err != nil {
				writeError(w, err)
				return
			}
			item := dayScheduleItem{Weekday: weekday, Windows: []rangeItem{}, Breaks: []rangeItem{}}
			if found {
				item.Available = detail.Schedule.Available
				for _, win := range detail.Windows {
					if win.Active {
						item.Windows = append(item.Windows, rangeItem{
							Start: availability.FormatClock(win.StartMinute),
							End:   availability.FormatClock(win.EndMinute),
						})
					}
				}
				for _, brk := range detail.Breaks {
					if brk.Active {
						item.Breaks = append(item.Breaks, rangeItem{
							Start: availability.FormatClock(brk.StartMinute),
							End:   availability.FormatClock(brk.EndMinute),
						})
					}
				}
			}
			items = append(items, item)
		}
		writeJSON(w, http.StatusOK, items)

	case http.MethodPut:
		var req dayScheduleItem
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		if req.Weekday < 0 || req.Weekday > 6 {
			http.Error(w, "weekday must be 0 (Sunday) through 6", http.StatusBadRequest)
			return
		}
		windows := make([]model.TimeWindow, 0, len(req.Windows))
		for _, item := range req.Windows {
			start, startOK := parseClockParam(item.Start)
			end, endOK := parseClockParam(item.End)
			if !startOK || !endOK || end <= start {
				http.Error(w, "invalid window times", http.StatusBadRequest)
				return
			}
			windows = append(windows, model.TimeWindow{StartMinute: start, EndMinute: end, Active: true})
		}
		breaks := make([]model.BreakWindow, 0, len(req.Breaks))
		for _, item := range req.Breaks {
			start, startOK := parseClockParam(item.Start)
			end, endOK := parseClockParam(item.End)
			if !startOK || !endOK || end <= start {
				http.Error(w, "invalid break times", http.StatusBadRequest)
				return
			}
			breaks = append(breaks, model.BreakWindow{StartMinute: start, EndMinute: end, Active: true})
		}
		if err := h.schedules.ReplaceDaySchedule(r.Context(), provider, req.Weekday, req.Available, windows, breaks); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type blockRequest struct {
	BlockID string `json:"block_id,omitempty"`
	Day     string `json:"day,omitempty"`
	Start   string `json:"start,omitempty"`
	End     string `json:"end,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Note    string `json:"note,omitempty"`
}

type blockResponse struct {
	BlockID string `json:"block_id"`
	Day     string `json:"day"`
	Start   string `json:"start"`
	End     string `json:"end"`
	Reason  string `json:"reason"`
	Note    string `json:"note,omitempty"`
}

// Blocks routes /api/v1/schedule/blocks: POST adds a manual block, DELETE
// removes one by id.
func (h *ScheduleAdminHandler) Blocks(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.provider(w, r)
	if !ok {
		return
	}
	actor := actorFromRequest(r)

	switch r.Method {
	case http.MethodPost:
		var req blockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		day, dayOK := parseDayParam(req.Day)
		start, startOK := parseClockParam(req.Start)
		end, endOK := parseClockParam(req.End)
		if !dayOK || !startOK || !endOK {
			http.Error(w, "invalid day or times", http.StatusBadRequest)
			return
		}
		block, err := h.svc.AddBlock(r.Context(), actor, provider, day, start, end, strings.ToUpper(strings.TrimSpace(req.Reason)), strings.TrimSpace(req.Note))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, blockResponse{
			BlockID: block.ID,
			Day:     availability.FormatDay(block.Day),
			Start:   availability.FormatClock(block.StartMinute),
			End:     availability.FormatClock(block.EndMinute),
			Reason:  block.Reason,
			Note:    block.Note,
		})

	case http.MethodDelete:
		var req blockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.BlockID) == "" {
			http.Error(w, "block_id required", http.StatusBadRequest)
			return
		}
		if err := h.svc.RemoveBlock(r.Context(), actor, provider, strings.TrimSpace(req.BlockID)); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
