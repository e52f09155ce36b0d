// Package handlers is the engine's HTTP boundary. Requests carry clock times
// as "HH:MM" strings and dates as "YYYY-MM-DD"; the gateway in front injects
// the acting identity through X-Client-Id / X-Provider-Kind / X-Provider-Id.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yordan-p/slotledger/internal/availability"
	"github.com/yordan-p/slotledger/internal/booking"
	"github.com/yordan-p/slotledger/internal/model"
)

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

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps the booking error taxonomy onto HTTP statuses. Anything
// unrecognized is a 500 with a generic body; the real error goes to the log
// at the access-log layer.
func writeError(w http.ResponseWriter, err error) {
	var (
		validation *booking.ValidationError
		conflict   *booking.ConflictError
		capacity   *booking.CapacityExhaustedError
		notFound   *booking.NotFoundError
		permission *booking.PermissionError
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validation.Msg})
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: notFound.Error()})
	case errors.As(err, &permission):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: permission.Msg})
	case errors.As(err, &capacity):
		writeJSON(w, http.StatusConflict, errorResponse{Error: capacity.Error()})
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: conflict.Reason})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// actorFromRequest parses the gateway-injected identity headers. Both sides
// may be present when a provider acts as a client.
func actorFromRequest(r *http.Request) booking.Actor {
	actor := booking.Actor{
		ClientID: strings.TrimSpace(r.Header.Get("X-Client-Id")),
	}
	kind := model.ProviderKind(strings.TrimSpace(r.Header.Get("X-Provider-Kind")))
	id := strings.TrimSpace(r.Header.Get("X-Provider-Id"))
	if kind.Valid() && id != "" {
		actor.Provider = model.ProviderRef{Kind: kind, ID: id}
	}
	return actor
}

func providerFromQuery(r *http.Request) (model.ProviderRef, bool) {
	ref := model.ProviderRef{
		Kind: model.ProviderKind(strings.TrimSpace(r.URL.Query().Get("provider_kind"))),
		ID:   strings.TrimSpace(r.URL.Query().Get("provider_id")),
	}
	return ref, ref.Kind.Valid() && ref.ID != ""
}

func parseDayParam(raw string) (time.Time, bool) {
	day, err := availability.ParseDay(raw)
	return day, err == nil
}

func parseClockParam(raw string) (int, bool) {
	minute, err := availability.ParseClock(raw)
	return minute, err == nil
}

func parseLimit(r *http.Request) int {
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	return limit
}

type rangeItem struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func rangeItems(ranges []availability.TimeRange) []rangeItem {
	out := make([]rangeItem, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, rangeItem{
			Start: availability.FormatClock(r.StartMinute),
			End:   availability.FormatClock(r.EndMinute),
		})
	}
	return out
}

type reservationItem struct {
	ReservationID   string `json:"reservation_id"`
	ClientID        string `json:"client_id"`
	ProviderKind    string `json:"provider_kind"`
	ProviderID      string `json:"provider_id"`
	ServiceName     string `json:"service_name"`
	Day             string `json:"day"`
	Start           string `json:"start"`
	End             string `json:"end"`
	DurationMinutes int    `json:"duration_minutes"`
	Status          string `json:"status"`
	GroupSessionID  string `json:"group_session_id,omitempty"`
	Notes           string `json:"notes,omitempty"`
	CancelReason    string `json:"cancel_reason,omitempty"`
	CancelledAt     string `json:"cancelled_at,omitempty"`
	CreatedAt       string `json:"created_at"`
}

func reservationToItem(res model.Reservation) reservationItem {
	item := reservationItem{
		ReservationID:   res.ID,
		ClientID:        res.ClientID,
		ProviderKind:    string(res.Provider.Kind),
		ProviderID:      res.Provider.ID,
		ServiceName:     res.ServiceName,
		Day:             availability.FormatDay(res.Day),
		Start:           availability.FormatClock(res.StartMinute),
		End:             availability.FormatClock(res.EndMinute()),
		DurationMinutes: res.DurationMinutes,
		Status:          res.Status,
		Notes:           res.Notes,
		CancelReason:    res.CancelReason,
		CreatedAt:       res.CreatedAt.UTC().Format(time.RFC3339),
	}
	if res.GroupSessionID != nil {
		item.GroupSessionID = *res.GroupSessionID
	}
	if res.CancelledAt != nil {
		item.CancelledAt = res.CancelledAt.UTC().Format(time.RFC3339)
	}
	return item
}
