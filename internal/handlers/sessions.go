package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yordan-p/slotledger/internal/availability"
	"github.com/yordan-p/slotledger/internal/booking"
	"github.com/yordan-p/slotledger/internal/model"
)

type SessionHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewSessionHandler(svc *booking.Service, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{svc: svc, logger: logger}
}

type sessionItem struct {
	SessionID       string `json:"session_id"`
	ProviderKind    string `json:"provider_kind"`
	ProviderID      string `json:"provider_id"`
	ServiceName     string `json:"service_name"`
	Day             string `json:"day"`
	Start           string `json:"start"`
	End             string `json:"end"`
	DurationMinutes int    `json:"duration_minutes"`
	Capacity        int    `json:"capacity"`
	BookedSlots     int    `json:"booked_slots"`
	Remaining       int    `json:"remaining"`
	Status          string `json:"status"`
}

func sessionToItem(s model.GroupSession) sessionItem {
	return sessionItem{
		SessionID:       s.ID,
		ProviderKind:    string(s.Provider.Kind),
		ProviderID:      s.Provider.ID,
		ServiceName:     s.ServiceName,
		Day:             availability.FormatDay(s.Day),
		Start:           availability.FormatClock(s.StartMinute),
		End:             availability.FormatClock(s.StartMinute + s.DurationMinutes),
		DurationMinutes: s.DurationMinutes,
		Capacity:        s.Capacity,
		BookedSlots:     s.BookedSlots,
		Remaining:       s.Remaining(),
		Status:          s.Status,
	}
}

type createSessionRequest struct {
	ServiceName     string `json:"service_name"`
	Day             string `json:"day"`
	Start           string `json:"start"`
	DurationMinutes int    `json:"duration_minutes"`
	Capacity        int    `json:"capacity"`
}

// Handle routes /api/v1/sessions: POST creates (provider), GET lists.
func (h *SessionHandler) Handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SessionHandler) create(w http.ResponseWriter, r *http.Request) {
	actor := actorFromRequest(r)
	if actor.Provider.IsZero() {
		http.Error(w, "provider identity headers required", http.StatusBadRequest)
		return
	}

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	day, ok := parseDayParam(req.Day)
	if !ok {
		http.Error(w, "invalid day", http.StatusBadRequest)
		return
	}
	start, ok := parseClockParam(req.Start)
	if !ok {
		http.Error(w, "invalid start", http.StatusBadRequest)
		return
	}

	sess, err := h.svc.CreateSession(r.Context(), actor, booking.CreateSessionRequest{
		Provider:        actor.Provider,
		ServiceName:     strings.TrimSpace(req.ServiceName),
		Day:             day,
		StartMinute:     start,
		DurationMinutes: req.DurationMinutes,
		Capacity:        req.Capacity,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionToItem(sess))
}

func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	provider, ok := providerFromQuery(r)
	if !ok {
		actor := actorFromRequest(r)
		if actor.Provider.IsZero() {
			http.Error(w, "provider_kind and provider_id required", http.StatusBadRequest)
			return
		}
		provider = actor.Provider
	}

	sessions, err := h.svc.ListSessions(r.Context(), provider, parseLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]sessionItem, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, sessionToItem(s))
	}
	writeJSON(w, http.StatusOK, items)
}

type reserveSessionRequest struct {
	SessionID string `json:"session_id"`
	Notes     string `json:"notes,omitempty"`
}

// Reserve consumes one seat: POST /api/v1/sessions/reserve.
func (h *SessionHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor := actorFromRequest(r)
	if actor.ClientID == "" {
		http.Error(w, "X-Client-Id required", http.StatusBadRequest)
		return
	}

	var req reserveSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		http.Error(w, "session_id required", http.StatusBadRequest)
		return
	}

	res, err := h.svc.Create(r.Context(), booking.CreateRequest{
		ClientID:       actor.ClientID,
		GroupSessionID: strings.TrimSpace(req.SessionID),
		Notes:          strings.TrimSpace(req.Notes),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reservationToItem(res))
}

type sessionActionRequest struct {
	SessionID string `json:"session_id"`
}

func (h *SessionHandler) sessionAction(w http.ResponseWriter, r *http.Request) (booking.Actor, string, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return booking.Actor{}, "", false
	}
	var req sessionActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return booking.Actor{}, "", false
	}
	id := strings.TrimSpace(req.SessionID)
	if id == "" {
		http.Error(w, "session_id required", http.StatusBadRequest)
		return booking.Actor{}, "", false
	}
	return actorFromRequest(r), id, true
}

func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.sessionAction(w, r)
	if !ok {
		return
	}
	sess, err := h.svc.CancelSession(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionToItem(sess))
}

func (h *SessionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.sessionAction(w, r)
	if !ok {
		return
	}
	sess, err := h.svc.CompleteSession(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionToItem(sess))
}
