package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yordan-p/slotledger/internal/booking"
	"github.com/yordan-p/slotledger/internal/model"
)

type ReservationHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewReservationHandler(svc *booking.Service, logger *slog.Logger) *ReservationHandler {
	return &ReservationHandler{svc: svc, logger: logger}
}

type createReservationRequest struct {
	ServiceKind    string `json:"service_kind,omitempty"`
	ServiceID      string `json:"service_id,omitempty"`
	GroupSessionID string `json:"group_session_id,omitempty"`

	// Inline custom service, mutually exclusive with service_kind/service_id.
	ProviderKind    string `json:"provider_kind,omitempty"`
	ProviderID      string `json:"provider_id,omitempty"`
	ServiceName     string `json:"service_name,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`

	Day   string `json:"day"`
	Start string `json:"start"`
	Notes string `json:"notes,omitempty"`
}

// Handle routes /api/v1/reservations: POST creates, GET lists.
func (h *ReservationHandler) Handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ReservationHandler) create(w http.ResponseWriter, r *http.Request) {
	actor := actorFromRequest(r)
	if actor.ClientID == "" {
		http.Error(w, "X-Client-Id required", http.StatusBadRequest)
		return
	}

	var req createReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	create := booking.CreateRequest{
		ClientID:       actor.ClientID,
		GroupSessionID: strings.TrimSpace(req.GroupSessionID),
		Notes:          strings.TrimSpace(req.Notes),
	}

	if create.GroupSessionID == "" {
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
		create.Day = day
		create.StartMinute = start

		switch {
		case req.ServiceID != "":
			kind := model.ServiceKind(strings.TrimSpace(req.ServiceKind))
			if !kind.Valid() {
				http.Error(w, "invalid service_kind", http.StatusBadRequest)
				return
			}
			create.Service = &model.ServiceRef{Kind: kind, ID: strings.TrimSpace(req.ServiceID)}
		default:
			kind := model.ProviderKind(strings.TrimSpace(req.ProviderKind))
			if !kind.Valid() || strings.TrimSpace(req.ProviderID) == "" {
				http.Error(w, "service_id or provider_kind/provider_id required", http.StatusBadRequest)
				return
			}
			create.Custom = &booking.CustomService{
				Provider:        model.ProviderRef{Kind: kind, ID: strings.TrimSpace(req.ProviderID)},
				ServiceName:     strings.TrimSpace(req.ServiceName),
				DurationMinutes: req.DurationMinutes,
			}
		}
	}

	res, err := h.svc.Create(r.Context(), create)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reservationToItem(res))
}

func (h *ReservationHandler) list(w http.ResponseWriter, r *http.Request) {
	actor := actorFromRequest(r)
	limit := parseLimit(r)

	var (
		list []model.Reservation
		err  error
	)
	switch {
	case !actor.Provider.IsZero():
		list, err = h.svc.ListForProvider(r.Context(), actor.Provider, limit)
	case actor.ClientID != "":
		list, err = h.svc.ListForClient(r.Context(), actor.ClientID, limit)
	default:
		http.Error(w, "identity headers required", http.StatusBadRequest)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]reservationItem, 0, len(list))
	for _, res := range list {
		items = append(items, reservationToItem(res))
	}
	writeJSON(w, http.StatusOK, items)
}

type reservationActionRequest struct {
	ReservationID string `json:"reservation_id"`
	Reason        string `json:"reason,omitempty"`

	// Reschedule only.
	Day   string `json:"day,omitempty"`
	Start string `json:"start,omitempty"`
	Notes string `json:"notes,omitempty"`
}

func (h *ReservationHandler) action(w http.ResponseWriter, r *http.Request) (booking.Actor, reservationActionRequest, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return booking.Actor{}, reservationActionRequest{}, false
	}
	var req reservationActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return booking.Actor{}, reservationActionRequest{}, false
	}
	req.ReservationID = strings.TrimSpace(req.ReservationID)
	if req.ReservationID == "" {
		http.Error(w, "reservation_id required", http.StatusBadRequest)
		return booking.Actor{}, reservationActionRequest{}, false
	}
	return actorFromRequest(r), req, true
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, req, ok := h.action(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Cancel(r.Context(), actor, req.ReservationID, strings.TrimSpace(req.Reason))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reservationToItem(res))
}

func (h *ReservationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	actor, req, ok := h.action(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Reject(r.Context(), actor, req.ReservationID, strings.TrimSpace(req.Reason))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reservationToItem(res))
}

func (h *ReservationHandler) Complete(w http.ResponseWriter, r *http.Request) {
	actor, req, ok := h.action(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Complete(r.Context(), actor, req.ReservationID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reservationToItem(res))
}

func (h *ReservationHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	actor, req, ok := h.action(w, r)
	if !ok {
		return
	}
	day, dayOK := parseDayParam(req.Day)
	start, startOK := parseClockParam(req.Start)
	if !dayOK || !startOK {
		http.Error(w, "invalid day or start", http.StatusBadRequest)
		return
	}
	res, err := h.svc.Reschedule(r.Context(), actor, booking.RescheduleRequest{
		ReservationID: req.ReservationID,
		Day:           day,
		StartMinute:   start,
		Notes:         strings.TrimSpace(req.Notes),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reservationToItem(res))
}

func (h *ReservationHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	actor, req, ok := h.action(w, r)
	if !ok {
		return
	}
	if err := h.svc.Destroy(r.Context(), actor, req.ReservationID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
