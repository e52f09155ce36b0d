package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yordan-p/slotledger/internal/availability"
	"github.com/yordan-p/slotledger/internal/conflict"
	"github.com/yordan-p/slotledger/internal/directory"
	"github.com/yordan-p/slotledger/internal/model"
	"github.com/yordan-p/slotledger/internal/outbox"
	"github.com/yordan-p/slotledger/internal/storage"
)

// CustomService is a one-off service described inline by the client instead of
// resolved from the directory.
type CustomService struct {
	Provider        model.ProviderRef
	ServiceName     string
	DurationMinutes int
}

// CreateRequest books a slot. Exactly one of Service, Custom or GroupSessionID
// selects what is being booked.
type CreateRequest struct {
	ClientID       string
	Service        *model.ServiceRef
	Custom         *CustomService
	GroupSessionID string
	Day            time.Time
	StartMinute    int
	Notes          string
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (model.Reservation, error) {
	if req.ClientID == "" {
		return model.Reservation{}, validationf("client id is required")
	}
	selected := 0
	for _, set := range []bool{req.Service != nil, req.Custom != nil, req.GroupSessionID != ""} {
		if set {
			selected++
		}
	}
	if selected != 1 {
		return model.Reservation{}, validationf("exactly one of service, custom service or group session must be given")
	}

	if req.GroupSessionID != "" {
		return s.joinSession(ctx, req)
	}

	provider, serviceName, duration, err := s.resolveTarget(ctx, req)
	if err != nil {
		return model.Reservation{}, err
	}
	if provider.OwnerUserID != "" && provider.OwnerUserID == req.ClientID {
		return model.Reservation{}, &PermissionError{Msg: "providers cannot book their own services"}
	}
	if req.StartMinute < 0 || duration <= 0 {
		return model.Reservation{}, validationf("invalid time range")
	}

	snap, err := s.snapshot(ctx, provider.Ref, req.Day, "", true)
	if err != nil {
		return model.Reservation{}, err
	}
	ok, reason := conflict.Check(s.now(), conflict.Candidate{
		Day:             req.Day,
		StartMinute:     req.StartMinute,
		DurationMinutes: duration,
	}, snap)
	if !ok {
		return model.Reservation{}, &ConflictError{Reason: reason}
	}

	res := model.Reservation{
		ID:              uuid.NewString(),
		ClientID:        req.ClientID,
		Provider:        provider.Ref,
		ServiceName:     serviceName,
		Day:             req.Day,
		StartMinute:     req.StartMinute,
		DurationMinutes: duration,
		Status:          model.ReservationConfirmed,
		Notes:           req.Notes,
	}

	tx, err := s.reservations.Begin(ctx)
	if err != nil {
		return model.Reservation{}, err
	}
	defer tx.Rollback(ctx)

	if err := s.reservations.Create(ctx, tx, &res); err != nil {
		return model.Reservation{}, err
	}
	if err := s.ledger.InsertBookedRange(ctx, tx, res.ID, res.Provider, res.Day, res.StartMinute, res.EndMinute()); err != nil {
		// Someone else took the range between the pre-check and here; the
		// exclusion constraint caught it.
		if storage.IsConflict(err) {
			return model.Reservation{}, &ConflictError{Reason: "Time slot is no longer available"}
		}
		return model.Reservation{}, err
	}
	if err := s.emit(ctx, tx, outbox.EventReservationConfirmed, res); err != nil {
		return model.Reservation{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Reservation{}, err
	}

	s.logger.Info("reservation created",
		"reservation_id", res.ID, "provider_kind", res.Provider.Kind, "provider_id", res.Provider.ID,
		"day", res.Day.Format("2006-01-02"), "start_minute", res.StartMinute)
	return res, nil
}

func (s *Service) resolveTarget(ctx context.Context, req CreateRequest) (model.Provider, string, int, error) {
	if req.Custom != nil {
		c := req.Custom
		if c.ServiceName == "" {
			return model.Provider{}, "", 0, validationf("custom service name is required")
		}
		if c.DurationMinutes <= 0 {
			return model.Provider{}, "", 0, validationf("custom service duration must be positive")
		}
		provider, err := s.resolver.ResolveProvider(ctx, c.Provider)
		if err != nil {
			return model.Provider{}, "", 0, mapResolveErr(err, "provider", c.Provider.ID)
		}
		return provider, c.ServiceName, c.DurationMinutes, nil
	}

	inst, err := s.resolver.ResolveServiceInstance(ctx, *req.Service)
	if err != nil {
		return model.Provider{}, "", 0, mapResolveErr(err, "service", req.Service.ID)
	}
	return inst.Provider, inst.ServiceName, inst.DurationMinutes, nil
}

func mapResolveErr(err error, kind, id string) error {
	if errors.Is(err, directory.ErrProviderNotFound) {
		return &NotFoundError{Kind: "provider", ID: id}
	}
	if errors.Is(err, directory.ErrServiceNotFound) {
		return &NotFoundError{Kind: "service", ID: id}
	}
	return fmt.Errorf("resolve %s %s: %w", kind, id, err)
}

// joinSession consumes one seat on a group session inside the reservation
// transaction. The guarded seat update is the race protection; no ledger row
// is written because the session already occupies the range.
func (s *Service) joinSession(ctx context.Context, req CreateRequest) (model.Reservation, error) {
	sess, err := s.sessions.Get(ctx, req.GroupSessionID)
	if err != nil {
		return model.Reservation{}, mapNotFound(err, "group session", req.GroupSessionID)
	}
	if sess.Status != model.SessionActive {
		return model.Reservation{}, &ConflictError{Reason: "Group session is no longer active"}
	}
	provider, err := s.resolver.ResolveProvider(ctx, sess.Provider)
	if err != nil {
		return model.Reservation{}, mapResolveErr(err, "provider", sess.Provider.ID)
	}
	if provider.OwnerUserID != "" && provider.OwnerUserID == req.ClientID {
		return model.Reservation{}, &PermissionError{Msg: "providers cannot book their own services"}
	}
	now := s.now()
	if inPastSlot(now, sess.Day, sess.StartMinute) {
		return model.Reservation{}, &ConflictError{Reason: conflict.ReasonPast}
	}
	if sess.Remaining() <= 0 {
		return model.Reservation{}, &CapacityExhaustedError{SessionID: sess.ID}
	}

	sessionID := sess.ID
	res := model.Reservation{
		ID:              uuid.NewString(),
		ClientID:        req.ClientID,
		Provider:        sess.Provider,
		ServiceName:     sess.ServiceName,
		Day:             sess.Day,
		StartMinute:     sess.StartMinute,
		DurationMinutes: sess.DurationMinutes,
		Status:          model.ReservationConfirmed,
		GroupSessionID:  &sessionID,
		Notes:           req.Notes,
	}

	tx, err := s.reservations.Begin(ctx)
	if err != nil {
		return model.Reservation{}, err
	}
	defer tx.Rollback(ctx)

	ok, err := s.sessions.ReserveSeat(ctx, tx, sess.ID)
	if err != nil {
		return model.Reservation{}, err
	}
	if !ok {
		// Lost the race: either the last seat went to someone else or the
		// session was cancelled since the read above.
		return model.Reservation{}, &CapacityExhaustedError{SessionID: sess.ID}
	}
	if err := s.reservations.Create(ctx, tx, &res); err != nil {
		return model.Reservation{}, err
	}
	if err := s.emit(ctx, tx, outbox.EventSessionSeatReserved, res); err != nil {
		return model.Reservation{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Reservation{}, err
	}

	s.logger.Info("group session seat reserved",
		"reservation_id", res.ID, "session_id", sess.ID, "client_id", req.ClientID)
	return res, nil
}

func inPastSlot(now, day time.Time, startMinute int) bool {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	d := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	if d.Before(today) {
		return true
	}
	return d.Equal(today) && startMinute < availability.MinuteOfDay(now)
}
