package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yordan-p/slotledger/internal/conflict"
	"github.com/yordan-p/slotledger/internal/model"
	"github.com/yordan-p/slotledger/internal/outbox"
	"github.com/yordan-p/slotledger/internal/storage"
)

// Cancel releases a reservation's slot. The owning client or the provider may
// cancel; a second cancel of the same reservation fails without touching
// anything.
func (s *Service) Cancel(ctx context.Context, actor Actor, id, reason string) (model.Reservation, error) {
	return s.release(ctx, actor, id, reason, model.ReservationCancelled)
}

// Reject is the provider declining a pending reservation.
func (s *Service) Reject(ctx context.Context, actor Actor, id, reason string) (model.Reservation, error) {
	res, err := s.reservations.Get(ctx, id)
	if err != nil {
		return model.Reservation{}, mapNotFound(err, "reservation", id)
	}
	if !actor.ownsProvider(res.Provider) {
		return model.Reservation{}, &PermissionError{Msg: "only the provider can reject a reservation"}
	}
	if res.Status != model.ReservationPending {
		return model.Reservation{}, &ConflictError{Reason: "only pending reservations can be rejected"}
	}
	return s.release(ctx, actor, id, reason, model.ReservationRejected)
}

func (s *Service) release(ctx context.Context, actor Actor, id, reason, toStatus string) (model.Reservation, error) {
	tx, err := s.reservations.Begin(ctx)
	if err != nil {
		return model.Reservation{}, err
	}
	defer tx.Rollback(ctx)

	res, err := s.reservations.GetForUpdate(ctx, tx, id)
	if err != nil {
		return model.Reservation{}, mapNotFound(err, "reservation", id)
	}
	if actor.ClientID != res.ClientID && !actor.ownsProvider(res.Provider) {
		return model.Reservation{}, &PermissionError{Msg: "reservation belongs to another client"}
	}
	if res.Terminal() {
		return model.Reservation{}, &ConflictError{
			Reason: fmt.Sprintf("Reservation is already %s", strings.ToLower(res.Status)),
		}
	}

	at, err := s.reservations.SetStatus(ctx, tx, id, toStatus, reason)
	if err != nil {
		return model.Reservation{}, err
	}

	if res.GroupSessionID != nil {
		// Seat-backed: return the seat, there is no owned ledger row.
		if err := s.sessions.ReleaseSeat(ctx, tx, *res.GroupSessionID); err != nil {
			return model.Reservation{}, err
		}
	} else if _, err := s.ledger.DeleteByReservation(ctx, tx, id); err != nil {
		return model.Reservation{}, err
	}

	eventType := outbox.EventReservationCancelled
	if toStatus == model.ReservationRejected {
		eventType = outbox.EventReservationRejected
	}
	res.Status = toStatus
	res.CancelReason = reason
	res.CancelledAt = &at
	if err := s.emit(ctx, tx, eventType, res); err != nil {
		return model.Reservation{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Reservation{}, err
	}

	s.logger.Info("reservation released", "reservation_id", id, "status", toStatus, "reason", reason)
	return res, nil
}

// Complete marks a confirmed reservation as delivered. The ledger row stays:
// the provider's time was genuinely spent.
func (s *Service) Complete(ctx context.Context, actor Actor, id string) (model.Reservation, error) {
	tx, err := s.reservations.Begin(ctx)
	if err != nil {
		return model.Reservation{}, err
	}
	defer tx.Rollback(ctx)

	res, err := s.reservations.GetForUpdate(ctx, tx, id)
	if err != nil {
		return model.Reservation{}, mapNotFound(err, "reservation", id)
	}
	if !actor.ownsProvider(res.Provider) {
		return model.Reservation{}, &PermissionError{Msg: "only the provider can complete a reservation"}
	}
	if res.Status != model.ReservationConfirmed {
		return model.Reservation{}, &ConflictError{Reason: "only confirmed reservations can be completed"}
	}

	if _, err := s.reservations.SetStatus(ctx, tx, id, model.ReservationCompleted, ""); err != nil {
		return model.Reservation{}, err
	}
	res.Status = model.ReservationCompleted
	if err := s.emit(ctx, tx, outbox.EventReservationCompleted, res); err != nil {
		return model.Reservation{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Reservation{}, err
	}
	return res, nil
}

// RescheduleRequest moves an open reservation to a new slot. Same day and
// start means a notes-only update with no conflict check.
type RescheduleRequest struct {
	ReservationID string
	Day           time.Time
	StartMinute   int
	Notes         string
}

func (s *Service) Reschedule(ctx context.Context, actor Actor, req RescheduleRequest) (model.Reservation, error) {
	res, err := s.reservations.Get(ctx, req.ReservationID)
	if err != nil {
		return model.Reservation{}, mapNotFound(err, "reservation", req.ReservationID)
	}
	if actor.ClientID != res.ClientID && !actor.ownsProvider(res.Provider) {
		return model.Reservation{}, &PermissionError{Msg: "reservation belongs to another client"}
	}
	if !res.Open() {
		return model.Reservation{}, &ConflictError{Reason: "only open reservations can be rescheduled"}
	}
	if res.GroupSessionID != nil {
		return model.Reservation{}, validationf("group session reservations cannot be rescheduled")
	}

	sameSlot := res.Day.Equal(req.Day) && res.StartMinute == req.StartMinute
	if !sameSlot {
		snap, err := s.snapshot(ctx, res.Provider, req.Day, res.ID, true)
		if err != nil {
			return model.Reservation{}, err
		}
		ok, reason := conflict.Check(s.now(), conflict.Candidate{
			Day:             req.Day,
			StartMinute:     req.StartMinute,
			DurationMinutes: res.DurationMinutes,
		}, snap)
		if !ok {
			return model.Reservation{}, &ConflictError{Reason: reason}
		}
	}

	tx, err := s.reservations.Begin(ctx)
	if err != nil {
		return model.Reservation{}, err
	}
	defer tx.Rollback(ctx)

	// Re-read under lock: the reservation may have been cancelled since the
	// unlocked read above.
	res, err = s.reservations.GetForUpdate(ctx, tx, req.ReservationID)
	if err != nil {
		return model.Reservation{}, mapNotFound(err, "reservation", req.ReservationID)
	}
	if !res.Open() {
		return model.Reservation{}, &ConflictError{Reason: "only open reservations can be rescheduled"}
	}

	if err := s.reservations.UpdateSlot(ctx, tx, res.ID, req.Day, req.StartMinute, req.Notes); err != nil {
		return model.Reservation{}, err
	}
	res.Day = req.Day
	res.StartMinute = req.StartMinute
	res.Notes = req.Notes

	if !sameSlot {
		if _, err := s.ledger.DeleteByReservation(ctx, tx, res.ID); err != nil {
			return model.Reservation{}, err
		}
		if err := s.ledger.InsertBookedRange(ctx, tx, res.ID, res.Provider, res.Day, res.StartMinute, res.EndMinute()); err != nil {
			if storage.IsConflict(err) {
				return model.Reservation{}, &ConflictError{Reason: "Time slot is no longer available"}
			}
			return model.Reservation{}, err
		}
		if err := s.emit(ctx, tx, outbox.EventReservationRescheduled, res); err != nil {
			return model.Reservation{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Reservation{}, err
	}

	s.logger.Info("reservation rescheduled",
		"reservation_id", res.ID, "day", res.Day.Format("2006-01-02"), "start_minute", res.StartMinute)
	return res, nil
}

// Destroy hard-deletes a reservation along with its ledger row or seat. Meant
// for client-requested erasure; cancelled history is normally kept.
func (s *Service) Destroy(ctx context.Context, actor Actor, id string) error {
	tx, err := s.reservations.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	res, err := s.reservations.GetForUpdate(ctx, tx, id)
	if err != nil {
		return mapNotFound(err, "reservation", id)
	}
	if actor.ClientID != res.ClientID && !actor.ownsProvider(res.Provider) {
		return &PermissionError{Msg: "reservation belongs to another client"}
	}

	if res.GroupSessionID != nil {
		if res.Open() {
			if err := s.sessions.ReleaseSeat(ctx, tx, *res.GroupSessionID); err != nil {
				return err
			}
		}
	} else if _, err := s.ledger.DeleteByReservation(ctx, tx, id); err != nil {
		// Completed reservations keep a ledger row too; it goes with them.
		return err
	}
	if err := s.reservations.Delete(ctx, tx, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
