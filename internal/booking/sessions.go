package booking

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/yordan-p/slotledger/internal/conflict"
	"github.com/yordan-p/slotledger/internal/model"
	"github.com/yordan-p/slotledger/internal/outbox"
	"github.com/yordan-p/slotledger/internal/storage"
)

type CreateSessionRequest struct {
	Provider        model.ProviderRef
	ServiceName     string
	Day             time.Time
	StartMinute     int
	DurationMinutes int
	Capacity        int
}

// CreateSession opens a shared slot. The session occupies its range on the
// ledger like a single booking would, so individual reservations cannot
// overlap it; clients then consume seats instead of ranges.
func (s *Service) CreateSession(ctx context.Context, actor Actor, req CreateSessionRequest) (model.GroupSession, error) {
	if !actor.ownsProvider(req.Provider) {
		return model.GroupSession{}, &PermissionError{Msg: "only the provider can create a group session"}
	}
	if req.ServiceName == "" {
		return model.GroupSession{}, validationf("service name is required")
	}
	if req.Capacity < 1 {
		return model.GroupSession{}, validationf("capacity must be at least 1")
	}
	if req.StartMinute < 0 || req.DurationMinutes <= 0 {
		return model.GroupSession{}, validationf("invalid time range")
	}

	snap, err := s.snapshot(ctx, req.Provider, req.Day, "", false)
	if err != nil {
		return model.GroupSession{}, err
	}
	ok, reason := conflict.Check(s.now(), conflict.Candidate{
		Day:             req.Day,
		StartMinute:     req.StartMinute,
		DurationMinutes: req.DurationMinutes,
	}, snap)
	if !ok {
		return model.GroupSession{}, &ConflictError{Reason: reason}
	}

	sess := model.GroupSession{
		ID:              uuid.NewString(),
		Provider:        req.Provider,
		ServiceName:     req.ServiceName,
		Day:             req.Day,
		StartMinute:     req.StartMinute,
		DurationMinutes: req.DurationMinutes,
		Capacity:        req.Capacity,
		Status:          model.SessionActive,
	}

	tx, err := s.reservations.Begin(ctx)
	if err != nil {
		return model.GroupSession{}, err
	}
	defer tx.Rollback(ctx)

	if err := s.ledger.InsertSessionRange(ctx, tx, sess.Provider, sess.Day, sess.StartMinute, sess.StartMinute+sess.DurationMinutes, "group session "+sess.ID); err != nil {
		if storage.IsConflict(err) {
			return model.GroupSession{}, &ConflictError{Reason: "Time slot is no longer available"}
		}
		return model.GroupSession{}, err
	}

	payload, _ := json.Marshal(map[string]any{
		"session_id":       sess.ID,
		"provider_kind":    sess.Provider.Kind,
		"provider_id":      sess.Provider.ID,
		"service_name":     sess.ServiceName,
		"day":              sess.Day.Format("2006-01-02"),
		"start_minute":     sess.StartMinute,
		"duration_minutes": sess.DurationMinutes,
		"capacity":         sess.Capacity,
	})
	if err := s.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "group_session",
		AggregateID:   sess.ID,
		EventType:     outbox.EventSessionCreated,
		Payload:       payload,
	}); err != nil {
		return model.GroupSession{}, err
	}
	if err := s.sessions.Create(ctx, tx, &sess); err != nil {
		return model.GroupSession{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.GroupSession{}, err
	}

	s.logger.Info("group session created",
		"session_id", sess.ID, "day", sess.Day.Format("2006-01-02"), "capacity", sess.Capacity)
	return sess, nil
}

// CancelSession closes an active session and frees its ledger range. Seats
// already taken stay as individual reservations; their owners cancel them.
func (s *Service) CancelSession(ctx context.Context, actor Actor, id string) (model.GroupSession, error) {
	return s.closeSession(ctx, actor, id, model.SessionCancelled, true)
}

// CompleteSession marks a delivered session. Its ledger range stays.
func (s *Service) CompleteSession(ctx context.Context, actor Actor, id string) (model.GroupSession, error) {
	return s.closeSession(ctx, actor, id, model.SessionCompleted, false)
}

func (s *Service) closeSession(ctx context.Context, actor Actor, id, toStatus string, freeRange bool) (model.GroupSession, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return model.GroupSession{}, mapNotFound(err, "group session", id)
	}
	if !actor.ownsProvider(sess.Provider) {
		return model.GroupSession{}, &PermissionError{Msg: "only the provider can manage a group session"}
	}

	// Status flip and range delete commit together: a failed delete must not
	// leave a closed session still occupying the slot.
	tx, err := s.reservations.Begin(ctx)
	if err != nil {
		return model.GroupSession{}, err
	}
	defer tx.Rollback(ctx)

	ok, err := s.sessions.SetStatus(ctx, tx, id, toStatus)
	if err != nil {
		return model.GroupSession{}, err
	}
	if !ok {
		return model.GroupSession{}, &ConflictError{Reason: "Group session is no longer active"}
	}
	sess.Status = toStatus

	if freeRange {
		if _, err := s.ledger.DeleteSessionRange(ctx, tx, sess.Provider, sess.Day, sess.StartMinute, sess.StartMinute+sess.DurationMinutes); err != nil {
			return model.GroupSession{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return model.GroupSession{}, err
	}

	s.logger.Info("group session closed", "session_id", id, "status", toStatus)
	return sess, nil
}

func (s *Service) GetSession(ctx context.Context, id string) (model.GroupSession, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return model.GroupSession{}, mapNotFound(err, "group session", id)
	}
	return sess, nil
}

func (s *Service) ListSessions(ctx context.Context, provider model.ProviderRef, limit int) ([]model.GroupSession, error) {
	return s.sessions.ListByProvider(ctx, provider, limit)
}
