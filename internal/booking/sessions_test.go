package booking

import (
	"context"
	"errors"
	"testing"

	"github.com/yordan-p/slotledger/internal/conflict"
	"github.com/yordan-p/slotledger/internal/model"
	"github.com/yordan-p/slotledger/internal/outbox"
)

func (e *env) createSession(t *testing.T, capacity int) model.GroupSession {
	t.Helper()
	sess, err := e.svc.CreateSession(context.Background(), Actor{Provider: testRef}, CreateSessionRequest{
		Provider:        testRef,
		ServiceName:     "Yoga class",
		Day:             testDay,
		StartMinute:     600,
		DurationMinutes: 60,
		Capacity:        capacity,
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return sess
}

func (e *env) join(clientID, sessionID string) (model.Reservation, error) {
	return e.svc.Create(context.Background(), CreateRequest{
		ClientID:       clientID,
		GroupSessionID: sessionID,
	})
}

func TestCreateSessionOccupiesRange(t *testing.T) {
	e := newEnv(t)
	sess := e.createSession(t, 5)

	if sess.Status != model.SessionActive || sess.BookedSlots != 0 {
		t.Errorf("session = %+v", sess)
	}
	if len(e.ledger.ranges) != 1 || e.ledger.ranges[0].Reason != model.RangeBooked {
		t.Errorf("ledger = %+v", e.ledger.ranges)
	}
	if e.outbox.lastType() != outbox.EventSessionCreated {
		t.Errorf("event = %s", e.outbox.lastType())
	}

	// The session's range blocks individual bookings.
	ref := model.ServiceRef{Kind: model.ServiceProfessionalOffered, ID: "svc-1"}
	_, err := e.svc.Create(context.Background(), CreateRequest{
		ClientID: testClient, Service: &ref, Day: testDay, StartMinute: 630,
	})
	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflictErr.Reason != conflict.ReasonBooked {
		t.Errorf("reason = %q", conflictErr.Reason)
	}
}

func TestSessionCapacityConservation(t *testing.T) {
	e := newEnv(t)
	sess := e.createSession(t, 2)

	first, err := e.join("client-1", sess.ID)
	if err != nil {
		t.Fatalf("first join: %v", err)
	}
	if first.GroupSessionID == nil || *first.GroupSessionID != sess.ID {
		t.Errorf("reservation not bound to session: %+v", first)
	}
	if first.StartMinute != 600 || first.DurationMinutes != 60 {
		t.Errorf("slot not inherited from session: %+v", first)
	}
	if _, err := e.join("client-2", sess.ID); err != nil {
		t.Fatalf("second join: %v", err)
	}

	_, err = e.join("client-3", sess.ID)
	var exhausted *CapacityExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected CapacityExhaustedError, got %v", err)
	}
	if got := e.sessions.byID[sess.ID].BookedSlots; got != 2 {
		t.Errorf("booked_slots = %d, want 2", got)
	}

	// Cancelling a member frees exactly one seat.
	if _, err := e.svc.Cancel(context.Background(), Actor{ClientID: "client-1"}, first.ID, "cannot make it"); err != nil {
		t.Fatalf("cancel member: %v", err)
	}
	if got := e.sessions.byID[sess.ID].BookedSlots; got != 1 {
		t.Errorf("booked_slots after cancel = %d, want 1", got)
	}
	if _, err := e.join("client-3", sess.ID); err != nil {
		t.Fatalf("rejoin after release: %v", err)
	}
	// Seat-backed reservations never write their own ledger rows.
	if len(e.ledger.ranges) != 1 {
		t.Errorf("ledger = %+v", e.ledger.ranges)
	}
}

func TestJoinOwnSessionRejected(t *testing.T) {
	e := newEnv(t)
	sess := e.createSession(t, 3)

	_, err := e.join("owner-1", sess.ID)
	var perm *PermissionError
	if !errors.As(err, &perm) {
		t.Fatalf("expected PermissionError, got %v", err)
	}
	if got := e.sessions.byID[sess.ID].BookedSlots; got != 0 {
		t.Errorf("booked_slots = %d, want 0", got)
	}
	// Other clients still get seats.
	if _, err := e.join(testClient, sess.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
}

func TestJoinInactiveSession(t *testing.T) {
	e := newEnv(t)
	sess := e.createSession(t, 3)
	if _, err := e.svc.CancelSession(context.Background(), Actor{Provider: testRef}, sess.ID); err != nil {
		t.Fatalf("cancel session: %v", err)
	}

	_, err := e.join(testClient, sess.ID)
	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestCancelSessionFreesRange(t *testing.T) {
	e := newEnv(t)
	sess := e.createSession(t, 3)

	out, err := e.svc.CancelSession(context.Background(), Actor{Provider: testRef}, sess.ID)
	if err != nil {
		t.Fatalf("cancel session: %v", err)
	}
	if out.Status != model.SessionCancelled {
		t.Errorf("status = %s", out.Status)
	}
	if len(e.ledger.ranges) != 0 {
		t.Errorf("ledger = %+v", e.ledger.ranges)
	}

	// The slot is bookable again.
	e.createReservation(t, 600)

	// Closing is one-way.
	if _, err := e.svc.CancelSession(context.Background(), Actor{Provider: testRef}, sess.ID); err == nil {
		t.Error("double cancel must fail")
	}
}

func TestCancelSessionRangeDeleteFailureRollsBack(t *testing.T) {
	e := newEnv(t)
	sess := e.createSession(t, 3)

	e.ledger.failDelete = errors.New("connection reset")
	if _, err := e.svc.CancelSession(context.Background(), Actor{Provider: testRef}, sess.ID); err == nil {
		t.Fatal("expected error when the range delete fails")
	}
	if got := e.sessions.byID[sess.ID].Status; got != model.SessionActive {
		t.Errorf("status = %s, want ACTIVE after rollback", got)
	}
	if len(e.ledger.ranges) != 1 {
		t.Errorf("ledger = %+v", e.ledger.ranges)
	}

	// A retry must still be able to free the slot.
	e.ledger.failDelete = nil
	if _, err := e.svc.CancelSession(context.Background(), Actor{Provider: testRef}, sess.ID); err != nil {
		t.Fatalf("retry cancel: %v", err)
	}
	if len(e.ledger.ranges) != 0 {
		t.Errorf("ledger = %+v", e.ledger.ranges)
	}
}

func TestCancelSessionMemberTwice(t *testing.T) {
	e := newEnv(t)
	sess := e.createSession(t, 2)

	first, err := e.join("client-1", sess.ID)
	if err != nil {
		t.Fatalf("first join: %v", err)
	}
	if _, err := e.join("client-2", sess.ID); err != nil {
		t.Fatalf("second join: %v", err)
	}

	if _, err := e.svc.Cancel(context.Background(), Actor{ClientID: "client-1"}, first.ID, "sick"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err = e.svc.Cancel(context.Background(), Actor{ClientID: "client-1"}, first.ID, "sick again")
	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	// The seat came back exactly once.
	if got := e.sessions.byID[sess.ID].BookedSlots; got != 1 {
		t.Errorf("booked_slots = %d, want 1", got)
	}
}

func TestCompleteSessionKeepsRange(t *testing.T) {
	e := newEnv(t)
	sess := e.createSession(t, 3)

	out, err := e.svc.CompleteSession(context.Background(), Actor{Provider: testRef}, sess.ID)
	if err != nil {
		t.Fatalf("complete session: %v", err)
	}
	if out.Status != model.SessionCompleted {
		t.Errorf("status = %s", out.Status)
	}
	if len(e.ledger.ranges) != 1 {
		t.Error("completed sessions keep their ledger range")
	}
}

func TestSessionPermissions(t *testing.T) {
	e := newEnv(t)
	sess := e.createSession(t, 3)

	other := Actor{Provider: model.ProviderRef{Kind: model.ProviderPlace, ID: "gym-9"}}
	var perm *PermissionError
	if _, err := e.svc.CancelSession(context.Background(), other, sess.ID); !errors.As(err, &perm) {
		t.Errorf("expected PermissionError, got %v", err)
	}
	if _, err := e.svc.CreateSession(context.Background(), Actor{ClientID: testClient}, CreateSessionRequest{
		Provider: testRef, ServiceName: "x", Day: testDay, StartMinute: 600, DurationMinutes: 30, Capacity: 1,
	}); !errors.As(err, &perm) {
		t.Errorf("expected PermissionError, got %v", err)
	}
}
