package booking

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/yordan-p/slotledger/internal/availability"
	"github.com/yordan-p/slotledger/internal/conflict"
	"github.com/yordan-p/slotledger/internal/model"
	"github.com/yordan-p/slotledger/internal/outbox"
)

func TestCreateReservation(t *testing.T) {
	e := newEnv(t)
	res := e.createReservation(t, 600)

	if res.Status != model.ReservationConfirmed {
		t.Errorf("status = %s, want CONFIRMED", res.Status)
	}
	if res.DurationMinutes != 60 || res.ServiceName != "Consultation" {
		t.Errorf("service not resolved: %+v", res)
	}
	if len(e.ledger.ranges) != 1 || e.ledger.ranges[0].StartMinute != 600 || e.ledger.ranges[0].EndMinute != 660 {
		t.Errorf("ledger ranges = %+v", e.ledger.ranges)
	}
	if e.outbox.lastType() != outbox.EventReservationConfirmed {
		t.Errorf("event = %s", e.outbox.lastType())
	}
	if !e.reservations.lastTx.committed {
		t.Error("transaction not committed")
	}
}

func TestCreateSelfBooking(t *testing.T) {
	e := newEnv(t)
	ref := model.ServiceRef{Kind: model.ServiceProfessionalOffered, ID: "svc-1"}
	_, err := e.svc.Create(context.Background(), CreateRequest{
		ClientID:    "owner-1",
		Service:     &ref,
		Day:         testDay,
		StartMinute: 600,
	})
	var perm *PermissionError
	if !errors.As(err, &perm) {
		t.Fatalf("expected PermissionError, got %v", err)
	}
	if len(e.reservations.byID) != 0 || len(e.ledger.ranges) != 0 {
		t.Error("self-booking must not mutate anything")
	}
}

func TestCreateConflicts(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(e *env)
		start      int
		wantReason string
	}{
		{
			name:       "in the past",
			setup:      func(e *env) {},
			start:      600,
			wantReason: conflict.ReasonPast,
		},
		{
			name:       "day unavailable",
			setup:      func(e *env) { e.calendar.unavailable = true },
			start:      600,
			wantReason: conflict.ReasonUnavailable,
		},
		{
			name:       "outside working hours",
			setup:      func(e *env) {},
			start:      480,
			wantReason: conflict.ReasonOutsideHours,
		},
		{
			name: "overlapping booked range",
			setup: func(e *env) {
				e.createReservation(t, 600)
			},
			start:      630,
			wantReason: conflict.ReasonBooked,
		},
		{
			name: "overlapping break block",
			setup: func(e *env) {
				e.ledger.InsertBlock(context.Background(), testRef, testDay, 720, 780, model.RangeBreak, "lunch")
			},
			start:      750,
			wantReason: conflict.ReasonBreak,
		},
		{
			name: "external calendar busy",
			setup: func(e *env) {
				e.overlay.busy = []availability.TimeRange{{StartMinute: 900, EndMinute: 960}}
			},
			start:      900,
			wantReason: conflict.ReasonExternalBusy,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			tt.setup(e)

			day := testDay
			if tt.wantReason == conflict.ReasonPast {
				day = testNow.AddDate(0, 0, -1)
			}
			ref := model.ServiceRef{Kind: model.ServiceProfessionalOffered, ID: "svc-1"}
			_, err := e.svc.Create(context.Background(), CreateRequest{
				ClientID:    testClient,
				Service:     &ref,
				Day:         day,
				StartMinute: tt.start,
			})
			var conflictErr *ConflictError
			if !errors.As(err, &conflictErr) {
				t.Fatalf("expected ConflictError, got %v", err)
			}
			if conflictErr.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", conflictErr.Reason, tt.wantReason)
			}
		})
	}
}

func TestCreateTouchingBoundary(t *testing.T) {
	e := newEnv(t)
	e.createReservation(t, 600)
	// [660, 720) touches [600, 660) at 660 and must be allowed.
	res := e.createReservation(t, 660)
	if res.StartMinute != 660 {
		t.Fatalf("unexpected reservation %+v", res)
	}
}

func TestCreateLostRace(t *testing.T) {
	e := newEnv(t)
	e.ledger.failInsert = &pgconn.PgError{Code: "23P01"}

	ref := model.ServiceRef{Kind: model.ServiceProfessionalOffered, ID: "svc-1"}
	_, err := e.svc.Create(context.Background(), CreateRequest{
		ClientID:    testClient,
		Service:     &ref,
		Day:         testDay,
		StartMinute: 600,
	})
	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflictErr.Reason != "Time slot is no longer available" {
		t.Errorf("reason = %q", conflictErr.Reason)
	}
	if !e.reservations.lastTx.rolledBack {
		t.Error("transaction must roll back on a lost race")
	}
}

func TestCancelReleasesSlot(t *testing.T) {
	e := newEnv(t)
	res := e.createReservation(t, 600)

	out, err := e.svc.Cancel(context.Background(), Actor{ClientID: testClient}, res.ID, "changed plans")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if out.Status != model.ReservationCancelled || out.CancelReason != "changed plans" {
		t.Errorf("unexpected reservation %+v", out)
	}
	if len(e.ledger.ranges) != 0 {
		t.Errorf("ledger not released: %+v", e.ledger.ranges)
	}
	if e.outbox.lastType() != outbox.EventReservationCancelled {
		t.Errorf("event = %s", e.outbox.lastType())
	}

	// The freed slot is immediately bookable again.
	e.createReservation(t, 600)
}

func TestCancelTwice(t *testing.T) {
	e := newEnv(t)
	res := e.createReservation(t, 600)

	if _, err := e.svc.Cancel(context.Background(), Actor{ClientID: testClient}, res.ID, "first"); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	_, err := e.svc.Cancel(context.Background(), Actor{ClientID: testClient}, res.ID, "second")
	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflictErr.Reason != "Reservation is already cancelled" {
		t.Errorf("reason = %q", conflictErr.Reason)
	}
	if got := e.reservations.byID[res.ID].CancelReason; got != "first" {
		t.Errorf("second cancel mutated reason to %q", got)
	}
}

func TestCancelPermissions(t *testing.T) {
	e := newEnv(t)
	res := e.createReservation(t, 600)

	if _, err := e.svc.Cancel(context.Background(), Actor{ClientID: "someone-else"}, res.ID, ""); err == nil {
		t.Fatal("foreign client cancel must fail")
	} else {
		var perm *PermissionError
		if !errors.As(err, &perm) {
			t.Fatalf("expected PermissionError, got %v", err)
		}
	}

	// The provider can cancel client reservations.
	if _, err := e.svc.Cancel(context.Background(), Actor{Provider: testRef}, res.ID, "closed that day"); err != nil {
		t.Fatalf("provider cancel: %v", err)
	}
}

func TestRejectRequiresPendingAndProvider(t *testing.T) {
	e := newEnv(t)
	res := e.createReservation(t, 600)

	if _, err := e.svc.Reject(context.Background(), Actor{ClientID: testClient}, res.ID, "no"); err == nil {
		t.Fatal("client reject must fail")
	}
	// Immediate-confirm means the reservation is CONFIRMED, not PENDING.
	_, err := e.svc.Reject(context.Background(), Actor{Provider: testRef}, res.ID, "no")
	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}

	e.reservations.byID[res.ID].Status = model.ReservationPending
	out, err := e.svc.Reject(context.Background(), Actor{Provider: testRef}, res.ID, "fully booked")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if out.Status != model.ReservationRejected {
		t.Errorf("status = %s", out.Status)
	}
	if e.outbox.lastType() != outbox.EventReservationRejected {
		t.Errorf("event = %s", e.outbox.lastType())
	}
	if len(e.ledger.ranges) != 0 {
		t.Error("reject must release the ledger range")
	}
}

func TestCompleteKeepsLedgerRange(t *testing.T) {
	e := newEnv(t)
	res := e.createReservation(t, 600)

	out, err := e.svc.Complete(context.Background(), Actor{Provider: testRef}, res.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out.Status != model.ReservationCompleted {
		t.Errorf("status = %s", out.Status)
	}
	if len(e.ledger.ranges) != 1 {
		t.Error("completed reservations keep their ledger range")
	}
	if e.outbox.lastType() != outbox.EventReservationCompleted {
		t.Errorf("event = %s", e.outbox.lastType())
	}

	// Completed is terminal.
	if _, err := e.svc.Complete(context.Background(), Actor{Provider: testRef}, res.ID); err == nil {
		t.Error("double complete must fail")
	}
}

func TestRescheduleExcludesOwnRange(t *testing.T) {
	e := newEnv(t)
	res := e.createReservation(t, 600)

	// 10:30 overlaps the reservation's own [600, 660) range; only its own.
	out, err := e.svc.Reschedule(context.Background(), Actor{ClientID: testClient}, RescheduleRequest{
		ReservationID: res.ID,
		Day:           testDay,
		StartMinute:   630,
	})
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if out.StartMinute != 630 {
		t.Errorf("start = %d", out.StartMinute)
	}
	if len(e.ledger.ranges) != 1 || e.ledger.ranges[0].StartMinute != 630 {
		t.Errorf("ledger = %+v", e.ledger.ranges)
	}
	if e.outbox.lastType() != outbox.EventReservationRescheduled {
		t.Errorf("event = %s", e.outbox.lastType())
	}
}

func TestRescheduleIntoForeignRange(t *testing.T) {
	e := newEnv(t)
	e.createReservation(t, 600)
	res := e.createReservation(t, 720)

	_, err := e.svc.Reschedule(context.Background(), Actor{ClientID: testClient}, RescheduleRequest{
		ReservationID: res.ID,
		Day:           testDay,
		StartMinute:   630,
	})
	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflictErr.Reason != conflict.ReasonBooked {
		t.Errorf("reason = %q", conflictErr.Reason)
	}
}

func TestRescheduleSameSlotUpdatesNotesOnly(t *testing.T) {
	e := newEnv(t)
	res := e.createReservation(t, 600)
	eventsBefore := len(e.outbox.events)

	out, err := e.svc.Reschedule(context.Background(), Actor{ClientID: testClient}, RescheduleRequest{
		ReservationID: res.ID,
		Day:           testDay,
		StartMinute:   600,
		Notes:         "please prepare the file",
	})
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if out.Notes != "please prepare the file" {
		t.Errorf("notes = %q", out.Notes)
	}
	if len(e.outbox.events) != eventsBefore {
		t.Error("notes-only update must not emit an event")
	}
}

func TestDestroy(t *testing.T) {
	e := newEnv(t)
	res := e.createReservation(t, 600)

	if err := e.svc.Destroy(context.Background(), Actor{ClientID: testClient}, res.ID); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if len(e.reservations.byID) != 0 || len(e.ledger.ranges) != 0 {
		t.Error("destroy must remove the reservation and its ledger range")
	}
	var notFound *NotFoundError
	if err := e.svc.Destroy(context.Background(), Actor{ClientID: testClient}, res.ID); !errors.As(err, &notFound) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestCheckAvailability(t *testing.T) {
	e := newEnv(t)
	e.createReservation(t, 600)

	dec, err := e.svc.CheckAvailability(context.Background(), CheckRequest{
		Provider: testRef, Day: testDay, StartMinute: 630, DurationMinutes: 60,
	})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if dec.Available || dec.Reason != conflict.ReasonBooked {
		t.Errorf("decision = %+v", dec)
	}

	dec, err = e.svc.CheckAvailability(context.Background(), CheckRequest{
		Provider: testRef, Day: testDay, StartMinute: 660, DurationMinutes: 60,
	})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !dec.Available {
		t.Errorf("decision = %+v", dec)
	}
}

func TestProjectDay(t *testing.T) {
	e := newEnv(t)
	e.createReservation(t, 600)
	e.ledger.InsertBlock(context.Background(), testRef, testDay, 720, 780, model.RangeBreak, "lunch")

	proj, err := e.svc.ProjectDay(context.Background(), testRef, testDay, 60, 60)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if !proj.Available {
		t.Fatal("day should be available")
	}
	if len(proj.WorkingHours) != 1 || len(proj.Booked) != 1 || len(proj.Breaks) != 1 {
		t.Fatalf("projection = %+v", proj)
	}
	for _, start := range proj.SlotStarts {
		if start == 600 || start == 720 {
			t.Errorf("occupied start %d offered as free", start)
		}
	}
	// 09:00 window start must be offered.
	if len(proj.SlotStarts) == 0 || proj.SlotStarts[0] != 540 {
		t.Errorf("slot starts = %v", proj.SlotStarts)
	}
}
