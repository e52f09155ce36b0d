// Package conflict decides whether a candidate slot is bookable against one
// provider's day. Callers assemble a Snapshot from the calendar, the ledger
// and the overlay before any transaction is opened; the answer is advisory
// and the store's no-overlap constraint remains the final arbiter at commit
// time.
package conflict

import (
	"time"

	"github.com/yordan-p/slotledger/internal/availability"
	"github.com/yordan-p/slotledger/internal/schedule"
)

// Reasons returned by Check, in check order. First failing check wins.
const (
	ReasonPast         = "Cannot book appointments in the past"
	ReasonUnavailable  = schedule.DayUnavailableReason
	ReasonOutsideHours = "Requested time is outside provider's working hours"
	ReasonBooked       = "Time slot is already booked"
	ReasonBreak        = "Time slot conflicts with provider's break time"
	ReasonReservation  = "Time slot conflicts with existing reservation"
	ReasonExternalBusy = "Time slot conflicts with an external calendar event"
)

type Candidate struct {
	Day             time.Time
	StartMinute     int
	DurationMinutes int
}

func (c Candidate) Range() availability.TimeRange {
	return availability.TimeRange{
		StartMinute: c.StartMinute,
		EndMinute:   c.StartMinute + c.DurationMinutes,
	}
}

// OwnedRange is an occupied range tagged with its owning reservation, so a
// reservation being rescheduled never conflicts with itself.
type OwnedRange struct {
	ReservationID string
	Range         availability.TimeRange
}

// Snapshot is everything Check consults, gathered for one provider day.
type Snapshot struct {
	// DayUnavailable is set when the calendar had no open windows for the day.
	DayUnavailable bool
	Open           []availability.TimeRange
	// Breaks merges the calendar's break windows with BREAK ledger entries.
	Breaks []availability.TimeRange
	// Booked holds BOOKED ledger entries for the day.
	Booked []OwnedRange
	// Reservations holds open (PENDING/CONFIRMED) reservation ranges. The
	// ledger should already reflect them; this guards against drift.
	Reservations []OwnedRange
	// Busy holds external-calendar ranges projected onto the day. Empty means
	// no additional exclusions, never a rejection.
	Busy []availability.TimeRange
	// ExcludeReservationID removes one reservation's own ranges from the
	// booked and reservation checks (reschedule).
	ExcludeReservationID string
}

// Check runs the ordered availability checks and returns the first failure
// reason, or ok. now and the candidate are provider-local.
func Check(now time.Time, c Candidate, snap Snapshot) (bool, string) {
	if inPast(now, c) {
		return false, ReasonPast
	}
	if snap.DayUnavailable {
		return false, ReasonUnavailable
	}

	r := c.Range()
	if c.DurationMinutes <= 0 || r.EndMinute > availability.MinutesPerDay || !availability.FitsWithinAny(r, snap.Open) {
		return false, ReasonOutsideHours
	}
	if overlapsOwned(r, snap.Booked, snap.ExcludeReservationID) {
		return false, ReasonBooked
	}
	if availability.OverlapsAny(r, snap.Breaks) {
		return false, ReasonBreak
	}
	if overlapsOwned(r, snap.Reservations, snap.ExcludeReservationID) {
		return false, ReasonReservation
	}
	if availability.OverlapsAny(r, snap.Busy) {
		return false, ReasonExternalBusy
	}
	return true, ""
}

func inPast(now time.Time, c Candidate) bool {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	day := time.Date(c.Day.Year(), c.Day.Month(), c.Day.Day(), 0, 0, 0, 0, time.UTC)
	if day.Before(today) {
		return true
	}
	if day.Equal(today) && c.StartMinute < availability.MinuteOfDay(now) {
		return true
	}
	return false
}

func overlapsOwned(r availability.TimeRange, owned []OwnedRange, exclude string) bool {
	for _, o := range owned {
		if exclude != "" && o.ReservationID == exclude {
			continue
		}
		if r.Overlaps(o.Range) {
			return true
		}
	}
	return false
}
