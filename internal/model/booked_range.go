package model

import "time"

// Ledger range reasons. Only BOOKED ranges participate in the store-level
// no-overlap constraint; the rest are provider-entered blocks.
const (
	RangeBooked   = "BOOKED"
	RangeBreak    = "BREAK"
	RangeVacation = "VACATION"
	RangePersonal = "PERSONAL"
	RangeOther    = "OTHER"
)

func ValidRangeReason(reason string) bool {
	switch reason {
	case RangeBooked, RangeBreak, RangeVacation, RangePersonal, RangeOther:
		return true
	}
	return false
}

// BookedRange is one ledger entry: an occupied [StartMinute, EndMinute) on a
// provider's day. A BOOKED range is owned by exactly one reservation through
// ReservationID; block ranges have no owner.
type BookedRange struct {
	ID            string
	Provider      ProviderRef
	Day           time.Time
	StartMinute   int
	EndMinute     int
	Reason        string
	ReservationID *string
	Note          string
	CreatedAt     time.Time
}
