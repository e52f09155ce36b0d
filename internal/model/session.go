package model

import "time"

const (
	SessionActive    = "ACTIVE"
	SessionCancelled = "CANCELLED"
	SessionCompleted = "COMPLETED"
)

// GroupSession is a single provider slot shared by up to Capacity clients.
// Reservations bound to a session consume seats instead of ledger ranges.
type GroupSession struct {
	ID              string
	Provider        ProviderRef
	ServiceName     string
	Day             time.Time
	StartMinute     int
	DurationMinutes int
	Capacity        int
	BookedSlots     int
	Status          string
	CreatedAt       time.Time
}

func (s GroupSession) Remaining() int {
	return s.Capacity - s.BookedSlots
}
