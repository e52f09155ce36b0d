package model

import "time"

const (
	ReservationPending   = "PENDING"
	ReservationConfirmed = "CONFIRMED"
	ReservationCompleted = "COMPLETED"
	ReservationCancelled = "CANCELLED"
	ReservationRejected  = "REJECTED"
)

// Reservation is a client's hold on a provider slot. Day is a date at UTC
// midnight; the slot itself is [StartMinute, StartMinute+DurationMinutes) in
// the provider's local day.
type Reservation struct {
	ID              string
	ClientID        string
	Provider        ProviderRef
	ServiceName     string
	Day             time.Time
	StartMinute     int
	DurationMinutes int
	Status          string
	GroupSessionID  *string
	Notes           string
	CancelReason    string
	CreatedAt       time.Time
	CancelledAt     *time.Time
}

func (r Reservation) EndMinute() int {
	return r.StartMinute + r.DurationMinutes
}

// Open reports whether the reservation still occupies provider time.
func (r Reservation) Open() bool {
	return r.Status == ReservationPending || r.Status == ReservationConfirmed
}

// Terminal reports whether the status admits no further transitions.
func (r Reservation) Terminal() bool {
	switch r.Status {
	case ReservationCompleted, ReservationCancelled, ReservationRejected:
		return true
	}
	return false
}
