// Package booking drives the reservation lifecycle and group-session capacity
// over the availability calendar, the conflict checker and the booked-time
// ledger. Every mutating operation runs in a single transaction; the conflict
// pre-check is advisory and the ledger's no-overlap constraint is the final
// arbiter.
package booking

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/yordan-p/slotledger/internal/availability"
	"github.com/yordan-p/slotledger/internal/conflict"
	"github.com/yordan-p/slotledger/internal/directory"
	"github.com/yordan-p/slotledger/internal/model"
	"github.com/yordan-p/slotledger/internal/outbox"
	"github.com/yordan-p/slotledger/internal/schedule"
)

// Actor identifies who is performing an operation: a client, a provider, or
// both when a provider acts on their own behalf.
type Actor struct {
	ClientID string
	Provider model.ProviderRef
}

func (a Actor) ownsProvider(ref model.ProviderRef) bool {
	return !a.Provider.IsZero() && a.Provider == ref
}

type ReservationStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Create(ctx context.Context, tx pgx.Tx, res *model.Reservation) error
	Get(ctx context.Context, id string) (model.Reservation, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Reservation, error)
	SetStatus(ctx context.Context, tx pgx.Tx, id, status, reason string) (time.Time, error)
	UpdateSlot(ctx context.Context, tx pgx.Tx, id string, day time.Time, startMinute int, notes string) error
	Delete(ctx context.Context, tx pgx.Tx, id string) error
	ListOpenForDay(ctx context.Context, provider model.ProviderRef, day time.Time) ([]model.Reservation, error)
	ListByClient(ctx context.Context, clientID string, limit int) ([]model.Reservation, error)
	ListByProvider(ctx context.Context, provider model.ProviderRef, limit int) ([]model.Reservation, error)
}

type LedgerStore interface {
	InsertBookedRange(ctx context.Context, tx pgx.Tx, reservationID string, provider model.ProviderRef, day time.Time, startMinute, endMinute int) error
	DeleteByReservation(ctx context.Context, tx pgx.Tx, reservationID string) (int64, error)
	InsertBlock(ctx context.Context, provider model.ProviderRef, day time.Time, startMinute, endMinute int, reason, note string) (model.BookedRange, error)
	DeleteBlock(ctx context.Context, provider model.ProviderRef, blockID string) (bool, error)
	InsertSessionRange(ctx context.Context, tx pgx.Tx, provider model.ProviderRef, day time.Time, startMinute, endMinute int, note string) error
	DeleteSessionRange(ctx context.Context, tx pgx.Tx, provider model.ProviderRef, day time.Time, startMinute, endMinute int) (bool, error)
	ListForDay(ctx context.Context, provider model.ProviderRef, day time.Time) ([]model.BookedRange, error)
}

type SessionStore interface {
	Create(ctx context.Context, tx pgx.Tx, s *model.GroupSession) error
	Get(ctx context.Context, id string) (model.GroupSession, error)
	ReserveSeat(ctx context.Context, tx pgx.Tx, id string) (bool, error)
	ReleaseSeat(ctx context.Context, tx pgx.Tx, id string) error
	SetStatus(ctx context.Context, tx pgx.Tx, id, status string) (bool, error)
	ListByProvider(ctx context.Context, provider model.ProviderRef, limit int) ([]model.GroupSession, error)
}

type OutboxStore interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

type Calendar interface {
	WindowsForDay(ctx context.Context, provider model.ProviderRef, day time.Time) (schedule.DayWindows, error)
}

// Overlay provides best-effort external busy time. Implementations must fail
// open: an empty result is "no additional exclusions", never an error.
type Overlay interface {
	BusyMinutes(ctx context.Context, provider model.ProviderRef, day time.Time) []availability.TimeRange
}

type Service struct {
	logger       *slog.Logger
	calendar     Calendar
	reservations ReservationStore
	ledger       LedgerStore
	sessions     SessionStore
	outbox       OutboxStore
	resolver     directory.Resolver
	overlay      Overlay
	now          func() time.Time
}

type Deps struct {
	Calendar     Calendar
	Reservations ReservationStore
	Ledger       LedgerStore
	Sessions     SessionStore
	Outbox       OutboxStore
	Resolver     directory.Resolver
	Overlay      Overlay
	// Now overrides the clock in tests.
	Now func() time.Time
}

func NewService(logger *slog.Logger, deps Deps) *Service {
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		logger:       logger,
		calendar:     deps.Calendar,
		reservations: deps.Reservations,
		ledger:       deps.Ledger,
		sessions:     deps.Sessions,
		outbox:       deps.Outbox,
		resolver:     deps.Resolver,
		overlay:      deps.Overlay,
		now:          now,
	}
}

// snapshot gathers everything the conflict checker consults for one provider
// day. It runs entirely outside any transaction; the overlay call in
// particular may block up to its timeout.
func (s *Service) snapshot(ctx context.Context, provider model.ProviderRef, day time.Time, exclude string, withOverlay bool) (conflict.Snapshot, error) {
	snap := conflict.Snapshot{ExcludeReservationID: exclude}

	windows, err := s.calendar.WindowsForDay(ctx, provider, day)
	if err != nil {
		if errors.Is(err, schedule.ErrDayUnavailable) {
			snap.DayUnavailable = true
			return snap, nil
		}
		return snap, err
	}
	snap.Open = windows.Open
	snap.Breaks = windows.Breaks

	ranges, err := s.ledger.ListForDay(ctx, provider, day)
	if err != nil {
		return snap, err
	}
	for _, br := range ranges {
		r := availability.TimeRange{StartMinute: br.StartMinute, EndMinute: br.EndMinute}
		switch br.Reason {
		case model.RangeBreak:
			snap.Breaks = append(snap.Breaks, r)
		default:
			// BOOKED and provider blocks (vacation, personal, other) all
			// occupy the slot outright.
			owned := conflict.OwnedRange{Range: r}
			if br.ReservationID != nil {
				owned.ReservationID = *br.ReservationID
			}
			snap.Booked = append(snap.Booked, owned)
		}
	}

	open, err := s.reservations.ListOpenForDay(ctx, provider, day)
	if err != nil {
		return snap, err
	}
	for _, res := range open {
		// Session members occupy their session's range, already in the ledger.
		if res.GroupSessionID != nil {
			continue
		}
		snap.Reservations = append(snap.Reservations, conflict.OwnedRange{
			ReservationID: res.ID,
			Range:         availability.TimeRange{StartMinute: res.StartMinute, EndMinute: res.EndMinute()},
		})
	}

	if withOverlay && s.overlay != nil {
		snap.Busy = s.overlay.BusyMinutes(ctx, provider, day)
	}
	return snap, nil
}

// CheckRequest asks whether one candidate slot could be booked right now.
type CheckRequest struct {
	Provider        model.ProviderRef
	Day             time.Time
	StartMinute     int
	DurationMinutes int
	// ExcludeReservationID ignores one reservation's own occupied time, for
	// pre-checking a reschedule target.
	ExcludeReservationID string
}

type Decision struct {
	Available bool
	Reason    string
}

func (s *Service) CheckAvailability(ctx context.Context, req CheckRequest) (Decision, error) {
	if !req.Provider.Kind.Valid() || req.Provider.ID == "" {
		return Decision{}, validationf("invalid provider reference")
	}
	if req.StartMinute < 0 || req.DurationMinutes <= 0 {
		return Decision{}, validationf("invalid time range")
	}

	snap, err := s.snapshot(ctx, req.Provider, req.Day, req.ExcludeReservationID, true)
	if err != nil {
		return Decision{}, err
	}
	ok, reason := conflict.Check(s.now(), conflict.Candidate{
		Day:             req.Day,
		StartMinute:     req.StartMinute,
		DurationMinutes: req.DurationMinutes,
	}, snap)
	return Decision{Available: ok, Reason: reason}, nil
}

func (s *Service) reservationPayload(res model.Reservation) []byte {
	payload, _ := json.Marshal(map[string]any{
		"reservation_id":   res.ID,
		"client_id":        res.ClientID,
		"provider_kind":    res.Provider.Kind,
		"provider_id":      res.Provider.ID,
		"service_name":     res.ServiceName,
		"day":              availability.FormatDay(res.Day),
		"start_minute":     res.StartMinute,
		"duration_minutes": res.DurationMinutes,
		"status":           res.Status,
	})
	return payload
}

func (s *Service) emit(ctx context.Context, tx pgx.Tx, eventType string, res model.Reservation) error {
	return s.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "reservation",
		AggregateID:   res.ID,
		EventType:     eventType,
		Payload:       s.reservationPayload(res),
	})
}

func (s *Service) Get(ctx context.Context, id string) (model.Reservation, error) {
	res, err := s.reservations.Get(ctx, id)
	if err != nil {
		return model.Reservation{}, mapNotFound(err, "reservation", id)
	}
	return res, nil
}

func (s *Service) ListForClient(ctx context.Context, clientID string, limit int) ([]model.Reservation, error) {
	return s.reservations.ListByClient(ctx, clientID, limit)
}

func (s *Service) ListForProvider(ctx context.Context, provider model.ProviderRef, limit int) ([]model.Reservation, error) {
	return s.reservations.ListByProvider(ctx, provider, limit)
}
