package booking

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/yordan-p/slotledger/internal/availability"
	"github.com/yordan-p/slotledger/internal/directory"
	"github.com/yordan-p/slotledger/internal/model"
	"github.com/yordan-p/slotledger/internal/outbox"
	"github.com/yordan-p/slotledger/internal/schedule"
)

// fakeTx satisfies pgx.Tx through the embedded interface; only Commit and
// Rollback are ever called on it directly. Fakes that mutate shared state
// register an undo so rollback restores it, mirroring real tx semantics.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	undo       []func()
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	t.undo = nil
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolledBack = true
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i]()
		}
		t.undo = nil
	}
	return nil
}

type fakeReservations struct {
	byID   map[string]*model.Reservation
	lastTx *fakeTx
}

func newFakeReservations() *fakeReservations {
	return &fakeReservations{byID: map[string]*model.Reservation{}}
}

func (f *fakeReservations) Begin(ctx context.Context) (pgx.Tx, error) {
	f.lastTx = &fakeTx{}
	return f.lastTx, nil
}

func (f *fakeReservations) Create(ctx context.Context, tx pgx.Tx, res *model.Reservation) error {
	res.CreatedAt = time.Now()
	cp := *res
	f.byID[res.ID] = &cp
	return nil
}

func (f *fakeReservations) Get(ctx context.Context, id string) (model.Reservation, error) {
	res, ok := f.byID[id]
	if !ok {
		return model.Reservation{}, pgx.ErrNoRows
	}
	return *res, nil
}

func (f *fakeReservations) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Reservation, error) {
	return f.Get(ctx, id)
}

func (f *fakeReservations) SetStatus(ctx context.Context, tx pgx.Tx, id, status, reason string) (time.Time, error) {
	res := f.byID[id]
	res.Status = status
	res.CancelReason = reason
	now := time.Now()
	if status == model.ReservationCancelled || status == model.ReservationRejected {
		res.CancelledAt = &now
	}
	return now, nil
}

func (f *fakeReservations) UpdateSlot(ctx context.Context, tx pgx.Tx, id string, day time.Time, startMinute int, notes string) error {
	res := f.byID[id]
	res.Day = day
	res.StartMinute = startMinute
	res.Notes = notes
	return nil
}

func (f *fakeReservations) Delete(ctx context.Context, tx pgx.Tx, id string) error {
	delete(f.byID, id)
	return nil
}

func (f *fakeReservations) ListOpenForDay(ctx context.Context, provider model.ProviderRef, day time.Time) ([]model.Reservation, error) {
	var out []model.Reservation
	for _, res := range f.byID {
		if res.Provider == provider && res.Day.Equal(day) && res.Open() {
			out = append(out, *res)
		}
	}
	return out, nil
}

func (f *fakeReservations) ListByClient(ctx context.Context, clientID string, limit int) ([]model.Reservation, error) {
	var out []model.Reservation
	for _, res := range f.byID {
		if res.ClientID == clientID {
			out = append(out, *res)
		}
	}
	return out, nil
}

func (f *fakeReservations) ListByProvider(ctx context.Context, provider model.ProviderRef, limit int) ([]model.Reservation, error) {
	var out []model.Reservation
	for _, res := range f.byID {
		if res.Provider == provider {
			out = append(out, *res)
		}
	}
	return out, nil
}

type fakeLedger struct {
	ranges     []model.BookedRange
	failInsert error
	failDelete error
	nextID     int
}

func (f *fakeLedger) InsertBookedRange(ctx context.Context, tx pgx.Tx, reservationID string, provider model.ProviderRef, day time.Time, startMinute, endMinute int) error {
	if f.failInsert != nil {
		return f.failInsert
	}
	id := reservationID
	f.ranges = append(f.ranges, model.BookedRange{
		ID: newBlockID(&f.nextID), Provider: provider, Day: day,
		StartMinute: startMinute, EndMinute: endMinute,
		Reason: model.RangeBooked, ReservationID: &id,
	})
	return nil
}

func (f *fakeLedger) DeleteByReservation(ctx context.Context, tx pgx.Tx, reservationID string) (int64, error) {
	var kept []model.BookedRange
	var n int64
	for _, r := range f.ranges {
		if r.ReservationID != nil && *r.ReservationID == reservationID {
			n++
			continue
		}
		kept = append(kept, r)
	}
	f.ranges = kept
	return n, nil
}

func (f *fakeLedger) InsertBlock(ctx context.Context, provider model.ProviderRef, day time.Time, startMinute, endMinute int, reason, note string) (model.BookedRange, error) {
	br := model.BookedRange{
		ID: newBlockID(&f.nextID), Provider: provider, Day: day,
		StartMinute: startMinute, EndMinute: endMinute, Reason: reason, Note: note,
	}
	f.ranges = append(f.ranges, br)
	return br, nil
}

func (f *fakeLedger) DeleteBlock(ctx context.Context, provider model.ProviderRef, blockID string) (bool, error) {
	for i, r := range f.ranges {
		if r.ID == blockID && r.Provider == provider && r.ReservationID == nil {
			f.ranges = append(f.ranges[:i], f.ranges[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedger) InsertSessionRange(ctx context.Context, tx pgx.Tx, provider model.ProviderRef, day time.Time, startMinute, endMinute int, note string) error {
	if f.failInsert != nil {
		return f.failInsert
	}
	f.ranges = append(f.ranges, model.BookedRange{
		ID: newBlockID(&f.nextID), Provider: provider, Day: day,
		StartMinute: startMinute, EndMinute: endMinute,
		Reason: model.RangeBooked, Note: note,
	})
	return nil
}

func (f *fakeLedger) DeleteSessionRange(ctx context.Context, tx pgx.Tx, provider model.ProviderRef, day time.Time, startMinute, endMinute int) (bool, error) {
	if f.failDelete != nil {
		return false, f.failDelete
	}
	for i, r := range f.ranges {
		if r.Provider == provider && r.Day.Equal(day) && r.StartMinute == startMinute &&
			r.EndMinute == endMinute && r.Reason == model.RangeBooked && r.ReservationID == nil {
			f.ranges = append(f.ranges[:i], f.ranges[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedger) ListForDay(ctx context.Context, provider model.ProviderRef, day time.Time) ([]model.BookedRange, error) {
	var out []model.BookedRange
	for _, r := range f.ranges {
		if r.Provider == provider && r.Day.Equal(day) {
			out = append(out, r)
		}
	}
	return out, nil
}

func newBlockID(next *int) string {
	*next++
	return fmt.Sprintf("range-%d", *next)
}

type fakeSessions struct {
	byID map[string]*model.GroupSession
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{byID: map[string]*model.GroupSession{}}
}

func (f *fakeSessions) Create(ctx context.Context, tx pgx.Tx, s *model.GroupSession) error {
	s.CreatedAt = time.Now()
	cp := *s
	f.byID[s.ID] = &cp
	return nil
}

func (f *fakeSessions) Get(ctx context.Context, id string) (model.GroupSession, error) {
	s, ok := f.byID[id]
	if !ok {
		return model.GroupSession{}, pgx.ErrNoRows
	}
	return *s, nil
}

func (f *fakeSessions) ReserveSeat(ctx context.Context, tx pgx.Tx, id string) (bool, error) {
	s, ok := f.byID[id]
	if !ok || s.Status != model.SessionActive || s.BookedSlots >= s.Capacity {
		return false, nil
	}
	s.BookedSlots++
	return true, nil
}

func (f *fakeSessions) ReleaseSeat(ctx context.Context, tx pgx.Tx, id string) error {
	if s, ok := f.byID[id]; ok && s.BookedSlots > 0 {
		s.BookedSlots--
	}
	return nil
}

func (f *fakeSessions) SetStatus(ctx context.Context, tx pgx.Tx, id, status string) (bool, error) {
	s, ok := f.byID[id]
	if !ok || s.Status != model.SessionActive {
		return false, nil
	}
	prev := s.Status
	s.Status = status
	if ft, ok := tx.(*fakeTx); ok {
		ft.undo = append(ft.undo, func() { s.Status = prev })
	}
	return true, nil
}

func (f *fakeSessions) ListByProvider(ctx context.Context, provider model.ProviderRef, limit int) ([]model.GroupSession, error) {
	var out []model.GroupSession
	for _, s := range f.byID {
		if s.Provider == provider {
			out = append(out, *s)
		}
	}
	return out, nil
}

type fakeOutbox struct {
	events []outbox.Event
}

func (f *fakeOutbox) Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error {
	f.events = append(f.events, evt)
	return nil
}

func (f *fakeOutbox) lastType() string {
	if len(f.events) == 0 {
		return ""
	}
	return f.events[len(f.events)-1].EventType
}

type fakeCalendar struct {
	windows     schedule.DayWindows
	unavailable bool
}

func (f *fakeCalendar) WindowsForDay(ctx context.Context, provider model.ProviderRef, day time.Time) (schedule.DayWindows, error) {
	if f.unavailable {
		return schedule.DayWindows{}, schedule.ErrDayUnavailable
	}
	return f.windows, nil
}

type fakeResolver struct {
	providers map[model.ProviderRef]model.Provider
	services  map[model.ServiceRef]directory.ServiceInstance
}

func (f *fakeResolver) ResolveProvider(ctx context.Context, ref model.ProviderRef) (model.Provider, error) {
	p, ok := f.providers[ref]
	if !ok {
		return model.Provider{}, directory.ErrProviderNotFound
	}
	return p, nil
}

func (f *fakeResolver) ResolveServiceInstance(ctx context.Context, ref model.ServiceRef) (directory.ServiceInstance, error) {
	inst, ok := f.services[ref]
	if !ok {
		return directory.ServiceInstance{}, directory.ErrServiceNotFound
	}
	return inst, nil
}

type fakeOverlay struct {
	busy []availability.TimeRange
}

func (f *fakeOverlay) BusyMinutes(ctx context.Context, provider model.ProviderRef, day time.Time) []availability.TimeRange {
	return f.busy
}

// Fixtures shared by the lifecycle tests: one provider working 09:00-17:00,
// the clock pinned to 08:00 the day before the booking day.
var (
	testRef    = model.ProviderRef{Kind: model.ProviderProfessional, ID: "prof-1"}
	testDay    = time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC)
	testNow    = time.Date(2026, 9, 7, 8, 0, 0, 0, time.UTC)
	testClient = "client-1"
)

type env struct {
	reservations *fakeReservations
	ledger       *fakeLedger
	sessions     *fakeSessions
	outbox       *fakeOutbox
	calendar     *fakeCalendar
	resolver     *fakeResolver
	overlay      *fakeOverlay
	svc          *Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		reservations: newFakeReservations(),
		ledger:       &fakeLedger{},
		sessions:     newFakeSessions(),
		outbox:       &fakeOutbox{},
		calendar: &fakeCalendar{windows: schedule.DayWindows{
			Open: []availability.TimeRange{{StartMinute: 540, EndMinute: 1020}},
		}},
		resolver: &fakeResolver{
			providers: map[model.ProviderRef]model.Provider{
				testRef: {Ref: testRef, DisplayName: "Dr. Petrova", OwnerUserID: "owner-1", Active: true},
			},
			services: map[model.ServiceRef]directory.ServiceInstance{
				{Kind: model.ServiceProfessionalOffered, ID: "svc-1"}: {
					Provider:        model.Provider{Ref: testRef, OwnerUserID: "owner-1", Active: true},
					ServiceName:     "Consultation",
					DurationMinutes: 60,
				},
			},
		},
		overlay: &fakeOverlay{},
	}
	e.svc = NewService(slog.New(slog.NewTextHandler(testWriter{t}, nil)), Deps{
		Calendar:     e.calendar,
		Reservations: e.reservations,
		Ledger:       e.ledger,
		Sessions:     e.sessions,
		Outbox:       e.outbox,
		Resolver:     e.resolver,
		Overlay:      e.overlay,
		Now:          func() time.Time { return testNow },
	})
	return e
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func (e *env) createReservation(t *testing.T, startMinute int) model.Reservation {
	t.Helper()
	ref := model.ServiceRef{Kind: model.ServiceProfessionalOffered, ID: "svc-1"}
	res, err := e.svc.Create(context.Background(), CreateRequest{
		ClientID:    testClient,
		Service:     &ref,
		Day:         testDay,
		StartMinute: startMinute,
	})
	if err != nil {
		t.Fatalf("create reservation: %v", err)
	}
	return res
}
