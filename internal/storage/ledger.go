package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/yordan-p/slotledger/internal/model"
	"github.com/yordan-p/slotledger/libs/db"
)

// LedgerRepository is the authoritative record of occupied provider time.
// BOOKED rows are owned by reservations via reservation_id; the exclusion
// constraint on booked rows is what finally prevents double booking.
type LedgerRepository struct {
	pool *db.Pool
}

func NewLedgerRepository(pool *db.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

const bookedRangeColumns = `
	id::text, provider_kind, provider_id, day, start_minute, end_minute,
	reason, reservation_id::text, COALESCE(note, ''), created_at
`

// InsertBookedRange writes the ledger row for a reservation inside its commit
// transaction. An overlap with another BOOKED row fails with an exclusion
// violation (IsConflict).
func (r *LedgerRepository) InsertBookedRange(ctx context.Context, tx pgx.Tx, reservationID string, provider model.ProviderRef, day time.Time, startMinute, endMinute int) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO booked_ranges (id, provider_kind, provider_id, day, start_minute, end_minute, reason, reservation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, uuid.NewString(), provider.Kind, provider.ID, day, startMinute, endMinute, model.RangeBooked, reservationID)
	return err
}

// DeleteByReservation removes the BOOKED row owned by the reservation.
// Returns the number of rows removed so callers can assert symmetry.
func (r *LedgerRepository) DeleteByReservation(ctx context.Context, tx pgx.Tx, reservationID string) (int64, error) {
	tag, err := tx.Exec(ctx, `
		DELETE FROM booked_ranges
		WHERE reservation_id = $1
	`, reservationID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// InsertSessionRange occupies a group session's slot on the ledger. The row
// carries the BOOKED reason (so individual bookings cannot overlap it) but no
// owning reservation; seats inside the session are tracked by its counter.
func (r *LedgerRepository) InsertSessionRange(ctx context.Context, tx pgx.Tx, provider model.ProviderRef, day time.Time, startMinute, endMinute int, note string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO booked_ranges (id, provider_kind, provider_id, day, start_minute, end_minute, reason, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, uuid.NewString(), provider.Kind, provider.ID, day, startMinute, endMinute, model.RangeBooked, note)
	return err
}

// DeleteSessionRange frees a cancelled session's slot by its exact range.
func (r *LedgerRepository) DeleteSessionRange(ctx context.Context, tx pgx.Tx, provider model.ProviderRef, day time.Time, startMinute, endMinute int) (bool, error) {
	tag, err := tx.Exec(ctx, `
		DELETE FROM booked_ranges
		WHERE provider_kind = $1 AND provider_id = $2 AND day = $3
			AND start_minute = $4 AND end_minute = $5
			AND reason = $6 AND reservation_id IS NULL
	`, provider.Kind, provider.ID, day, startMinute, endMinute, model.RangeBooked)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// InsertBlock records provider-entered occupied time (break, vacation,
// personal, other) with no owning reservation.
func (r *LedgerRepository) InsertBlock(ctx context.Context, provider model.ProviderRef, day time.Time, startMinute, endMinute int, reason, note string) (model.BookedRange, error) {
	var br model.BookedRange
	var resID *string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO booked_ranges (id, provider_kind, provider_id, day, start_minute, end_minute, reason, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+bookedRangeColumns+`
	`, uuid.NewString(), provider.Kind, provider.ID, day, startMinute, endMinute, reason, note).Scan(
		&br.ID, &br.Provider.Kind, &br.Provider.ID, &br.Day, &br.StartMinute, &br.EndMinute,
		&br.Reason, &resID, &br.Note, &br.CreatedAt,
	)
	if err != nil {
		return model.BookedRange{}, err
	}
	br.ReservationID = resID
	return br, nil
}

// DeleteBlock removes a provider-entered block. Reservation-owned rows are
// never deletable through this path.
func (r *LedgerRepository) DeleteBlock(ctx context.Context, provider model.ProviderRef, blockID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM booked_ranges
		WHERE id = $1 AND provider_kind = $2 AND provider_id = $3 AND reservation_id IS NULL
	`, blockID, provider.Kind, provider.ID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListForDay returns every ledger row on the provider's day, booked and
// blocks alike, ordered by start.
func (r *LedgerRepository) ListForDay(ctx context.Context, provider model.ProviderRef, day time.Time) ([]model.BookedRange, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookedRangeColumns+`
		FROM booked_ranges
		WHERE provider_kind = $1 AND provider_id = $2 AND day = $3
		ORDER BY start_minute ASC
	`, provider.Kind, provider.ID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BookedRange
	for rows.Next() {
		var br model.BookedRange
		var resID *string
		if err := rows.Scan(
			&br.ID, &br.Provider.Kind, &br.Provider.ID, &br.Day, &br.StartMinute, &br.EndMinute,
			&br.Reason, &resID, &br.Note, &br.CreatedAt,
		); err != nil {
			return nil, err
		}
		br.ReservationID = resID
		out = append(out, br)
	}
	return out, rows.Err()
}
