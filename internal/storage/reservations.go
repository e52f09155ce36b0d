package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/yordan-p/slotledger/internal/model"
	"github.com/yordan-p/slotledger/libs/db"
)

type ReservationRepository struct {
	pool *db.Pool
}

func NewReservationRepository(pool *db.Pool) *ReservationRepository {
	return &ReservationRepository{pool: pool}
}

func (r *ReservationRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const reservationColumns = `
	id::text, client_id, provider_kind, provider_id, service_name, day,
	start_minute, duration_minutes, status, group_session_id::text,
	COALESCE(notes, ''), COALESCE(cancel_reason, ''), created_at, cancelled_at
`

func scanReservation(row pgx.Row) (model.Reservation, error) {
	var res model.Reservation
	var sessionID *string
	var cancelledAt *time.Time
	err := row.Scan(
		&res.ID, &res.ClientID, &res.Provider.Kind, &res.Provider.ID, &res.ServiceName,
		&res.Day, &res.StartMinute, &res.DurationMinutes, &res.Status, &sessionID,
		&res.Notes, &res.CancelReason, &res.CreatedAt, &cancelledAt,
	)
	if err != nil {
		return model.Reservation{}, err
	}
	res.GroupSessionID = sessionID
	res.CancelledAt = cancelledAt
	return res, nil
}

func (r *ReservationRepository) Create(ctx context.Context, tx pgx.Tx, res *model.Reservation) error {
	return tx.QueryRow(ctx, `
		INSERT INTO reservations
			(id, client_id, provider_kind, provider_id, service_name, day,
			 start_minute, duration_minutes, status, group_session_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`, res.ID, res.ClientID, res.Provider.Kind, res.Provider.ID, res.ServiceName, res.Day,
		res.StartMinute, res.DurationMinutes, res.Status, res.GroupSessionID, res.Notes,
	).Scan(&res.CreatedAt)
}

func (r *ReservationRepository) Get(ctx context.Context, id string) (model.Reservation, error) {
	return scanReservation(r.pool.QueryRow(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE id = $1
	`, id))
}

// GetForUpdate row-locks the reservation so concurrent cancels and retries
// observe each other.
func (r *ReservationRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Reservation, error) {
	return scanReservation(tx.QueryRow(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE id = $1
		FOR UPDATE
	`, id))
}

func (r *ReservationRepository) SetStatus(ctx context.Context, tx pgx.Tx, id, status, reason string) (time.Time, error) {
	var at time.Time
	err := tx.QueryRow(ctx, `
		UPDATE reservations
		SET status = $2,
			cancel_reason = $3,
			cancelled_at = CASE WHEN $2 IN ('CANCELLED', 'REJECTED') THEN now() ELSE cancelled_at END,
			updated_at = now()
		WHERE id = $1
		RETURNING COALESCE(cancelled_at, now())
	`, id, status, reason).Scan(&at)
	return at, err
}

func (r *ReservationRepository) UpdateSlot(ctx context.Context, tx pgx.Tx, id string, day time.Time, startMinute int, notes string) error {
	_, err := tx.Exec(ctx, `
		UPDATE reservations
		SET day = $2,
			start_minute = $3,
			notes = $4,
			updated_at = now()
		WHERE id = $1
	`, id, day, startMinute, notes)
	return err
}

func (r *ReservationRepository) Delete(ctx context.Context, tx pgx.Tx, id string) error {
	_, err := tx.Exec(ctx, `
		DELETE FROM reservations
		WHERE id = $1
	`, id)
	return err
}

// ListOpenForDay returns PENDING and CONFIRMED reservations on the provider's
// day, the drift guard input for the conflict check.
func (r *ReservationRepository) ListOpenForDay(ctx context.Context, provider model.ProviderRef, day time.Time) ([]model.Reservation, error) {
	return r.list(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE provider_kind = $1 AND provider_id = $2 AND day = $3
			AND status IN ('PENDING', 'CONFIRMED')
		ORDER BY start_minute ASC
	`, provider.Kind, provider.ID, day)
}

func (r *ReservationRepository) ListByClient(ctx context.Context, clientID string, limit int) ([]model.Reservation, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.list(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE client_id = $1
		ORDER BY day DESC, start_minute DESC
		LIMIT $2
	`, clientID, limit)
}

func (r *ReservationRepository) ListByProvider(ctx context.Context, provider model.ProviderRef, limit int) ([]model.Reservation, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.list(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE provider_kind = $1 AND provider_id = $2
		ORDER BY day DESC, start_minute DESC
		LIMIT $3
	`, provider.Kind, provider.ID, limit)
}

// CountOpenForSession counts seat-holding reservations on a group session,
// used to assert capacity conservation.
func (r *ReservationRepository) CountOpenForSession(ctx context.Context, tx pgx.Tx, sessionID string) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM reservations
		WHERE group_session_id = $1 AND status IN ('PENDING', 'CONFIRMED')
	`, sessionID).Scan(&n)
	return n, err
}

func (r *ReservationRepository) list(ctx context.Context, sql string, args ...any) ([]model.Reservation, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
