package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/yordan-p/slotledger/internal/model"
	"github.com/yordan-p/slotledger/libs/db"
)

type SessionRepository struct {
	pool *db.Pool
}

func NewSessionRepository(pool *db.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `
	id::text, provider_kind, provider_id, service_name, day, start_minute,
	duration_minutes, capacity, booked_slots, status, created_at
`

func scanSession(row pgx.Row) (model.GroupSession, error) {
	var s model.GroupSession
	err := row.Scan(
		&s.ID, &s.Provider.Kind, &s.Provider.ID, &s.ServiceName, &s.Day, &s.StartMinute,
		&s.DurationMinutes, &s.Capacity, &s.BookedSlots, &s.Status, &s.CreatedAt,
	)
	return s, err
}

func (r *SessionRepository) Create(ctx context.Context, tx pgx.Tx, s *model.GroupSession) error {
	return tx.QueryRow(ctx, `
		INSERT INTO group_sessions
			(id, provider_kind, provider_id, service_name, day, start_minute,
			 duration_minutes, capacity, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, s.ID, s.Provider.Kind, s.Provider.ID, s.ServiceName, s.Day, s.StartMinute,
		s.DurationMinutes, s.Capacity, s.Status,
	).Scan(&s.CreatedAt)
}

func (r *SessionRepository) Get(ctx context.Context, id string) (model.GroupSession, error) {
	return scanSession(r.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM group_sessions
		WHERE id = $1
	`, id))
}

// ReserveSeat consumes one seat. Zero rows affected means full or not ACTIVE.
func (r *SessionRepository) ReserveSeat(ctx context.Context, tx pgx.Tx, id string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE group_sessions
		SET booked_slots = booked_slots + 1,
			updated_at = now()
		WHERE id = $1 AND status = 'ACTIVE' AND booked_slots < capacity
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ReleaseSeat returns one seat, flooring at zero so a retried release can
// never drive the counter negative.
func (r *SessionRepository) ReleaseSeat(ctx context.Context, tx pgx.Tx, id string) error {
	_, err := tx.Exec(ctx, `
		UPDATE group_sessions
		SET booked_slots = GREATEST(booked_slots - 1, 0),
			updated_at = now()
		WHERE id = $1
	`, id)
	return err
}

// SetStatus transitions out of ACTIVE. Zero rows affected means the session
// was already closed.
func (r *SessionRepository) SetStatus(ctx context.Context, tx pgx.Tx, id, status string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE group_sessions
		SET status = $2,
			updated_at = now()
		WHERE id = $1 AND status = 'ACTIVE'
	`, id, status)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *SessionRepository) ListByProvider(ctx context.Context, provider model.ProviderRef, limit int) ([]model.GroupSession, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM group_sessions
		WHERE provider_kind = $1 AND provider_id = $2
		ORDER BY day DESC, start_minute DESC
		LIMIT $3
	`, provider.Kind, provider.ID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.GroupSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
