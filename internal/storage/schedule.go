package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/yordan-p/slotledger/internal/model"
	"github.com/yordan-p/slotledger/internal/schedule"
	"github.com/yordan-p/slotledger/libs/db"
)

// ScheduleRepository persists both availability representations. It backs the
// calendar's read path and the provider-facing schedule management API.
type ScheduleRepository struct {
	pool *db.Pool
}

func NewScheduleRepository(pool *db.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

func (r *ScheduleRepository) ActiveWeeklyWindow(ctx context.Context, provider model.ProviderRef, weekday int) (model.WeeklyWindow, bool, error) {
	var w model.WeeklyWindow
	w.Provider = provider
	err := r.pool.QueryRow(ctx, `
		SELECT weekday, start_minute, end_minute, active
		FROM weekly_windows
		WHERE provider_kind = $1 AND provider_id = $2 AND weekday = $3 AND active
	`, provider.Kind, provider.ID, weekday).Scan(&w.Weekday, &w.StartMinute, &w.EndMinute, &w.Active)
	if err == pgx.ErrNoRows {
		return model.WeeklyWindow{}, false, nil
	}
	if err != nil {
		return model.WeeklyWindow{}, false, err
	}
	return w, true, nil
}

func (r *ScheduleRepository) DayScheduleDetail(ctx context.Context, provider model.ProviderRef, weekday int) (schedule.DayScheduleDetail, bool, error) {
	var detail schedule.DayScheduleDetail
	s := &detail.Schedule
	s.Provider = provider
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, weekday, available
		FROM day_schedules
		WHERE provider_kind = $1 AND provider_id = $2 AND weekday = $3
	`, provider.Kind, provider.ID, weekday).Scan(&s.ID, &s.Weekday, &s.Available)
	if err == pgx.ErrNoRows {
		return schedule.DayScheduleDetail{}, false, nil
	}
	if err != nil {
		return schedule.DayScheduleDetail{}, false, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id::text, day_schedule_id::text, start_minute, end_minute, active
		FROM time_windows
		WHERE day_schedule_id = $1
		ORDER BY start_minute ASC
	`, s.ID)
	if err != nil {
		return schedule.DayScheduleDetail{}, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var w model.TimeWindow
		if err := rows.Scan(&w.ID, &w.DayScheduleID, &w.StartMinute, &w.EndMinute, &w.Active); err != nil {
			return schedule.DayScheduleDetail{}, false, err
		}
		detail.Windows = append(detail.Windows, w)
	}
	if rows.Err() != nil {
		return schedule.DayScheduleDetail{}, false, rows.Err()
	}

	rows, err = r.pool.Query(ctx, `
		SELECT id::text, day_schedule_id::text, start_minute, end_minute, active
		FROM break_windows
		WHERE day_schedule_id = $1
		ORDER BY start_minute ASC
	`, s.ID)
	if err != nil {
		return schedule.DayScheduleDetail{}, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var b model.BreakWindow
		if err := rows.Scan(&b.ID, &b.DayScheduleID, &b.StartMinute, &b.EndMinute, &b.Active); err != nil {
			return schedule.DayScheduleDetail{}, false, err
		}
		detail.Breaks = append(detail.Breaks, b)
	}
	if rows.Err() != nil {
		return schedule.DayScheduleDetail{}, false, rows.Err()
	}

	return detail, true, nil
}

func (r *ScheduleRepository) ListWeeklyWindows(ctx context.Context, provider model.ProviderRef) ([]model.WeeklyWindow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT weekday, start_minute, end_minute, active
		FROM weekly_windows
		WHERE provider_kind = $1 AND provider_id = $2
		ORDER BY weekday ASC
	`, provider.Kind, provider.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WeeklyWindow
	for rows.Next() {
		w := model.WeeklyWindow{Provider: provider}
		if err := rows.Scan(&w.Weekday, &w.StartMinute, &w.EndMinute, &w.Active); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// UpsertWeeklyWindow keeps the at-most-one-active-row-per-weekday invariant of
// the legacy representation by replacing the row in place.
func (r *ScheduleRepository) UpsertWeeklyWindow(ctx context.Context, w model.WeeklyWindow) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO weekly_windows (provider_kind, provider_id, weekday, start_minute, end_minute, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider_kind, provider_id, weekday) DO UPDATE
		SET start_minute = EXCLUDED.start_minute,
			end_minute = EXCLUDED.end_minute,
			active = EXCLUDED.active
	`, w.Provider.Kind, w.Provider.ID, w.Weekday, w.StartMinute, w.EndMinute, w.Active)
	return err
}

// ReplaceDaySchedule rewrites one weekday of the newer representation: the
// availability flag and all child windows, atomically.
func (r *ScheduleRepository) ReplaceDaySchedule(ctx context.Context, provider model.ProviderRef, weekday int, available bool, windows []model.TimeWindow, breaks []model.BreakWindow) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var scheduleID string
	err = tx.QueryRow(ctx, `
		INSERT INTO day_schedules (id, provider_kind, provider_id, weekday, available)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (provider_kind, provider_id, weekday) DO UPDATE
		SET available = EXCLUDED.available
		RETURNING id::text
	`, uuid.NewString(), provider.Kind, provider.ID, weekday, available).Scan(&scheduleID)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM time_windows WHERE day_schedule_id = $1`, scheduleID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM break_windows WHERE day_schedule_id = $1`, scheduleID); err != nil {
		return err
	}
	for _, w := range windows {
		if _, err := tx.Exec(ctx, `
			INSERT INTO time_windows (id, day_schedule_id, start_minute, end_minute, active)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.NewString(), scheduleID, w.StartMinute, w.EndMinute, w.Active); err != nil {
			return err
		}
	}
	for _, b := range breaks {
		if _, err := tx.Exec(ctx, `
			INSERT INTO break_windows (id, day_schedule_id, start_minute, end_minute, active)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.NewString(), scheduleID, b.StartMinute, b.EndMinute, b.Active); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
