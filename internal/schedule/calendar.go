// Package schedule resolves a provider's open and break windows for a given
// day, reconciling the two availability representations that may coexist for
// one provider. Callers only ever see normalized minute ranges.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yordan-p/slotledger/internal/availability"
	"github.com/yordan-p/slotledger/internal/model"
)

// ErrDayUnavailable means neither representation opens the provider's day.
var ErrDayUnavailable = errors.New("provider is not available on this day")

// DayUnavailableReason is the user-facing form of ErrDayUnavailable.
const DayUnavailableReason = "Provider is not available on this day"

// Store is the persistence the calendar reads from.
type Store interface {
	// ActiveWeeklyWindow returns the legacy single window for the weekday,
	// when one exists and is active.
	ActiveWeeklyWindow(ctx context.Context, provider model.ProviderRef, weekday int) (model.WeeklyWindow, bool, error)
	// DayScheduleDetail returns the newer representation with its child
	// windows, when a schedule row exists for the weekday.
	DayScheduleDetail(ctx context.Context, provider model.ProviderRef, weekday int) (DayScheduleDetail, bool, error)
}

type DayScheduleDetail struct {
	Schedule model.DaySchedule
	Windows  []model.TimeWindow
	Breaks   []model.BreakWindow
}

// DayWindows is the normalized availability for one provider day.
type DayWindows struct {
	Open   []availability.TimeRange
	Breaks []availability.TimeRange
}

type Calendar struct {
	store Store
}

func NewCalendar(store Store) *Calendar {
	return &Calendar{store: store}
}

// WindowsForDay resolves the canonical open and break windows for the date.
// The legacy weekly window wins when present; the day-schedule representation
// is the fallback; with neither, the day is unavailable.
func (c *Calendar) WindowsForDay(ctx context.Context, provider model.ProviderRef, day time.Time) (DayWindows, error) {
	weekday := int(day.Weekday())

	weekly, ok, err := c.store.ActiveWeeklyWindow(ctx, provider, weekday)
	if err != nil {
		return DayWindows{}, fmt.Errorf("load weekly window: %w", err)
	}
	if ok {
		// The legacy representation carries no break concept at this layer;
		// legacy providers record breaks as BREAK ledger entries instead.
		return DayWindows{
			Open: []availability.TimeRange{{StartMinute: weekly.StartMinute, EndMinute: weekly.EndMinute}},
		}, nil
	}

	detail, ok, err := c.store.DayScheduleDetail(ctx, provider, weekday)
	if err != nil {
		return DayWindows{}, fmt.Errorf("load day schedule: %w", err)
	}
	if !ok || !detail.Schedule.Available {
		return DayWindows{}, ErrDayUnavailable
	}

	var out DayWindows
	for _, w := range detail.Windows {
		if !w.Active {
			continue
		}
		out.Open = append(out.Open, availability.TimeRange{StartMinute: w.StartMinute, EndMinute: w.EndMinute})
	}
	for _, b := range detail.Breaks {
		if !b.Active {
			continue
		}
		out.Breaks = append(out.Breaks, availability.TimeRange{StartMinute: b.StartMinute, EndMinute: b.EndMinute})
	}
	if len(out.Open) == 0 {
		return DayWindows{}, ErrDayUnavailable
	}
	return out, nil
}
