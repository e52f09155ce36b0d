package booking

import (
	"context"
	"errors"
	"time"

	"github.com/yordan-p/slotledger/internal/availability"
	"github.com/yordan-p/slotledger/internal/model"
	"github.com/yordan-p/slotledger/internal/schedule"
)

// DayProjection is a provider's day as a calendar UI consumes it: the
// normalized windows plus everything currently occupying them.
type DayProjection struct {
	Provider  model.ProviderRef
	Day       time.Time
	Available bool
	// WorkingHours are the open windows the calendar resolved for the day.
	WorkingHours []availability.TimeRange
	Breaks       []availability.TimeRange
	Booked       []availability.TimeRange
	ExternalBusy []availability.TimeRange
	// SlotStarts holds candidate free start minutes when a duration was
	// requested; nil otherwise.
	SlotStarts []int
}

// ProjectDay assembles the schedule projection. durationMinutes > 0 also
// computes free slot starts at stepMinutes granularity (default 15).
func (s *Service) ProjectDay(ctx context.Context, provider model.ProviderRef, day time.Time, durationMinutes, stepMinutes int) (DayProjection, error) {
	if !provider.Kind.Valid() || provider.ID == "" {
		return DayProjection{}, validationf("invalid provider reference")
	}
	proj := DayProjection{Provider: provider, Day: day}

	windows, err := s.calendar.WindowsForDay(ctx, provider, day)
	if err != nil {
		if errors.Is(err, schedule.ErrDayUnavailable) {
			return proj, nil
		}
		return DayProjection{}, err
	}
	proj.Available = true
	proj.WorkingHours = windows.Open
	proj.Breaks = windows.Breaks

	ranges, err := s.ledger.ListForDay(ctx, provider, day)
	if err != nil {
		return DayProjection{}, err
	}
	for _, br := range ranges {
		r := availability.TimeRange{StartMinute: br.StartMinute, EndMinute: br.EndMinute}
		if br.Reason == model.RangeBreak {
			proj.Breaks = append(proj.Breaks, r)
		} else {
			proj.Booked = append(proj.Booked, r)
		}
	}
	if s.overlay != nil {
		proj.ExternalBusy = s.overlay.BusyMinutes(ctx, provider, day)
	}

	if durationMinutes > 0 {
		if stepMinutes <= 0 {
			stepMinutes = 15
		}
		busy := make([]availability.TimeRange, 0, len(proj.Breaks)+len(proj.Booked)+len(proj.ExternalBusy))
		busy = append(busy, proj.Breaks...)
		busy = append(busy, proj.Booked...)
		busy = append(busy, proj.ExternalBusy...)

		nowMinute := -1
		now := s.now()
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		if day.Equal(today) {
			nowMinute = availability.MinuteOfDay(now)
		}
		for _, w := range proj.WorkingHours {
			proj.SlotStarts = append(proj.SlotStarts, availability.SlotStarts(w, durationMinutes, stepMinutes, busy, nowMinute)...)
		}
	}
	return proj, nil
}
