package model

// WeeklyWindow is the legacy single-window-per-day availability representation.
// At most one active row exists per (provider, weekday).
type WeeklyWindow struct {
	Provider    ProviderRef
	Weekday     int // 0 = Sunday ... 6 = Saturday
	StartMinute int // minutes from midnight, half-open [start, end)
	EndMinute   int
	Active      bool
}

// DaySchedule is the newer representation: an availability flag per weekday
// with multi-window open time and explicit break windows underneath.
type DaySchedule struct {
	ID        string
	Provider  ProviderRef
	Weekday   int
	Available bool
}

type TimeWindow struct {
	ID            string
	DayScheduleID string
	StartMinute   int
	EndMinute     int
	Active        bool
}

type BreakWindow struct {
	ID            string
	DayScheduleID string
	StartMinute   int
	EndMinute     int
	Active        bool
}
