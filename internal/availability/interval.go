package availability

// MinutesPerDay bounds every clock-minute value handled by the engine.
// Ranges that would cross midnight are rejected upstream, not rolled over.
const MinutesPerDay = 24 * 60

// TimeRange is a half-open [StartMinute, EndMinute) interval of minutes from
// midnight. All times are provider-local; touching endpoints never overlap.
type TimeRange struct {
	StartMinute int
	EndMinute   int
}

func (r TimeRange) Valid() bool {
	return r.StartMinute >= 0 && r.EndMinute <= MinutesPerDay && r.EndMinute > r.StartMinute
}

// Overlaps reports whether two half-open ranges intersect:
// [a,b) overlaps [c,d) iff a < d && c < b.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return r.StartMinute < other.EndMinute && other.StartMinute < r.EndMinute
}

// Contains reports whether other fits entirely inside r. A candidate must fit
// inside a single open window; partial overlap is a rejection, not a truncation.
func (r TimeRange) Contains(other TimeRange) bool {
	return r.StartMinute <= other.StartMinute && other.EndMinute <= r.EndMinute
}

// OverlapsAny reports whether r intersects any of the given ranges.
func OverlapsAny(r TimeRange, ranges []TimeRange) bool {
	for _, other := range ranges {
		if r.Overlaps(other) {
			return true
		}
	}
	return false
}

// FitsWithinAny reports whether some window wholly contains r.
func FitsWithinAny(r TimeRange, windows []TimeRange) bool {
	for _, w := range windows {
		if w.Contains(r) {
			return true
		}
	}
	return false
}

// SlotStarts returns candidate start minutes inside window where a booking of
// durationMinutes would not overlap any busy range. Starts before nowMinute are
// skipped; pass a negative nowMinute for a day entirely in the future.
func SlotStarts(window TimeRange, durationMinutes, stepMinutes int, busy []TimeRange, nowMinute int) []int {
	if durationMinutes <= 0 || stepMinutes <= 0 {
		return nil
	}
	if !window.Valid() {
		return nil
	}

	var starts []int
	for t := window.StartMinute; t+durationMinutes <= window.EndMinute; t += stepMinutes {
		if t < nowMinute {
			continue
		}
		candidate := TimeRange{StartMinute: t, EndMinute: t + durationMinutes}
		if !OverlapsAny(candidate, busy) {
			starts = append(starts, t)
		}
	}
	return starts
}
