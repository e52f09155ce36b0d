package availability

import (
	"testing"
	"time"
)

func TestTimeRangeOverlaps(t *testing.T) {
	cases := []struct {
		name string
		a, b TimeRange
		want bool
	}{
		{"disjoint", TimeRange{540, 600}, TimeRange{660, 720}, false},
		{"touching endpoints", TimeRange{540, 600}, TimeRange{600, 660}, false},
		{"partial", TimeRange{540, 630}, TimeRange{600, 660}, true},
		{"contained", TimeRange{540, 720}, TimeRange{600, 660}, true},
		{"identical", TimeRange{540, 600}, TimeRange{540, 600}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.a.Overlaps(tc.b); got != tc.want {
				t.Fatalf("Overlaps(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
			if got := tc.b.Overlaps(tc.a); got != tc.want {
				t.Fatalf("Overlaps(%v, %v) = %v, want %v", tc.b, tc.a, got, tc.want)
			}
		})
	}
}

func TestFitsWithinAny(t *testing.T) {
	windows := []TimeRange{{540, 720}, {780, 1080}}

	if !FitsWithinAny(TimeRange{600, 660}, windows) {
		t.Fatal("expected 10:00-11:00 to fit inside 09:00-12:00")
	}
	// No splicing across windows: 11:30-13:30 straddles the lunch gap.
	if FitsWithinAny(TimeRange{690, 810}, windows) {
		t.Fatal("range straddling two windows must not fit")
	}
	if FitsWithinAny(TimeRange{700, 760}, windows) {
		t.Fatal("range hanging past a window end must not fit")
	}
}

func TestSlotStarts(t *testing.T) {
	window := TimeRange{540, 600} // 09:00-10:00
	busy := []TimeRange{{555, 585}}

	starts := SlotStarts(window, 15, 15, busy, -1)
	if len(starts) != 2 {
		t.Fatalf("expected 2 starts, got %v", starts)
	}
	if starts[0] != 540 || starts[1] != 585 {
		t.Fatalf("expected [540 585], got %v", starts)
	}
}

func TestSlotStartsSkipsPast(t *testing.T) {
	window := TimeRange{540, 600}

	starts := SlotStarts(window, 15, 15, nil, 571)
	// 09:00, 09:15, 09:30 are in the past. 09:45 remains.
	if len(starts) != 1 || starts[0] != 585 {
		t.Fatalf("expected [585], got %v", starts)
	}
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"09:00", 540, false},
		{"00:00", 0, false},
		{"24:00", 1440, false},
		{"23:59", 1439, false},
		{"9:30", 570, false},
		{"24:01", 0, true},
		{"25:00", 0, true},
		{"nine", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseClock(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseClock(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseClock(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseClock(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestClampToDay(t *testing.T) {
	day := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

	r, ok := ClampToDay(day, day.Add(9*time.Hour), day.Add(10*time.Hour))
	if !ok || r.StartMinute != 540 || r.EndMinute != 600 {
		t.Fatalf("in-day clamp: got %v ok=%v", r, ok)
	}

	// Spans into the next day: clipped at midnight.
	r, ok = ClampToDay(day, day.Add(23*time.Hour), day.Add(26*time.Hour))
	if !ok || r.StartMinute != 1380 || r.EndMinute != MinutesPerDay {
		t.Fatalf("overnight clamp: got %v ok=%v", r, ok)
	}

	// Entirely on another day.
	if _, ok = ClampToDay(day, day.Add(30*time.Hour), day.Add(31*time.Hour)); ok {
		t.Fatal("expected miss for range on another day")
	}
}
