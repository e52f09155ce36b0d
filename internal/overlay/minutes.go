package overlay

import (
	"context"
	"time"

	"github.com/yordan-p/slotledger/internal/availability"
	"github.com/yordan-p/slotledger/internal/model"
)

// BusyMinutes fetches the provider's external busy time for one calendar day
// and projects it onto that day's minute grid. Ranges that only touch the day
// at a boundary are dropped; multi-day events are clamped to the day.
func (c *Client) BusyMinutes(ctx context.Context, provider model.ProviderRef, day time.Time) []availability.TimeRange {
	from, to := availability.DayBounds(day)
	var out []availability.TimeRange
	for _, br := range c.BusyRanges(ctx, provider, from, to) {
		if r, ok := availability.ClampToDay(day, br.Start, br.End); ok {
			out = append(out, r)
		}
	}
	return out
}
