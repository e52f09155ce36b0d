package booking

import (
	"context"
	"time"

	"github.com/yordan-p/slotledger/internal/availability"
	"github.com/yordan-p/slotledger/internal/model"
)

// AddBlock records provider-entered occupied time (break, vacation, personal,
// other). Blocks never carry the BOOKED reason and so may overlap existing
// bookings; the provider is stating intent, not claiming an exclusive range.
func (s *Service) AddBlock(ctx context.Context, actor Actor, provider model.ProviderRef, day time.Time, startMinute, endMinute int, reason, note string) (model.BookedRange, error) {
	if !actor.ownsProvider(provider) {
		return model.BookedRange{}, &PermissionError{Msg: "only the provider can block time"}
	}
	if reason == model.RangeBooked || !model.ValidRangeReason(reason) {
		return model.BookedRange{}, validationf("invalid block reason %q", reason)
	}
	r := availability.TimeRange{StartMinute: startMinute, EndMinute: endMinute}
	if !r.Valid() {
		return model.BookedRange{}, validationf("invalid time range")
	}
	return s.ledger.InsertBlock(ctx, provider, day, startMinute, endMinute, reason, note)
}

func (s *Service) RemoveBlock(ctx context.Context, actor Actor, provider model.ProviderRef, blockID string) error {
	if !actor.ownsProvider(provider) {
		return &PermissionError{Msg: "only the provider can unblock time"}
	}
	ok, err := s.ledger.DeleteBlock(ctx, provider, blockID)
	if err != nil {
		return err
	}
	if !ok {
		return &NotFoundError{Kind: "block", ID: blockID}
	}
	return nil
}
