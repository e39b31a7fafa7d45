package tool

import (
	"context"

	appointmentx "github.com/tanpawarit/voice-appointment-agent/agent/appointment"
	contractx "github.com/tanpawarit/voice-appointment-agent/agent/contract"
	statex "github.com/tanpawarit/voice-appointment-agent/agent/state"
)

type FetchSlotsOutput struct {
	Slots []appointmentx.Slot `json:"slots"`
}

// FetchSlots recomputes availability from the store: the catalog minus every
// (date, time) that currently holds a BOOKED appointment for anyone.
func (t *Toolbox) FetchSlots(ctx context.Context, sess *statex.Session, _ map[string]any) (contractx.ToolResult, error) {
	if err := t.refreshAvailability(ctx, sess); err != nil {
		return contractx.ToolResult{}, err
	}
	slots, _ := sess.AvailableSlots()
	return contractx.Success(ToolFetchSlots, FetchSlotsOutput{Slots: slots}), nil
}

func (t *Toolbox) refreshAvailability(ctx context.Context, sess *statex.Session) error {
	booked, err := t.store.ListAll(ctx, appointmentx.StatusBooked)
	if err != nil {
		return storeFault("list booked appointments", err)
	}
	sess.SetAvailableSlots(appointmentx.Available(sess.SlotCatalog(), booked))
	return nil
}
