package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	appointmentx "github.com/tanpawarit/voice-appointment-agent/agent/appointment"
	contractx "github.com/tanpawarit/voice-appointment-agent/agent/contract"
)

var errMissingArg = errors.New("argument is required")

type ToolboxOption func(*Toolbox)

func WithEventPublisher(p contractx.EventPublisher) ToolboxOption {
	return func(t *Toolbox) {
		if p != nil {
			t.events = p
		}
	}
}

// WithPhoneRegion enables a possibility check on contact numbers for the
// given CLDR region (for example "IN" or "US").
func WithPhoneRegion(region string) ToolboxOption {
	return func(t *Toolbox) {
		t.phoneRegion = strings.ToUpper(strings.TrimSpace(region))
	}
}

// Toolbox holds the collaborators shared by the appointment tools.
type Toolbox struct {
	store       appointmentx.Store
	events      contractx.EventPublisher
	phoneRegion string
}

func NewToolbox(store appointmentx.Store, opts ...ToolboxOption) (*Toolbox, error) {
	if store == nil {
		return nil, errors.New("appointment store is required")
	}
	t := &Toolbox{
		store:  store,
		events: contractx.NopPublisher{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t, nil
}

// Handlers returns the tool bodies keyed by tool name.
func (t *Toolbox) Handlers() map[string]Handler {
	return map[string]Handler{
		ToolIdentifyUser:         t.IdentifyUser,
		ToolFetchSlots:           t.FetchSlots,
		ToolBookAppointment:      t.BookAppointment,
		ToolRetrieveAppointments: t.RetrieveAppointments,
		ToolCancelAppointment:    t.CancelAppointment,
		ToolModifyAppointment:    t.ModifyAppointment,
		ToolEndConversation:      t.EndConversation,
	}
}

func (t *Toolbox) publish(ctx context.Context, ev contractx.AppointmentEvent) {
	if err := t.events.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).
			Str("event", ev.Type).
			Str("conversation_id", ev.ConversationID).
			Msg("publish appointment event failed")
	}
}

func stringArg(args map[string]any, name string) (string, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return "", fmt.Errorf("%w: %s", errMissingArg, name)
	}
	v, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", name)
	}
	return strings.TrimSpace(v), nil
}

func storeFault(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", contractx.ErrStoreFault, op, err)
}
