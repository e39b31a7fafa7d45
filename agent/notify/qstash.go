package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/voice-appointment-agent/agent/contract"
	"github.com/tanpawarit/voice-appointment-agent/pkg/qstash"
)

// MessagePublisher is the subset of the QStash client used here.
type MessagePublisher interface {
	Publish(ctx context.Context, destination string, body []byte, opts ...qstash.PublishOption) (string, error)
}

// QStashPublisher forwards appointment lifecycle events to a QStash topic or
// URL so downstream systems (reminders, CRM sync) can react to them.
type QStashPublisher struct {
	client      MessagePublisher
	destination string
}

var _ contractx.EventPublisher = (*QStashPublisher)(nil)

func NewQStashPublisher(client MessagePublisher, destination string) (*QStashPublisher, error) {
	if client == nil {
		return nil, errors.New("qstash client is required")
	}
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return nil, errors.New("qstash destination is required")
	}
	return &QStashPublisher{client: client, destination: destination}, nil
}

func (p *QStashPublisher) Publish(ctx context.Context, ev contractx.AppointmentEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}

	id, err := p.client.Publish(ctx, p.destination, body, qstash.WithDeduplicationID(dedupID(ev)))
	if err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Type, err)
	}

	log.Debug().
		Str("event", ev.Type).
		Str("conversation_id", ev.ConversationID).
		Str("message_id", id).
		Msg("appointment event published")
	return nil
}

func dedupID(ev contractx.AppointmentEvent) string {
	if ev.AppointmentID == "" {
		return ""
	}
	return strings.ReplaceAll(ev.Type, ".", "-") + "-" + ev.AppointmentID
}
