package contract

import "context"

type EventPublisher interface {
	Publish(ctx context.Context, ev AppointmentEvent) error
}

type Summarizer interface {
	Summarize(ctx context.Context, req SummaryRequest) (string, error)
}

type SummaryStore interface {
	SaveSummary(ctx context.Context, conversationID, contactNumber, summary string) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, AppointmentEvent) error {
	return nil
}
