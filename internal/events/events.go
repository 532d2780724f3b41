package events

import (
	"context"
	"time"

	"judoclub/internal/logger"
	"judoclub/internal/metrics"

	"github.com/google/uuid"
)

const (
	TypeBookingCreated   = "booking.created"
	TypeBookingCancelled = "booking.cancelled"
	TypeBookingPromoted  = "booking.promoted"
	TypeCheckInRecorded  = "checkin.recorded"
	TypeCheckInRejected  = "checkin.rejected"
)

type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

func New(eventType string, at time.Time, data any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: at.UTC(),
		Data:       data,
	}
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// LogPublisher writes events to the structured log instead of a broker.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, ev Event) error {
	logger.Info("event", "id", ev.ID, "type", ev.Type, "occurred_at", ev.OccurredAt, "data", ev.Data)
	metrics.RecordEvent(ev.Type, "ok")
	return nil
}

func (LogPublisher) Close() error { return nil }

// PublishBestEffort publishes ev and logs a failure instead of returning it.
// Domain transitions are already committed when events go out.
func PublishBestEffort(ctx context.Context, p Publisher, ev Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		logger.Error("publish event failed", "type", ev.Type, "id", ev.ID, "error", err)
	}
}
