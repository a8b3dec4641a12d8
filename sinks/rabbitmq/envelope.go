package rabbitmq

import (
	"context"
	"log/slog"
	"time"

	"github.com/BranchIntl/postqueue/queue"
)

// Envelope is the JSON message body published for each queue event
type Envelope struct {
	Event     string    `json:"event"`
	ItemID    string    `json:"item_id"`
	Status    string    `json:"status"`
	Priority  int       `json:"priority"`
	Attempt   int       `json:"attempt"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventPublisher delivers envelopes somewhere
type EventPublisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// NewEnvelope describes item as seen by an event
func NewEnvelope[T any](event queue.Event, item queue.Item[T]) Envelope {
	return Envelope{
		Event:     string(event),
		ItemID:    item.ID,
		Status:    string(item.Status),
		Priority:  item.Priority,
		Attempt:   item.Attempt,
		Error:     item.LastError,
		Timestamp: item.UpdatedAt,
	}
}

// Attach forwards the given events of bus to p, or every event when none
// are named. Publish failures are logged and never reach the queue. The
// returned func detaches the listeners.
func Attach[T any](p EventPublisher, bus *queue.Bus[T], logger *slog.Logger, events ...queue.Event) func() {
	if logger == nil {
		logger = slog.Default()
	}
	if len(events) == 0 {
		events = queue.Events
	}

	listeners := make(map[queue.Event]*queue.Listener[T], len(events))
	for _, event := range events {
		event := event
		l := queue.Listen(func(item queue.Item[T], _ any) error {
			if err := p.Publish(context.Background(), NewEnvelope(event, item)); err != nil {
				logger.Warn("Failed to publish queue event",
					"event", event, "item", item.ID, "error", err)
			}
			return nil
		})
		listeners[event] = l
		bus.On(event, l)
	}

	return func() {
		for event, l := range listeners {
			bus.Off(event, l)
		}
	}
}
