package worker

import (
	"context"
	"log/slog"
	"time"

	"venue-vote/internal/platform/events"
	"venue-vote/internal/retry"
)

// EventWorker forwards lifecycle events from a buffered channel to a
// publisher, off the request path.
type EventWorker struct {
	Ch        <-chan events.Event
	publisher events.Publisher
	timeout   time.Duration
	retry     retry.Policy
}

func NewEventWorker(ch <-chan events.Event, p events.Publisher) *EventWorker {
	return &EventWorker{
		Ch:        ch,
		publisher: p,
		timeout:   5 * time.Second,
		retry:     retry.Policy{Attempts: 3, BaseDelay: 200 * time.Millisecond},
	}
}

func (w *EventWorker) Run(ctx context.Context) {
	slog.Info("event worker started")
	for {
		select {
		case <-ctx.Done():
			w.drain()
			slog.Info("event worker stopped")
			return
		case ev := <-w.Ch:
			w.publish(context.Background(), ev)
		}
	}
}

// drain publishes whatever is already buffered at shutdown.
func (w *EventWorker) drain() {
	for {
		select {
		case ev := <-w.Ch:
			w.publish(context.Background(), ev)
		default:
			return
		}
	}
}

func (w *EventWorker) publish(ctx context.Context, ev events.Event) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	err := retry.Do(ctx, w.retry, func(ctx context.Context) error {
		return w.publisher.Publish(ctx, ev)
	})
	if err != nil {
		slog.Warn("event publish failed", "type", ev.Type, "session_id", ev.SessionID, "error", err)
	}
}

// Emit queues ev without blocking. A full buffer drops the event.
func Emit(ch chan<- events.Event, ev events.Event) {
	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	default:
		slog.Warn("event buffer full, dropping", "type", ev.Type, "session_id", ev.SessionID)
	}
}
