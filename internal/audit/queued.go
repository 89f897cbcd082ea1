package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"attendance-kiosk/internal/queue"
)

// MessageType tags audit events on a shared queue.
const MessageType = "audit"

// Queued hands events to a queue so the request path never waits on the
// audit insert. If publishing fails the event is written synchronously.
type Queued struct {
	q        queue.Queue
	fallback *Log
}

// NewQueued creates a queue-backed recorder; fallback handles publish failures.
func NewQueued(q queue.Queue, fallback *Log) *Queued {
	return &Queued{q: q, fallback: fallback}
}

// Record publishes the event.
func (r *Queued) Record(ctx context.Context, kind, detail string) {
	e := r.fallback.build(kind, detail)
	body, err := json.Marshal(e)
	if err == nil {
		err = r.q.Publish(context.WithoutCancel(ctx), queue.Message{Type: MessageType, Body: body})
	}
	if err != nil {
		r.fallback.logger.Warn("audit publish failed, writing directly", "event", kind, "error", err)
		r.fallback.append(ctx, e)
	}
}

// Drain appends queued audit events until the consumer channel closes.
// Events that fail to decode or store are logged and dropped.
func Drain(ctx context.Context, q queue.Queue, store Appender, logger *slog.Logger) error {
	msgs, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range msgs {
		if msg.Type != MessageType {
			continue
		}
		var e Event
		if err := json.Unmarshal(msg.Body, &e); err != nil {
			logger.Error("audit message decode failed", "error", err)
			continue
		}
		if err := store.Append(context.WithoutCancel(ctx), e); err != nil {
			logger.Error("audit write failed", "event", e.Kind, "error", err)
		}
	}
	return nil
}
