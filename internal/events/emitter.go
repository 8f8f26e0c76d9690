// Package events provides the fire-and-forget domain event capability.
// Delivery is best-effort: emission never blocks a request and failures are
// logged, not returned to callers.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// TaskTypeRecord is the task type carrying emitted domain events.
const TaskTypeRecord = "event:record"

// Payload is the wire shape of an emitted event.
type Payload struct {
	Event      string         `json:"event"`
	ActorID    int64          `json:"actor_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Emitter publishes domain events for interested collaborators.
type Emitter interface {
	Emit(ctx context.Context, event string, actorID int64, data map[string]any)
}

// AsynqEmitter enqueues events onto the background queue.
type AsynqEmitter struct {
	client *asynq.Client
	logger *slog.Logger
}

// NewAsynqEmitter builds an emitter backed by the given asynq client.
func NewAsynqEmitter(client *asynq.Client, logger *slog.Logger) *AsynqEmitter {
	return &AsynqEmitter{client: client, logger: logger}
}

// Emit enqueues the event. Errors are swallowed after logging; emission
// carries no delivery guarantee.
func (e *AsynqEmitter) Emit(ctx context.Context, event string, actorID int64, data map[string]any) {
	if e == nil || e.client == nil {
		return
	}
	payload := Payload{Event: event, ActorID: actorID, Data: data, OccurredAt: time.Now().UTC()}
	raw, err := json.Marshal(payload)
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("event marshal", slog.String("event", event), slog.Any("error", err))
		}
		return
	}
	if _, err := e.client.EnqueueContext(ctx, asynq.NewTask(TaskTypeRecord, raw)); err != nil {
		if e.logger != nil {
			e.logger.Warn("event enqueue", slog.String("event", event), slog.Any("error", err))
		}
	}
}

// Noop discards every event. Used in tests and when no queue is configured.
type Noop struct{}

// Emit implements Emitter.
func (Noop) Emit(context.Context, string, int64, map[string]any) {}

var (
	_ Emitter = (*AsynqEmitter)(nil)
	_ Emitter = Noop{}
)
