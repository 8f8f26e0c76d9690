package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/hibiken/asynq"

	"github.com/employdex/base-platform/internal/audit"
	"github.com/employdex/base-platform/internal/events"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendWelcome is the task type for the post-registration email.
	TaskTypeSendWelcome = "user:welcome"
)

// SendWelcomePayload describes the information required for a welcome email.
type SendWelcomePayload struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
}

// NewSendWelcomeTask constructs an Asynq task.
func NewSendWelcomeTask(payload SendWelcomePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendWelcome, data), nil
}

// HandleSendWelcomeTask processes TaskTypeSendWelcome tasks.
func HandleSendWelcomeTask(logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SendWelcomePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		// Placeholder until SMTP delivery is wired up.
		logger.Info("send welcome email",
			slog.String("to", payload.Email),
			slog.String("first_name", payload.FirstName))
		return nil
	}
}

// HandleEventRecordTask persists emitted domain events through the audit
// sink. A payload that does not decode is dropped rather than retried.
func HandleEventRecordTask(sink audit.Sink, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload events.Payload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		entry := audit.Entry{
			ActorID:  payload.ActorID,
			Action:   payload.Event,
			Entity:   "event",
			EntityID: strconv.FormatInt(payload.ActorID, 10),
			Meta:     payload.Data,
			At:       payload.OccurredAt,
		}
		if err := sink.Record(ctx, entry); err != nil {
			logger.Warn("record event", slog.String("event", payload.Event), slog.Any("error", err))
			return err
		}
		return nil
	}
}
