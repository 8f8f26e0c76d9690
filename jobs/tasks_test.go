package jobs

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/employdex/base-platform/internal/audit"
	"github.com/employdex/base-platform/internal/events"
)

type captureSink struct {
	entries []audit.Entry
}

func (c *captureSink) Record(ctx context.Context, entry audit.Entry) error {
	c.entries = append(c.entries, entry)
	return nil
}

func TestHandleEventRecordTaskPersistsEntry(t *testing.T) {
	sink := &captureSink{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := HandleEventRecordTask(sink, logger)

	occurred := time.Now().UTC().Truncate(time.Second)
	raw, err := json.Marshal(events.Payload{
		Event:      "user.created",
		ActorID:    7,
		Data:       map[string]any{"user_id": float64(42)},
		OccurredAt: occurred,
	})
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), asynq.NewTask(events.TaskTypeRecord, raw)))
	require.Len(t, sink.entries, 1)
	require.Equal(t, "user.created", sink.entries[0].Action)
	require.Equal(t, int64(7), sink.entries[0].ActorID)
	require.Equal(t, occurred, sink.entries[0].At)
}

func TestHandleEventRecordTaskSkipsGarbage(t *testing.T) {
	sink := &captureSink{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := HandleEventRecordTask(sink, logger)

	err := handler(context.Background(), asynq.NewTask(events.TaskTypeRecord, []byte("{not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Empty(t, sink.entries)
}
