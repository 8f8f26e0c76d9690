// Package audit records and queries the activity log. Components receive an
// explicit Sink rather than publishing through ambient global state; delivery
// is best-effort and callers never fail a request on a sink error.
package audit

import (
	"context"
	"time"
)

// Entry is a single activity-log record.
type Entry struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// Sink accepts audit entries. Implementations must be safe to call from any
// request and must not block on downstream delivery.
type Sink interface {
	Record(ctx context.Context, entry Entry) error
}

// Discard is a Sink that drops every entry. Used in tests.
type Discard struct{}

// Record implements Sink.
func (Discard) Record(context.Context, Entry) error { return nil }
