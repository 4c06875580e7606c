// Package history appends worker lifecycle events to an external audit
// store. Sinks are best-effort: a failing sink never fails the lifecycle
// operation that produced the event.
package history

import (
	"context"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventStart EventType = "start"
	EventStop  EventType = "stop"
	EventPurge EventType = "purge" // stale record removed by status/clean
)

// Event is one lifecycle event of a supervised worker.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Worker     string    `json:"worker"`
	PID        int       `json:"pid"`
	LogPath    string    `json:"log_path,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// Sink is a destination for history events. Implementations must be safe
// for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}
