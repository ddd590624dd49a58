package history

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType defines the kind of gateway lifecycle event.
type EventType string

const (
	EventStart       EventType = "start"
	EventStartFailed EventType = "start_failed"
	EventStop        EventType = "stop"
	EventStopFailed  EventType = "stop_failed"
	EventRestart     EventType = "restart"
	EventExit        EventType = "exit" // tracked gateway exited without a stop request
	EventInstall     EventType = "install"
)

// Event is one entry of the gateway lifecycle journal.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	PID        int       `json:"pid,omitempty"`
	RunID      string    `json:"run_id,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// NewEvent stamps an event with a fresh ID and the current time.
func NewEvent(t EventType) Event {
	return Event{ID: uuid.NewString(), Type: t, OccurredAt: time.Now().UTC()}
}

// Sink is a destination for history events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Reader returns the most recent events, newest first.
type Reader interface {
	Recent(ctx context.Context, limit int) ([]Event, error)
}
