package eventstream

import (
	"time"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeRecordMutated is emitted after a user's record is committed.
	EventTypeRecordMutated = "recall.record.mutated"
)

// RecordMutatedEvent is a transport-neutral event payload for a committed
// record mutation. Consumers read current state from the memory API; the
// event only announces that and how a record changed.
type RecordMutatedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
	UserID        string    `json:"user_id"`
	Action        string    `json:"action"`
	EventCount    int       `json:"event_count"`
	Durable       bool      `json:"durable"`
}
