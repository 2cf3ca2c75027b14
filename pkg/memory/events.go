package memory

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultEventCap bounds the per-user event timeline. It is a guardrail
// against unbounded growth from large transcript ingestion.
const DefaultEventCap = 500

// eventKey is the identity used to decide whether two timeline entries
// represent the same item: the event id when present, otherwise a tuple of
// timestamps, title, and summary. The fallback exists because ingested
// transcripts may lack stable ids.
type eventKey struct {
	id         string
	capturedAt string
	occurredAt string
	title      string
	summary    string
}

func (e *Event) key() eventKey {
	if e.ID != "" {
		return eventKey{id: e.ID}
	}

	return eventKey{
		capturedAt: formatKeyTime(e.CapturedAt),
		occurredAt: formatKeyTime(e.OccurredAt),
		title:      e.Title,
		summary:    e.Summary,
	}
}

func formatKeyTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// DecodeEvents converts raw payload entries into typed events. Entries that
// are not structured objects are rejected with an *InputError and the whole
// batch is discarded; entries whose fields do not fit the event schema are
// rejected with a *ValidationError.
func DecodeEvents(raw []any) ([]Event, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	events := make([]Event, 0, len(raw))
	for i, entry := range raw {
		obj, ok := entry.(map[string]any)
		if !ok {
			return nil, &InputError{Reason: fmt.Sprintf("events[%d] must be an object", i)}
		}

		data, err := json.Marshal(obj)
		if err != nil {
			return nil, &InputError{Reason: fmt.Sprintf("events[%d] is not encodable: %v", i, err)}
		}

		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, &ValidationError{
				Field:  fmt.Sprintf("events[%d]", i),
				Reason: fmt.Sprintf("does not conform to event schema: %v", err),
			}
		}

		events = append(events, event)
	}

	return events, nil
}

// NormalizeEvents returns a copy of events with every entry stamped with a
// capture timestamp. Entries that already carry one are unchanged. The same
// normalization is applied to stored and incoming events so dedup keys are
// computed over identical shapes.
func NormalizeEvents(events []Event, now time.Time) []Event {
	if len(events) == 0 {
		return nil
	}

	normalized := make([]Event, len(events))
	copy(normalized, events)

	stamp := now.UTC()
	for i := range normalized {
		if normalized[i].CapturedAt == nil {
			captured := stamp
			normalized[i].CapturedAt = &captured
		}
	}

	return normalized
}

// MergeEvents merges an incoming batch of events into an existing timeline.
//
// Both sides are normalized first. When overwrite is set the result is
// exactly the normalized updates; this is the explicit replace path used for
// initial creation and administrative compaction. Otherwise each update is
// appended only when its dedup key has not been seen, in update order; first
// occurrence wins, so duplicates within the batch also collapse.
//
// The result is trimmed to cap, keeping the last cap entries — newest in
// append order, not wall-clock order. A cap of zero or below falls back to
// [DefaultEventCap].
func MergeEvents(existing, updates []Event, overwrite bool, cap int) []Event {
	if cap <= 0 {
		cap = DefaultEventCap
	}

	now := time.Now()
	existingNorm := NormalizeEvents(existing, now)
	updatesNorm := NormalizeEvents(updates, now)

	var merged []Event
	if overwrite {
		merged = updatesNorm
	} else {
		seen := make(map[eventKey]struct{}, len(existingNorm))
		for i := range existingNorm {
			seen[existingNorm[i].key()] = struct{}{}
		}

		merged = existingNorm
		for i := range updatesNorm {
			key := updatesNorm[i].key()
			if _, dup := seen[key]; dup {
				continue
			}
			merged = append(merged, updatesNorm[i])
			seen[key] = struct{}{}
		}
	}

	// Keep newest entries, trimmed to the cap.
	if len(merged) > cap {
		merged = merged[len(merged)-cap:]
	}

	return merged
}
