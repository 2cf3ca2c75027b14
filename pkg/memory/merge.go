package memory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// DeepMerge recursively applies a partial update onto an existing document
// and returns a new document. Neither input is mutated.
//
// Merge policy, per field present in updates:
//   - nil values are skipped, so an absent or null field never erases data
//   - when both sides are objects, the merge recurses
//   - when the update is a sequence and the existing value is too, each
//     update item is appended only if no structurally equal item already
//     exists (append-unique)
//   - anything else (scalar, or type mismatch) overwrites outright
//
// This is the generic document merge. The event timeline has its own
// identity and ordering semantics and is merged by [MergeEvents] instead.
func DeepMerge(existing, updates map[string]any) map[string]any {
	merged := make(map[string]any, len(existing)+len(updates))
	for k, v := range existing {
		merged[k] = deepCopyValue(v)
	}

	for k, v := range updates {
		if v == nil {
			continue
		}

		switch update := v.(type) {
		case map[string]any:
			if current, ok := merged[k].(map[string]any); ok {
				merged[k] = DeepMerge(current, update)
				continue
			}
			merged[k] = deepCopyValue(update)

		case []any:
			if current, ok := merged[k].([]any); ok {
				merged[k] = appendUnique(current, update)
				continue
			}
			merged[k] = deepCopyValue(update)

		default:
			merged[k] = v
		}
	}

	return merged
}

// appendUnique returns a copy of existing with every update item appended
// unless a structurally equal item is already present.
func appendUnique(existing, updates []any) []any {
	result := make([]any, 0, len(existing)+len(updates))
	for _, item := range existing {
		result = append(result, deepCopyValue(item))
	}

	for _, item := range updates {
		duplicate := false
		for _, have := range result {
			if reflect.DeepEqual(have, item) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			result = append(result, deepCopyValue(item))
		}
	}

	return result
}

// deepCopyValue copies JSON-shaped values (maps, slices, scalars) so merged
// documents never alias their inputs.
func deepCopyValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, item := range tv {
			out[k] = deepCopyValue(item)
		}
		return out

	case []any:
		out := make([]any, len(tv))
		for i, item := range tv {
			out[i] = deepCopyValue(item)
		}
		return out

	default:
		return v
	}
}

// AsMap converts a record to its JSON document form for merging.
func (r *Record) AsMap() (map[string]any, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding record document: %w", err)
	}

	return doc, nil
}

// RecordFromMap decodes a merged JSON document back into a typed record.
// Structural mismatches (wrong types, malformed timestamps) surface as a
// *ValidationError so callers can abort before committing.
func RecordFromMap(doc map[string]any) (*Record, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}

	var record Record
	decoder := json.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&record); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("document does not conform to record schema: %v", err)}
	}

	return &record, nil
}
