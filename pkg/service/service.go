// Package service owns the in-memory record index and its mutation pipeline.
//
// All user records live in one index guarded by a single mutex. Mutations
// build a candidate record, validate it, and only then commit: replace the
// index entry, persist the whole snapshot, append the audit diff, and publish
// a mutation event. A failed persist keeps the new record in the index and
// surfaces a durability error; the reconciler retries the flush on its next
// pass.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/audit"
	"github.com/papercomputeco/recall/pkg/eventstream"
	"github.com/papercomputeco/recall/pkg/eventstream/nop"
	"github.com/papercomputeco/recall/pkg/memory"
	"github.com/papercomputeco/recall/pkg/store"
)

// Config carries the service's collaborators.
type Config struct {
	// Store persists and restores the snapshot.
	Store store.Driver

	// Audit receives one entry per committed mutation. Optional; nil
	// disables the audit trail.
	Audit *audit.Logger

	// Publisher receives a mutation event per commit. Optional; nil
	// falls back to the no-op publisher.
	Publisher eventstream.Publisher

	// EventCap bounds each record's event list. Zero means the default.
	EventCap int

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// Stats summarizes the index for operational introspection.
type Stats struct {
	Users  int  `json:"users"`
	Events int  `json:"events"`
	Dirty  bool `json:"dirty"`
}

// Service is the record index. It is safe for concurrent use.
type Service struct {
	// mu guards records and lastSaved
	mu sync.RWMutex

	// records maps user id to the current committed record. Commits
	// replace entries wholesale; a record pointer handed out by Get is
	// never mutated in place.
	records memory.Snapshot

	// lastSaved is the serialized form of the snapshot as of the last
	// successful persist, used for the dirty check.
	lastSaved []byte

	store     store.Driver
	audit     *audit.Logger
	publisher eventstream.Publisher
	eventCap  int
	logger    *zap.Logger
}

// New creates the service and loads the persisted snapshot. Corruption
// recovery happens inside the store; a degraded load yields an empty index
// rather than a startup failure.
func New(ctx context.Context, c Config) (*Service, error) {
	if c.Store == nil {
		return nil, fmt.Errorf("store driver is required")
	}

	if c.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if c.Publisher == nil {
		c.Publisher = nop.NewPublisher()
	}

	if c.EventCap <= 0 {
		c.EventCap = memory.DefaultEventCap
	}

	records, err := c.Store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}

	saved, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("serializing loaded snapshot: %w", err)
	}

	c.Logger.Info("record index loaded", zap.Int("users", len(records)))

	return &Service{
		records:   records,
		lastSaved: saved,
		store:     c.Store,
		audit:     c.Audit,
		publisher: c.Publisher,
		eventCap:  c.EventCap,
		logger:    c.Logger,
	}, nil
}

// Get returns the committed record for a user. The returned pointer is a
// committed record that later mutations never modify in place, so callers
// may read it without holding any lock; it may become stale once a newer
// commit lands.
func (s *Service) Get(userID string) (*memory.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[userID]
	if !ok {
		return nil, store.NotFoundError{UserID: userID}
	}

	return record, nil
}

// Create installs a new record built from the payload. An existing record is
// a conflict unless overwrite is set, in which case the payload replaces it
// entirely. Payload events replace rather than merge and still pass through
// normalization, dedup, and the cap.
func (s *Service) Create(ctx context.Context, userID string, payload map[string]any, overwrite bool) (*memory.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[userID]; exists && !overwrite {
		return nil, ConflictError{UserID: userID}
	}

	doc, rawEvents, _, err := splitEventKeys(payload)
	if err != nil {
		return nil, err
	}

	updates, err := memory.DecodeEvents(rawEvents)
	if err != nil {
		return nil, err
	}

	record, err := memory.RecordFromMap(doc)
	if err != nil {
		return nil, err
	}

	record.UserID = userID
	record.Events = memory.MergeEvents(nil, updates, true, s.eventCap)

	if err := memory.Validate(record); err != nil {
		return nil, err
	}

	return record, s.commit(ctx, "create", userID, record)
}

// Patch deep-merges the payload into the existing record (or an empty one).
// The events and events_overwrite keys are handled by the bounded event
// merger instead of the generic deep merge. The merged candidate is
// validated before anything is committed.
func (s *Service) Patch(ctx context.Context, userID string, payload map[string]any) (*memory.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updates, rawEvents, eventsOverwrite, err := splitEventKeys(payload)
	if err != nil {
		return nil, err
	}

	base := map[string]any{}
	var existingEvents []memory.Event
	if existing, ok := s.records[userID]; ok {
		if base, err = existing.AsMap(); err != nil {
			return nil, err
		}
		existingEvents = existing.Events
	}

	merged := memory.DeepMerge(base, updates)
	delete(merged, "user_id")

	record, err := memory.RecordFromMap(merged)
	if err != nil {
		return nil, err
	}

	record.UserID = userID

	if rawEvents != nil || len(existingEvents) > 0 {
		eventUpdates, err := memory.DecodeEvents(rawEvents)
		if err != nil {
			return nil, err
		}

		eventBase := existingEvents
		if eventsOverwrite {
			eventBase = nil
		}

		record.Events = memory.MergeEvents(eventBase, eventUpdates, eventsOverwrite, s.eventCap)
	}

	if err := memory.Validate(record); err != nil {
		return nil, err
	}

	return record, s.commit(ctx, "patch", userID, record)
}

// commit replaces the index entry and runs the persistence pipeline. The
// caller holds the write lock. On a persist failure the index keeps the new
// record and the durability error propagates to the caller; the audit entry
// is only written for durably committed mutations, while the mutation event
// always goes out with its durable flag reflecting the save outcome.
func (s *Service) commit(ctx context.Context, action, userID string, record *memory.Record) error {
	before := s.records[userID]
	s.records[userID] = record

	saveErr := s.store.Save(ctx, s.records)
	if saveErr == nil {
		if data, err := json.Marshal(s.records); err == nil {
			s.lastSaved = data
		}

		if s.audit != nil {
			if err := s.audit.Record(action, userID, before, record); err != nil {
				s.logger.Error("audit append failed", zap.Error(err))
			}
		}
	} else {
		s.logger.Error("snapshot persist failed, reconciler will retry",
			zap.String("user_id", userID),
			zap.Error(saveErr),
		)
	}

	event := &eventstream.RecordMutatedEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeRecordMutated,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		UserID:        userID,
		Action:        action,
		EventCount:    len(record.Events),
		Durable:       saveErr == nil,
	}
	if err := s.publisher.PublishMutation(ctx, event); err != nil {
		s.logger.Error("mutation event publish failed", zap.Error(err))
	}

	return saveErr
}

// FlushIfDirty persists the snapshot when the index has drifted from the
// last successful save. Returns whether a save was attempted.
func (s *Service) FlushIfDirty(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := json.Marshal(s.records)
	if err != nil {
		return false, fmt.Errorf("serializing snapshot: %w", err)
	}

	if bytes.Equal(current, s.lastSaved) {
		return false, nil
	}

	if err := s.store.Save(ctx, s.records); err != nil {
		return true, err
	}

	s.lastSaved = current
	s.logger.Info("autosave flushed snapshot", zap.Int("users", len(s.records)))

	return true, nil
}

// ReconcileDisk compares the persisted snapshot against the index and
// rewrites it when they diverge, restoring the index's authority after an
// external write or a previously failed save. A matching state is a no-op.
func (s *Service) ReconcileDisk(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	persisted, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading persisted snapshot: %w", err)
	}

	onDisk, err := json.Marshal(persisted)
	if err != nil {
		return fmt.Errorf("serializing persisted snapshot: %w", err)
	}

	current, err := json.Marshal(s.records)
	if err != nil {
		return fmt.Errorf("serializing snapshot: %w", err)
	}

	if bytes.Equal(onDisk, current) {
		return nil
	}

	s.logger.Warn("persisted snapshot diverged from index, rewriting",
		zap.Int("users", len(s.records)),
	)

	if err := s.store.Save(ctx, s.records); err != nil {
		return err
	}

	s.lastSaved = current

	return nil
}

// Users returns the indexed user ids in sorted order.
func (s *Service) Users() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]string, 0, len(s.records))
	for userID := range s.records {
		users = append(users, userID)
	}
	sort.Strings(users)

	return users
}

// Stats reports index totals and whether unsaved changes exist.
func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := 0
	for _, record := range s.records {
		events += len(record.Events)
	}

	dirty := false
	if current, err := json.Marshal(s.records); err == nil {
		dirty = !bytes.Equal(current, s.lastSaved)
	}

	return Stats{
		Users:  len(s.records),
		Events: events,
		Dirty:  dirty,
	}
}

// splitEventKeys copies the payload without its event-related keys and
// returns the raw events list and the overwrite flag separately.
func splitEventKeys(payload map[string]any) (map[string]any, []any, bool, error) {
	doc := make(map[string]any, len(payload))
	for key, value := range payload {
		doc[key] = value
	}

	var rawEvents []any
	if value, ok := doc["events"]; ok && value != nil {
		list, ok := value.([]any)
		if !ok {
			return nil, nil, false, &memory.InputError{Reason: "events must be a list"}
		}
		rawEvents = list
	}
	delete(doc, "events")

	overwrite := false
	if value, ok := doc["events_overwrite"]; ok && value != nil {
		flag, ok := value.(bool)
		if !ok {
			return nil, nil, false, &memory.InputError{Reason: "events_overwrite must be a boolean"}
		}
		overwrite = flag
	}
	delete(doc, "events_overwrite")

	return doc, rawEvents, overwrite, nil
}
