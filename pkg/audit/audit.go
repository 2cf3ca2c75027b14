// Package audit maintains an append-only trail of record mutations.
//
// Each mutation is logged as one JSON line holding a unified diff of the
// record before and after the change. Both sides are serialized with stable
// indentation so the diff lines stay meaningful across entries.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pmezard/go-difflib/difflib"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/memory"
	"github.com/papercomputeco/recall/pkg/utils"
)

const auditLogFile = "memory_audit.log"

// Entry is one line of the audit trail.
type Entry struct {
	EntryID   string    `json:"entry_id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	UserID    string    `json:"user_id"`
	Diff      string    `json:"diff"`
}

// Logger appends audit entries to a JSONL file in the storage directory.
type Logger struct {
	// mu serializes appends so concurrent mutations never interleave lines
	mu sync.Mutex

	path   string
	logger *zap.Logger
}

// NewLogger creates an audit logger writing to dir/memory_audit.log.
func NewLogger(dir string, logger *zap.Logger) (*Logger, error) {
	if dir == "" {
		return nil, fmt.Errorf("audit directory is required")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating audit directory %s: %w", dir, err)
	}

	return &Logger{
		path:   filepath.Join(dir, auditLogFile),
		logger: logger,
	}, nil
}

// Path returns the audit log file path.
func (l *Logger) Path() string {
	return l.path
}

// Record appends an entry describing how a user's record changed. A nil
// before or after stands for "no record", so creations and full overwrites
// still produce a readable diff. Audit failures are reported but must never
// veto the mutation itself; callers treat the returned error as advisory.
func (l *Logger) Record(action, userID string, before, after *memory.Record) error {
	diff, err := unifiedDiff(before, after)
	if err != nil {
		return fmt.Errorf("computing audit diff: %w", err)
	}

	entry := Entry{
		EntryID:   uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Action:    action,
		UserID:    userID,
		Diff:      diff,
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding audit entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}

	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("appending audit entry: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing audit log: %w", err)
	}

	l.logger.Info("audit logged",
		zap.String("action", action),
		zap.String("user_id", userID),
	)
	l.logger.Debug("audit diff",
		zap.String("user_id", userID),
		zap.String("diff", utils.Truncate(diff, 2048)),
	)

	return nil
}

// unifiedDiff renders both records as indented JSON and diffs them line by
// line, matching the shape of a classic unified diff.
func unifiedDiff(before, after *memory.Record) (string, error) {
	beforeJSON, err := renderRecord(before)
	if err != nil {
		return "", err
	}

	afterJSON, err := renderRecord(after)
	if err != nil {
		return "", err
	}

	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(beforeJSON),
		B:        difflib.SplitLines(afterJSON),
		FromFile: "before",
		ToFile:   "after",
		Context:  3,
	})
}

func renderRecord(r *memory.Record) (string, error) {
	if r == nil {
		return "{}\n", nil
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding record: %w", err)
	}

	return string(data) + "\n", nil
}
