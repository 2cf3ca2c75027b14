// Package file provides the durable, file-backed snapshot store.
//
// Saves are atomic: the snapshot is written to a temporary file in the same
// directory, forced to stable storage, and renamed over the canonical file,
// so the canonical file always holds either the old complete snapshot or the
// new complete snapshot. A fixed-path backup is rotated before every
// overwrite and is used to recover automatically when the canonical file
// fails to parse; a uniquely timestamped backup is additionally kept per
// successful save for manual point-in-time recovery.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/memory"
	"github.com/papercomputeco/recall/pkg/store"
)

const (
	snapshotFile = "memory.json"
	backupFile   = "memory_backup.json"

	// backupStampLayout names the timestamped per-save backups,
	// e.g. memory_backup_20251203-130501.json.
	backupStampLayout = "20060102-150405"
)

// Driver implements store.Driver on a directory of JSON files.
type Driver struct {
	dir    string
	logger *zap.Logger

	// rename commits the temp file over the canonical path. Swappable in
	// tests to inject failures between write and commit.
	rename func(oldpath, newpath string) error
}

// NewDriver creates a file-backed snapshot store rooted at dir, creating the
// directory if needed.
func NewDriver(dir string, logger *zap.Logger) (*Driver, error) {
	if dir == "" {
		return nil, errors.New("storage directory is required")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory %s: %w", dir, err)
	}

	return &Driver{
		dir:    dir,
		logger: logger,
		rename: os.Rename,
	}, nil
}

// Path returns the canonical snapshot file path. The reconciler watches it
// for external writes.
func (d *Driver) Path() string {
	return filepath.Join(d.dir, snapshotFile)
}

func (d *Driver) backupPath() string {
	return filepath.Join(d.dir, backupFile)
}

func (d *Driver) stampedBackupPath(now time.Time) string {
	name := fmt.Sprintf("memory_backup_%s.json", now.Format(backupStampLayout))
	return filepath.Join(d.dir, name)
}

// Save atomically persists the snapshot. The previous canonical file is
// first copied to the fixed backup path and to a timestamped backup; both
// copies are best-effort and a missing source file is tolerated. The write
// itself is fatal on failure: the temporary file is removed and the caller
// must not assume the update is durable.
func (d *Driver) Save(_ context.Context, snapshot memory.Snapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return store.DurabilityError{Op: "encode", Err: err}
	}

	d.rotateBackups()

	tmp, err := os.CreateTemp(d.dir, "memory-*.json.tmp")
	if err != nil {
		return store.DurabilityError{Op: "create temp", Err: err}
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		if removeErr := os.Remove(tmpPath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			d.logger.Warn("failed to clean up temp file",
				zap.String("path", tmpPath),
				zap.Error(removeErr),
			)
		}
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return store.DurabilityError{Op: "write", Err: err}
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return store.DurabilityError{Op: "sync", Err: err}
	}

	if err := tmp.Close(); err != nil {
		cleanup()
		return store.DurabilityError{Op: "close", Err: err}
	}

	if err := d.rename(tmpPath, d.Path()); err != nil {
		cleanup()
		return store.DurabilityError{Op: "rename", Err: err}
	}

	d.logger.Debug("snapshot saved",
		zap.String("path", d.Path()),
		zap.Int("users", len(snapshot)),
	)

	return nil
}

// rotateBackups copies the current canonical file to the fixed backup path
// and to a timestamped backup. Failures here never fail the save; losing a
// backup is preferable to losing the write.
func (d *Driver) rotateBackups() {
	src := d.Path()
	if _, err := os.Stat(src); err != nil {
		// Nothing to rotate on first save.
		return
	}

	if err := copyFile(src, d.backupPath()); err != nil {
		d.logger.Warn("failed to rotate backup", zap.Error(err))
	} else {
		d.logger.Debug("backup created",
			zap.String("from", src),
			zap.String("to", d.backupPath()),
		)
	}

	stamped := d.stampedBackupPath(time.Now())
	if err := copyFile(src, stamped); err != nil {
		d.logger.Warn("failed to write timestamped backup",
			zap.String("path", stamped),
			zap.Error(err),
		)
	}
}

// Load returns the committed snapshot. A missing canonical file is a cold
// start and yields an empty snapshot. An unparsable canonical file is treated
// as corruption: the fixed backup, when present, is restored over the
// canonical file and parsed instead; without a backup the store degrades to
// an empty snapshot rather than failing startup. Other I/O failures also
// degrade to an empty snapshot.
func (d *Driver) Load(_ context.Context) (memory.Snapshot, error) {
	data, err := os.ReadFile(d.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			d.logger.Info("no snapshot file found, starting fresh",
				zap.String("path", d.Path()),
			)
			return memory.Snapshot{}, nil
		}

		d.logger.Error("unexpected load error, starting empty", zap.Error(err))
		return memory.Snapshot{}, nil
	}

	var snapshot memory.Snapshot
	if err := json.Unmarshal(data, &snapshot); err == nil {
		d.logger.Info("loaded snapshot",
			zap.String("path", d.Path()),
			zap.Int("users", len(snapshot)),
		)
		return d.nonNil(snapshot), nil
	}

	d.logger.Warn("corrupted snapshot file detected", zap.String("path", d.Path()))

	return d.restoreFromBackup()
}

// restoreFromBackup repairs the canonical file from the fixed backup path and
// returns the backup's contents. Without a usable backup the store starts
// empty.
func (d *Driver) restoreFromBackup() (memory.Snapshot, error) {
	backup, err := os.ReadFile(d.backupPath())
	if err != nil {
		d.logger.Error("no backup found, starting empty", zap.Error(err))
		return memory.Snapshot{}, nil
	}

	var snapshot memory.Snapshot
	if err := json.Unmarshal(backup, &snapshot); err != nil {
		d.logger.Error("backup is also unparsable, starting empty", zap.Error(err))
		return memory.Snapshot{}, nil
	}

	d.logger.Warn("restoring snapshot from backup", zap.String("path", d.backupPath()))

	if err := copyFile(d.backupPath(), d.Path()); err != nil {
		d.logger.Error("failed to repair canonical snapshot from backup", zap.Error(err))
	}

	return d.nonNil(snapshot), nil
}

func (d *Driver) nonNil(s memory.Snapshot) memory.Snapshot {
	if s == nil {
		return memory.Snapshot{}
	}
	return s
}

// Close is a no-op; the driver holds no open handles between calls.
func (d *Driver) Close() error {
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying to %s: %w", dst, err)
	}

	return out.Close()
}
