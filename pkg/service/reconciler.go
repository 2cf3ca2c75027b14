package service

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultReconcileInterval matches the autosave cadence of the service the
// index replaces.
const DefaultReconcileInterval = 300 * time.Second

// Reconciler periodically flushes unsaved index changes and restores the
// persisted snapshot when it diverges from the index. At most one pass runs
// at a time.
type Reconciler struct {
	service  *Service
	interval time.Duration
	logger   *zap.Logger

	watcher   *fsnotify.Watcher
	watchPath string

	done    chan struct{}
	stopped chan struct{}
}

// NewReconciler creates a reconciler for the service. A non-positive
// interval falls back to the default.
func NewReconciler(svc *Service, interval time.Duration, logger *zap.Logger) *Reconciler {
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}

	return &Reconciler{
		service:  svc,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// WatchSnapshot additionally watches the canonical snapshot file so an
// external write triggers an immediate reconcile instead of waiting for the
// next tick. The parent directory is watched because saves replace the file
// by rename.
func (r *Reconciler) WatchSnapshot(path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating snapshot watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	r.watcher = watcher
	r.watchPath = filepath.Clean(path)

	return nil
}

// Start launches the reconcile loop. Call Stop to shut it down.
func (r *Reconciler) Start() {
	go r.loop()
}

func (r *Reconciler) loop() {
	defer close(r.stopped)

	if r.watcher != nil {
		defer r.watcher.Close()
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	var watchEvents chan fsnotify.Event
	var watchErrors chan error
	if r.watcher != nil {
		watchEvents = r.watcher.Events
		watchErrors = r.watcher.Errors
	}

	r.logger.Info("reconciler started", zap.Duration("interval", r.interval))

	for {
		select {
		case <-r.done:
			r.logger.Info("reconciler stopping")
			return

		case <-ticker.C:
			flushed, err := r.service.FlushIfDirty(context.Background())
			if err != nil {
				r.logger.Error("reconcile flush failed", zap.Error(err))
			} else if flushed {
				r.logger.Debug("reconcile flushed unsaved changes")
			}

		case event, ok := <-watchEvents:
			if !ok {
				watchEvents = nil
				continue
			}

			if filepath.Clean(event.Name) != r.watchPath {
				continue
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}

			if err := r.service.ReconcileDisk(context.Background()); err != nil {
				r.logger.Error("reconcile after external write failed", zap.Error(err))
			}

		case err, ok := <-watchErrors:
			if !ok {
				watchErrors = nil
				continue
			}
			r.logger.Error("snapshot watcher error", zap.Error(err))
		}
	}
}

// Stop signals the loop and waits up to timeout for it to finish.
func (r *Reconciler) Stop(timeout time.Duration) error {
	close(r.done)

	select {
	case <-r.stopped:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("reconciler did not stop within %s", timeout)
	}
}
