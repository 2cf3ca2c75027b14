// Package store
package store

import (
	"context"

	"github.com/papercomputeco/recall/pkg/memory"
)

// Driver defines the interface for persisting and loading memory snapshots.
// The snapshot is the unit of durability: one Save call persists the entire
// record index, and Load returns the most recently committed index.
type Driver interface {
	// Save durably persists the full snapshot. A snapshot is committed
	// entirely or not at all: after a failed Save the previously committed
	// snapshot must still load intact.
	Save(ctx context.Context, snapshot memory.Snapshot) error

	// Load returns the last committed snapshot. A cold start (nothing ever
	// saved) returns an empty snapshot, not an error.
	Load(ctx context.Context) (memory.Snapshot, error)

	// Close closes the store and releases any resources.
	Close() error
}
