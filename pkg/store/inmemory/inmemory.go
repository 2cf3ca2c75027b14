// Package inmemory provides a volatile snapshot store used in tests and for
// ephemeral deployments where durability is not required.
package inmemory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/papercomputeco/recall/pkg/memory"
)

// Driver implements store.Driver on an in-process copy of the snapshot.
type Driver struct {
	// mu guards committed across concurrent saves and loads
	mu sync.RWMutex

	// committed is the serialized form of the last saved snapshot. Keeping
	// bytes rather than the live maps isolates the store from later
	// mutation of the caller's snapshot.
	committed []byte
}

// NewDriver creates a new in-memory snapshot store.
func NewDriver() *Driver {
	return &Driver{}
}

// Save commits a copy of the snapshot.
func (d *Driver) Save(_ context.Context, snapshot memory.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.committed = data
	return nil
}

// Load returns a copy of the last committed snapshot, or an empty snapshot
// when nothing has been saved yet.
func (d *Driver) Load(_ context.Context) (memory.Snapshot, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.committed == nil {
		return memory.Snapshot{}, nil
	}

	var snapshot memory.Snapshot
	if err := json.Unmarshal(d.committed, &snapshot); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}

	if snapshot == nil {
		snapshot = memory.Snapshot{}
	}

	return snapshot, nil
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}
