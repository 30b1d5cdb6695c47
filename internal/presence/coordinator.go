package presence

import (
	"sync"
	"sync/atomic"
	"time"
)

// Coordinator is the state shared by the ingest loop, the publish loop
// and the settings service.
//
// The snapshot sits behind a short RWMutex section that only copies or
// replaces it. The dirty flag and the shutdown flag are channels so the
// publish loop can block on them:
//   - dirty has capacity one, so any number of MarkDirty calls between
//     two publishes collapse into one pending event
//   - done is closed exactly once by Shutdown
type Coordinator struct {
	mu       sync.RWMutex
	snapshot Snapshot

	dirty chan struct{}

	done     chan struct{}
	shutdown sync.Once

	replacements atomic.Uint64
}

// NewCoordinator returns a coordinator with an empty snapshot.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		snapshot: Snapshot{Devices: []DiscoveredDevice{}},
		dirty:    make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Snapshot returns the current snapshot. The Devices slice is a copy;
// the records themselves are shared and must not be modified.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	devices := make([]DiscoveredDevice, len(c.snapshot.Devices))
	copy(devices, c.snapshot.Devices)
	return Snapshot{Devices: devices, ReceivedAt: c.snapshot.ReceivedAt}
}

// ReplaceSnapshot swaps in snap whole; the coordinator takes ownership.
func (c *Coordinator) ReplaceSnapshot(snap Snapshot) {
	if snap.Devices == nil {
		snap.Devices = []DiscoveredDevice{}
	}

	c.mu.Lock()
	c.snapshot = snap
	c.mu.Unlock()

	c.replacements.Add(1)
}

// Replacements counts ReplaceSnapshot calls since start.
func (c *Coordinator) Replacements() uint64 {
	return c.replacements.Load()
}

// SnapshotInfo returns the size and receive time of the current snapshot
// without copying it.
func (c *Coordinator) SnapshotInfo() (devices int, receivedAt time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.snapshot.Devices), c.snapshot.ReceivedAt
}

// DeviceByIPv4 finds the first snapshot record whose IPv4 equals ip.
func (c *Coordinator) DeviceByIPv4(ip string) (DiscoveredDevice, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, d := range c.snapshot.Devices {
		if d.IPv4 == ip {
			return d, true
		}
	}
	return DiscoveredDevice{}, false
}

// Current aggregates the current snapshot against reg.
func (c *Coordinator) Current(reg Lookup) Summary {
	return Aggregate(reg, c.Snapshot())
}

// MarkDirty records that the published summary is stale. It never blocks.
func (c *Coordinator) MarkDirty() {
	select {
	case c.dirty <- struct{}{}:
	default:
	}
}

// Dirty delivers one event per pending publication. Receiving from it is
// what clears the flag, so only the publish loop may receive.
func (c *Coordinator) Dirty() <-chan struct{} {
	return c.dirty
}

// IsDirty reports whether a publication is pending.
func (c *Coordinator) IsDirty() bool {
	return len(c.dirty) > 0
}

// Shutdown asks every loop to stop. Safe to call more than once.
func (c *Coordinator) Shutdown() {
	c.shutdown.Do(func() {
		close(c.done)
	})
}

// Done is closed once Shutdown has been called.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// ShuttingDown reports whether Shutdown has been called.
func (c *Coordinator) ShuttingDown() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
