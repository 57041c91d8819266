package auth

import "sync"

// StateCell is a subscribable state holder. It replaces the delegate/observer
// callbacks of a UI framework with an explicit channel-based signal: the
// poller and the CLI subscribe to it instead of reaching into the
// orchestrator.
type StateCell struct {
	mu   sync.Mutex
	snap Snapshot
	subs []chan Snapshot
}

// NewStateCell creates a cell holding the zero (unauthenticated) snapshot.
func NewStateCell() *StateCell {
	return &StateCell{}
}

// Snapshot returns the current value.
func (c *StateCell) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Subscribe returns a channel that receives state transitions. The channel
// has a one-element buffer and publishes coalesce: a slow subscriber always
// sees the latest snapshot, possibly skipping intermediate ones.
func (c *StateCell) Subscribe() <-chan Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan Snapshot, 1)
	c.subs = append(c.subs, ch)
	return ch
}

// set publishes a new snapshot to all subscribers without blocking.
func (c *StateCell) set(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = snap
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
