// Package hub implements the single-writer, many-reader snapshot broadcast.
//
// The hub holds exactly one value: the latest published snapshot, tagged with
// a monotonically increasing generation. Publishing swaps the value and closes
// a notify channel; readers block on that channel and then re-read the latest
// value. There are no per-reader queues, so a slow or stalled reader can never
// delay the publisher or grow memory — it simply skips intermediate
// generations and observes the newest one when it next asks.
package hub

import (
	"context"
	"sync"

	"pumpwatch/pkg/models"
)

// Hub broadcasts the latest SignalSnapshot to any number of readers.
// The zero value is not usable; call New.
type Hub struct {
	mu     sync.RWMutex
	latest *models.SignalSnapshot
	gen    uint64
	notify chan struct{}
}

// New creates an empty hub. Latest returns nil until the first publish, which
// is distinct from a published empty snapshot.
func New() *Hub {
	return &Hub{notify: make(chan struct{})}
}

// Publish replaces the current snapshot and wakes all waiting readers. It
// stamps the snapshot with the next generation and returns it. Publish
// completes in O(1) regardless of reader count and never blocks on readers.
func (h *Hub) Publish(snap models.SignalSnapshot) models.SignalSnapshot {
	h.mu.Lock()
	h.gen++
	snap.Generation = h.gen
	h.latest = &snap
	close(h.notify)
	h.notify = make(chan struct{})
	h.mu.Unlock()
	return snap
}

// Latest returns the current snapshot and its generation. The snapshot is nil
// before the first publish.
func (h *Hub) Latest() (*models.SignalSnapshot, uint64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest, h.gen
}

// Generation returns the current generation counter.
func (h *Hub) Generation() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.gen
}

// Wait blocks until a snapshot with generation greater than afterGen is
// available, then returns it. Intermediate generations may be skipped
// (last-write-wins); the returned generation is always greater than afterGen.
// Returns ctx.Err() on cancellation.
func (h *Hub) Wait(ctx context.Context, afterGen uint64) (*models.SignalSnapshot, error) {
	for {
		h.mu.RLock()
		latest, gen, notify := h.latest, h.gen, h.notify
		h.mu.RUnlock()

		if latest != nil && gen > afterGen {
			return latest, nil
		}

		select {
		case <-notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
