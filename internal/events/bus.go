// Package events provides a simple publish-subscribe event bus for SSE delivery.
package events

import (
	"sync"

	"github.com/openbmc-go/occmon/internal/occ"
)

const subBufferSize = 8

// Bus is a non-blocking publish-subscribe event bus carrying sensor
// snapshots. Subscribers that are slow to consume have snapshots dropped
// rather than blocking the poller.
type Bus struct {
	mu   sync.Mutex
	subs map[string]chan occ.Snapshot
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[string]chan occ.Snapshot),
	}
}

// Subscribe creates a new subscription with the given ID.
// The returned channel will receive snapshots as refreshes complete.
// Call Unsubscribe when done to clean up.
func (b *Bus) Subscribe(id string) <-chan occ.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan occ.Snapshot, subBufferSize)
	b.subs[id] = ch
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish sends a snapshot to all subscribers.
// If a subscriber's channel is full, the snapshot is dropped (non-blocking).
func (b *Bus) Publish(snap occ.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- snap:
		default:
			// Drop if subscriber is slow
		}
	}
}

// SubscriberCount returns the current number of subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
