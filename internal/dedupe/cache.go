// ABOUTME: TTL-bounded tracker for Matrix event IDs the bot has handled.
// ABOUTME: Guards against replayed sync batches delivering an event twice.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// trackedEvent stores when an event ID was first handled plus its
// position in the eviction order.
type trackedEvent struct {
	handledAt time.Time
	element   *list.Element
}

// Tracker remembers recently handled Matrix event IDs so a replayed
// sync batch never triggers a second backend call for the same event.
// Entries expire after a TTL and the oldest is evicted at capacity,
// keeping memory bounded on long-running bots.
type Tracker struct {
	mu      sync.Mutex
	events  map[string]*trackedEvent
	order   *list.List // event IDs oldest-first
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// NewTracker creates a tracker with the given TTL and capacity. A
// background goroutine sweeps expired entries until Close is called.
func NewTracker(ttl time.Duration, maxSize int) *Tracker {
	t := &Tracker{
		events:  make(map[string]*trackedEvent),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go t.sweep()
	return t
}

// Seen atomically checks whether eventID has already been handled and
// marks it handled if not. Returns true for a duplicate, false for a
// fresh event that is now tracked.
func (t *Tracker) Seen(eventID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, ok := t.events[eventID]; ok && time.Since(entry.handledAt) < t.ttl {
		return true
	}
	t.markLocked(eventID)
	return false
}

// markLocked records eventID as handled. Must be called with mu held.
func (t *Tracker) markLocked(eventID string) {
	now := time.Now()

	if entry, exists := t.events[eventID]; exists {
		entry.handledAt = now
		t.order.MoveToBack(entry.element)
		return
	}

	if len(t.events) >= t.maxSize {
		t.evictOldest()
	}

	elem := t.order.PushBack(eventID)
	t.events[eventID] = &trackedEvent{handledAt: now, element: elem}
}

// evictOldest drops the oldest tracked event. Must be called with mu held.
func (t *Tracker) evictOldest() {
	front := t.order.Front()
	if front == nil {
		return
	}
	eventID, _ := front.Value.(string)
	t.order.Remove(front)
	delete(t.events, eventID)
}

// sweep periodically drops expired entries.
func (t *Tracker) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.dropExpired()
		case <-t.done:
			return
		}
	}
}

// dropExpired removes every entry older than the TTL.
func (t *Tracker) dropExpired() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	for eventID, entry := range t.events {
		if now.Sub(entry.handledAt) > t.ttl {
			t.order.Remove(entry.element)
			delete(t.events, eventID)
		}
	}
}

// Close stops the background sweep. Safe to call multiple times.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.closed {
		close(t.done)
		t.closed = true
	}
}
