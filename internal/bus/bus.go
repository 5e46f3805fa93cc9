// Package bus provides the synchronous publish/subscribe fan-out for
// domain events. A Bus is an injectable value, not a package singleton,
// so tests can run against isolated instances.
package bus

import "sync"

// Domain event names emitted by the task store.
const (
	TodoAdded      = "todo_added"
	TodoUpdated    = "todo_updated"
	TodoDeleted    = "todo_deleted"
	TodoCompleted  = "todo_completed"
	TodoSnoozed    = "todo_snoozed"
	StorageChanged = "storage_changed"

	TagAdded    = "tag_added"
	TagUpdated  = "tag_updated"
	TagDeleted  = "tag_deleted"
	TagsChanged = "tags_changed"
)

// Handler receives an emitted event's arguments.
type Handler func(args ...interface{})

type subscription struct {
	id int
	fn Handler
}

// Bus dispatches named events to subscribers synchronously, in
// registration order.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[string][]subscription
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// On registers a handler for an event name and returns an unsubscribe
// function. Unsubscribing is idempotent.
func (b *Bus) On(event string, fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[event] = append(b.subs[event], subscription{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[event]
		for i, s := range list {
			if s.id == id {
				b.subs[event] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Emit invokes all current subscribers for the event, in registration
// order, before returning. The subscriber list is snapshotted first, so
// unsubscribing mid-emit does not affect the current pass. Emitting with
// no subscribers is a no-op.
func (b *Bus) Emit(event string, args ...interface{}) {
	b.mu.Lock()
	list := b.subs[event]
	snapshot := make([]subscription, len(list))
	copy(snapshot, list)
	b.mu.Unlock()

	for _, s := range snapshot {
		s.fn(args...)
	}
}

// SubscriberCount returns the number of handlers registered for an event.
func (b *Bus) SubscriberCount(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[event])
}
