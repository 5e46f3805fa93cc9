// Package journal keeps a capped, persisted log of domain events for the
// "recent activity" views. It is a plain event-bus consumer: the task
// store knows nothing about it.
package journal

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/nudgeapp/nudge/internal/bus"
	"github.com/nudgeapp/nudge/internal/kv"
	"github.com/nudgeapp/nudge/internal/models"
)

// maxEntries caps the journal; older entries are dropped.
const maxEntries = 200

// Entry is one recorded domain event.
type Entry struct {
	Time   time.Time `json:"time"`
	Event  string    `json:"event"`
	TaskID string    `json:"taskId,omitempty"`
	Name   string    `json:"name,omitempty"`
}

// Journal records task lifecycle events into the key-value store.
type Journal struct {
	store kv.Store
	now   func() time.Time
}

// New creates a journal over the given store.
func New(store kv.Store) *Journal {
	return &Journal{store: store, now: time.Now}
}

// Attach subscribes the journal to the task lifecycle events on the bus
// and returns a detach function.
func (j *Journal) Attach(b *bus.Bus) func() {
	events := []string{
		bus.TodoAdded,
		bus.TodoUpdated,
		bus.TodoDeleted,
		bus.TodoCompleted,
		bus.TodoSnoozed,
	}

	offs := make([]func(), 0, len(events))
	for _, name := range events {
		name := name
		offs = append(offs, b.On(name, func(args ...interface{}) {
			j.record(name, args...)
		}))
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

// record appends an entry; journal failures never surface to the emitter.
func (j *Journal) record(event string, args ...interface{}) {
	e := Entry{Time: j.now(), Event: event}
	if len(args) > 0 {
		switch v := args[0].(type) {
		case models.Task:
			e.TaskID = v.ID
			e.Name = v.Name
		case map[string]interface{}:
			if id, ok := v["id"].(string); ok {
				e.TaskID = id
			}
		}
	}

	ctx := context.Background()
	entries := j.Entries(ctx)
	entries = append(entries, e)
	if len(entries) > maxEntries {
		entries = entries[len(entries)-maxEntries:]
	}

	data, err := json.Marshal(entries)
	if err != nil {
		log.Printf("Encode journal: %v", err)
		return
	}
	if err := j.store.Set(ctx, kv.KeyEventLog, string(data)); err != nil {
		log.Printf("Write journal: %v", err)
	}
}

// Entries returns the recorded entries, oldest first. Corrupt or missing
// state reads as empty.
func (j *Journal) Entries(ctx context.Context) []Entry {
	raw, ok, err := j.store.Get(ctx, kv.KeyEventLog)
	if err != nil || !ok {
		return []Entry{}
	}
	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return []Entry{}
	}
	return entries
}
