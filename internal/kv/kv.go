// Package kv provides the string-keyed persistence layer for nudge.
// Values are JSON-encoded domain blobs or plain string preferences.
package kv

import (
	"context"
	"fmt"
)

// Keys used by the core. Task and tag collections are stored as whole
// JSON blobs and rewritten on every mutation.
const (
	KeyTodos          = "@todos"
	KeyTags           = "@tags"
	KeySnoozeDuration = "@snooze_duration"
	KeyEventLog       = "@event_log"
)

// Store is a string-keyed store of persisted values.
type Store interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set writes the value for key, replacing any existing value.
	Set(ctx context.Context, key, value string) error
	// Remove deletes the key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}

// NotificationKey is the mapping key for a task's regular reminder.
func NotificationKey(taskID string) string {
	return "notification_" + taskID
}

// EscalatingKey is the mapping key for one of a task's four escalating
// reminder slots (index 0..3).
func EscalatingKey(taskID string, index int) string {
	return fmt.Sprintf("notification_escalating_%s_%d", taskID, index)
}

// RecurringKey is the mapping key for a pre-scheduled future occurrence of
// a recurring task (index 0..2).
func RecurringKey(taskID string, index int) string {
	return fmt.Sprintf("notification_recurring_%s_%d", taskID, index)
}
