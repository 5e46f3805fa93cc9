// Package notify owns all interaction with the local-notification
// primitive: scheduling one-shot notifications, canceling by id, category
// and action registration, and the permission check.
package notify

import (
	"context"
	"log"

	"github.com/nudgeapp/nudge/internal/models"
)

// Notifier is the platform capability that actually presents a
// notification to the user.
type Notifier interface {
	// Name returns the notifier identifier.
	Name() string

	// Available reports whether the platform can deliver notifications.
	Available() bool

	// Deliver presents the notification now.
	Deliver(ctx context.Context, n models.Notification) error
}

// LogNotifier writes notifications to the process log. It is the fallback
// when no desktop notifier is available and the default in tests that do
// not assert on delivery.
type LogNotifier struct{}

// Name returns the notifier identifier.
func (LogNotifier) Name() string { return "log" }

// Available always reports true.
func (LogNotifier) Available() bool { return true }

// Deliver logs the notification.
func (LogNotifier) Deliver(ctx context.Context, n models.Notification) error {
	log.Printf("notification [%s] %s: %s", n.Category, n.Title, n.Body)
	return nil
}
