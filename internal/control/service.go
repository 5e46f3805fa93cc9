// Package control provides the HTTP API and service layer for the nudge
// daemon.
package control

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nudgeapp/nudge/internal/journal"
	"github.com/nudgeapp/nudge/internal/models"
	"github.com/nudgeapp/nudge/internal/notify"
	"github.com/nudgeapp/nudge/internal/recurrence"
	"github.com/nudgeapp/nudge/internal/taskstore"
)

// Service provides the daemon's business logic over the task store.
type Service struct {
	tasks   *taskstore.Store
	sched   *notify.Scheduler
	journal *journal.Journal
	now     func() time.Time
}

// NewService creates a new control service.
func NewService(tasks *taskstore.Store, sched *notify.Scheduler, jrnl *journal.Journal) *Service {
	return &Service{
		tasks:   tasks,
		sched:   sched,
		journal: jrnl,
		now:     time.Now,
	}
}

// ListTasks returns the full task collection.
func (s *Service) ListTasks(ctx context.Context) []models.Task {
	return s.tasks.List(ctx)
}

// Buckets returns the collection grouped by due date.
func (s *Service) Buckets(ctx context.Context) recurrence.Buckets {
	return recurrence.Categorize(s.tasks.List(ctx), s.now())
}

// GetTask retrieves a task by id.
func (s *Service) GetTask(ctx context.Context, id string) (*models.Task, bool) {
	for _, t := range s.tasks.List(ctx) {
		if t.ID == id {
			t := t
			return &t, true
		}
	}
	return nil, false
}

// CreateTask adds a new task, assigning an id when the caller left it
// empty.
func (s *Service) CreateTask(ctx context.Context, t models.Task) (*models.Task, error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Recurring.Valid() && t.OriginalDueDate == "" {
		t.OriginalDueDate = t.DueDate
	}
	if !s.tasks.Add(ctx, t) {
		return nil, ErrInvalidTask
	}
	return &t, nil
}

// UpdateTask replaces an existing task.
func (s *Service) UpdateTask(ctx context.Context, t models.Task) error {
	if !s.tasks.Update(ctx, t) {
		return ErrTaskNotFound
	}
	return nil
}

// DeleteTask removes a task.
func (s *Service) DeleteTask(ctx context.Context, id string) error {
	if !s.tasks.Remove(ctx, id) {
		return ErrTaskNotFound
	}
	return nil
}

// CompleteResult is the outcome of CompleteTask.
type CompleteResult struct {
	Task *models.Task `json:"task"`
	// NextInstance is set when completing a recurring task materialized
	// its next occurrence.
	NextInstance *models.Task `json:"nextInstance,omitempty"`
}

// CompleteTask toggles a task's completion. When the toggle completes a
// recurring task, the service materializes the next occurrence; the task
// store and the reminder coordinator never create tasks themselves.
func (s *Service) CompleteTask(ctx context.Context, id string) (*CompleteResult, error) {
	res := s.tasks.ToggleCompletion(ctx, id)
	if !res.Success {
		return nil, ErrTaskNotFound
	}

	out := &CompleteResult{Task: res.Task}
	if res.Task.Completed && res.Task.Recurring.Valid() {
		out.NextInstance = s.materializeNext(ctx, *res.Task)
	}
	return out, nil
}

// materializeNext creates the next occurrence of a completed recurring
// task. Best-effort: a failure leaves the completion itself intact.
func (s *Service) materializeNext(ctx context.Context, done models.Task) *models.Task {
	nextDue := recurrence.NextDueDate(done.DueDate, done.Recurring)
	if nextDue == done.DueDate {
		return nil
	}

	next := done
	next.ID = uuid.New().String()
	next.Completed = false
	next.DueDate = nextDue
	next.IsRecurringInstance = true
	next.Tags = append([]string(nil), done.Tags...)
	if done.Reminder != nil {
		r := *done.Reminder
		next.Reminder = &r
	}
	if next.OriginalDueDate == "" {
		next.OriginalDueDate = done.DueDate
	}

	if !s.tasks.Add(ctx, next) {
		log.Printf("Materialize next occurrence of task %s failed", done.ID)
		return nil
	}
	return &next
}

// SnoozeTask shifts a task's due date forward. Non-positive hours use the
// stored snooze duration preference.
func (s *Service) SnoozeTask(ctx context.Context, id string, hours int) (string, error) {
	if hours <= 0 {
		hours = s.tasks.SnoozeDuration(ctx)
	}
	res := s.tasks.Snooze(ctx, id, hours)
	if !res.Success {
		return "", ErrTaskNotFound
	}
	return res.NewDueDate, nil
}

// --- Tag operations ---

// Tags returns the tag registry.
func (s *Service) Tags(ctx context.Context) map[string][]string {
	return s.tasks.Tags(ctx)
}

// SetTag creates or replaces a tag.
func (s *Service) SetTag(ctx context.Context, name string, keywords []string) error {
	if name == "" {
		return ErrInvalidTag
	}
	if !s.tasks.SetTag(ctx, name, keywords) {
		return ErrInvalidTag
	}
	return nil
}

// RemoveTag deletes a tag.
func (s *Service) RemoveTag(ctx context.Context, name string) error {
	if !s.tasks.RemoveTag(ctx, name) {
		return ErrTagNotFound
	}
	return nil
}

// --- Notifications and events ---

// PendingNotifications returns the count of scheduled, unfired
// notifications.
func (s *Service) PendingNotifications() int {
	return s.sched.PendingCount()
}

// NotificationCategories returns the registered interactive categories.
func (s *Service) NotificationCategories() map[string][]string {
	return s.sched.Categories()
}

// RespondToNotification routes a user action on a notification.
func (s *Service) RespondToNotification(action, taskID string) {
	s.sched.HandleResponse(action, taskID)
}

// RecentEvents returns the journaled domain events, oldest first.
func (s *Service) RecentEvents(ctx context.Context) []journal.Entry {
	return s.journal.Entries(ctx)
}
