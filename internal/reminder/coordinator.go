// Package reminder decides, for a task and its lifecycle transition,
// which notifications must be scheduled or canceled: the regular due-time
// reminder, the escalating near-due reminders, and the recurring-series
// look-ahead. It never mutates tasks.
package reminder

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nudgeapp/nudge/internal/kv"
	"github.com/nudgeapp/nudge/internal/models"
	"github.com/nudgeapp/nudge/internal/recurrence"
)

// escalatingOffsets are the minutes-before-due triggers for the four
// escalating slots. Cancellation always sweeps all four indices, even
// when fewer were scheduled.
var escalatingOffsets = [4]int{60, 30, 10, 1}

// lookAheadOccurrences is how many future occurrences of a recurring
// series get pre-scheduled notifications.
const lookAheadOccurrences = 3

// endOfDay is the due time assumed when a task has no reminder time.
const endOfDay = "23:59"

// Scheduler is the slice of the notification scheduler the coordinator
// drives.
type Scheduler interface {
	ScheduleAt(ctx context.Context, n models.Notification, at time.Time) (string, error)
	ScheduleImmediate(ctx context.Context, n models.Notification) (string, error)
	Track(ctx context.Context, key, id string) error
	CancelTracked(ctx context.Context, key string) error
}

// Coordinator owns the schedule/cancel decisions for task reminders.
type Coordinator struct {
	sched Scheduler
	now   func() time.Time

	// AllowPastTriggers bypasses the past-trigger filter. It exists for
	// diagnostics and tests and must stay off in production wiring.
	AllowPastTriggers bool
}

// New creates a coordinator driving the given scheduler.
func New(sched Scheduler) *Coordinator {
	return &Coordinator{sched: sched, now: time.Now}
}

// Sync brings the scheduled notifications for a task in line with its
// current state. Every path cancels before it schedules, and every cancel
// is idempotent, so Sync is safe to call on any transition.
func (c *Coordinator) Sync(ctx context.Context, t models.Task) error {
	if t.Completed || !t.HasReminder() || t.DueDate == "" {
		c.CancelAllFor(ctx, t.ID)
		return nil
	}

	var firstErr error
	if err := c.scheduleRegular(ctx, t); err != nil {
		firstErr = err
	}
	if err := c.scheduleEscalating(ctx, t); err != nil && firstErr == nil {
		firstErr = err
	}

	// Recurring look-ahead is best-effort: a failure here must not abort
	// the primary scheduling path.
	c.scheduleLookAhead(ctx, t)

	return firstErr
}

// CancelAllFor cancels the regular, escalating and look-ahead
// notifications for a task id. Missing entries are success, never errors.
func (c *Coordinator) CancelAllFor(ctx context.Context, taskID string) {
	c.sched.CancelTracked(ctx, kv.NotificationKey(taskID))
	for i := range escalatingOffsets {
		c.sched.CancelTracked(ctx, kv.EscalatingKey(taskID, i))
	}
	for i := 0; i < lookAheadOccurrences; i++ {
		c.sched.CancelTracked(ctx, kv.RecurringKey(taskID, i))
	}
}

// NotifyOverdue fires an immediate overdue alert for a task.
func (c *Coordinator) NotifyOverdue(ctx context.Context, t models.Task) error {
	n := models.Notification{
		Title:    "Overdue: " + t.Name,
		Body:     fmt.Sprintf("%s was due %s", t.Name, t.DueDate),
		Data:     map[string]string{"taskId": t.ID},
		Category: models.CategoryTaskOverdue,
		Sound:    true,
	}
	_, err := c.sched.ScheduleImmediate(ctx, n)
	return err
}

// scheduleRegular replaces the task's regular reminder with one at the
// reminder time of day on the due date.
func (c *Coordinator) scheduleRegular(ctx context.Context, t models.Task) error {
	key := kv.NotificationKey(t.ID)
	c.sched.CancelTracked(ctx, key)

	at, ok := triggerInstant(t.DueDate, t.ReminderTime())
	if !ok {
		return fmt.Errorf("task %s: bad reminder time %q", t.ID, t.ReminderTime())
	}
	if !at.After(c.now()) && !c.AllowPastTriggers {
		return nil
	}

	body := t.Description
	if body == "" {
		body = "Due " + t.DueDate
	}
	n := models.Notification{
		Title:    t.Name,
		Body:     body,
		Data:     map[string]string{"taskId": t.ID},
		Category: models.CategoryTaskReminder,
		Sound:    true,
	}

	id, err := c.sched.ScheduleAt(ctx, n, at)
	if err != nil {
		return fmt.Errorf("schedule regular reminder: %w", err)
	}
	if err := c.sched.Track(ctx, key, id); err != nil {
		return fmt.Errorf("track regular reminder: %w", err)
	}
	return nil
}

// scheduleEscalating sweeps all four escalating slots, then, when the
// task is due today, schedules one notification per offset whose trigger
// has not already passed.
func (c *Coordinator) scheduleEscalating(ctx context.Context, t models.Task) error {
	for i := range escalatingOffsets {
		c.sched.CancelTracked(ctx, kv.EscalatingKey(t.ID, i))
	}

	now := c.now()
	if !recurrence.IsToday(t.DueDate, now) {
		return nil
	}

	due, ok := triggerInstant(t.DueDate, t.ReminderTime())
	if !ok {
		due, _ = triggerInstant(t.DueDate, endOfDay)
	}

	var firstErr error
	for i, mins := range escalatingOffsets {
		at := due.Add(-time.Duration(mins) * time.Minute)
		if !at.After(now) && !c.AllowPastTriggers {
			continue
		}

		id, err := c.sched.ScheduleAt(ctx, escalatingContent(t, mins), at)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("schedule escalating reminder %d: %w", i, err)
			}
			continue
		}
		if err := c.sched.Track(ctx, kv.EscalatingKey(t.ID, i), id); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("track escalating reminder %d: %w", i, err)
		}
	}
	return firstErr
}

func escalatingContent(t models.Task, mins int) models.Notification {
	title := fmt.Sprintf("Due in %d minutes!", mins)
	body := fmt.Sprintf("%s is due in %d minutes", t.Name, mins)
	if mins == 1 {
		title = "Due in 1 minute!"
		body = fmt.Sprintf("%s is due in 1 minute. Wrap it up now!", t.Name)
	}
	return models.Notification{
		Title:    title,
		Body:     body,
		Data:     map[string]string{"taskId": t.ID, "escalating": fmt.Sprintf("%d", mins)},
		Category: models.CategoryTaskReminder,
		Sound:    true,
	}
}

// scheduleLookAhead pre-schedules reminders for the next occurrences of a
// recurring series. Failures are logged and swallowed.
func (c *Coordinator) scheduleLookAhead(ctx context.Context, t models.Task) {
	for i := 0; i < lookAheadOccurrences; i++ {
		c.sched.CancelTracked(ctx, kv.RecurringKey(t.ID, i))
	}
	if !t.Recurring.Valid() {
		return
	}

	date := t.DueDate
	for i := 0; i < lookAheadOccurrences; i++ {
		next := recurrence.NextDueDate(date, t.Recurring)
		if next == date {
			return
		}
		date = next

		at, ok := triggerInstant(date, t.ReminderTime())
		if !ok {
			return
		}
		n := models.Notification{
			Title:    t.Name,
			Body:     "Due " + date,
			Data:     map[string]string{"taskId": t.ID, "recurringInstance": "true"},
			Category: models.CategoryTaskReminder,
			Sound:    true,
		}

		id, err := c.sched.ScheduleAt(ctx, n, at)
		if err != nil {
			log.Printf("Look-ahead scheduling for task %s occurrence %d: %v", t.ID, i, err)
			continue
		}
		if err := c.sched.Track(ctx, kv.RecurringKey(t.ID, i), id); err != nil {
			log.Printf("Look-ahead tracking for task %s occurrence %d: %v", t.ID, i, err)
		}
	}
}

// triggerInstant combines a due date and an "HH:MM" time of day into a
// local instant. An empty time of day falls back to end of day.
func triggerInstant(date, timeOfDay string) (time.Time, bool) {
	if timeOfDay == "" {
		timeOfDay = endOfDay
	}
	t, err := time.ParseInLocation(recurrence.DateLayout+" 15:04", date+" "+timeOfDay, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
