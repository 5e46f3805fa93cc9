// Package models defines the core domain types for nudge.
package models

// Recurrence describes how a task repeats after completion.
type Recurrence string

const (
	RecurrenceNone    Recurrence = ""
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
	RecurrenceYearly  Recurrence = "yearly"
)

// Valid reports whether r is a recognized repeating recurrence.
func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceYearly:
		return true
	}
	return false
}

// Reminder configures the notification for a task's due date.
type Reminder struct {
	Enabled bool `json:"enabled"`
	// Time is the time of day the reminder fires, "HH:MM" 24h.
	Time string `json:"time"`
}

// Task is a single to-do item. DueDate is a calendar date "YYYY-MM-DD";
// for a recurring series it holds the next active occurrence.
type Task struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	DueDate     string     `json:"dueDate,omitempty"`
	Completed   bool       `json:"completed"`
	Tags        []string   `json:"tags,omitempty"`
	Recurring   Recurrence `json:"recurring,omitempty"`
	// OriginalDueDate is set once when a recurring series starts and is
	// carried across generated instances.
	OriginalDueDate     string    `json:"originalDueDate,omitempty"`
	IsRecurringInstance bool      `json:"isRecurringInstance,omitempty"`
	Reminder            *Reminder `json:"reminder,omitempty"`
}

// HasReminder reports whether the task has an enabled reminder.
func (t Task) HasReminder() bool {
	return t.Reminder != nil && t.Reminder.Enabled
}

// ReminderTime returns the configured reminder time of day, or "" if none.
func (t Task) ReminderTime() string {
	if t.Reminder == nil {
		return ""
	}
	return t.Reminder.Time
}

// Notification is the content handed to the platform notifier.
type Notification struct {
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	Category string            `json:"category,omitempty"`
	Badge    int               `json:"badge,omitempty"`
	Sound    bool              `json:"sound,omitempty"`
}

// TaskID returns the task id attached to the notification, if any.
func (n Notification) TaskID() string {
	return n.Data["taskId"]
}

// Notification categories and the actions they expose.
const (
	CategoryTaskReminder = "task-reminder"
	CategoryTaskOverdue  = "task-overdue"

	ActionComplete   = "complete"
	ActionSnooze     = "snooze"
	ActionReschedule = "reschedule"
)
