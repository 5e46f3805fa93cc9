package control

import (
	"context"
	"testing"
	"time"

	"github.com/nudgeapp/nudge/internal/bus"
	"github.com/nudgeapp/nudge/internal/journal"
	"github.com/nudgeapp/nudge/internal/kv"
	"github.com/nudgeapp/nudge/internal/models"
	"github.com/nudgeapp/nudge/internal/notify"
	"github.com/nudgeapp/nudge/internal/reminder"
	"github.com/nudgeapp/nudge/internal/taskstore"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	store := kv.NewMemory()
	b := bus.New()

	jrnl := journal.New(store)
	jrnl.Attach(b)

	sched := notify.NewScheduler(notify.LogNotifier{}, store)
	coord := reminder.New(sched)
	tasks := taskstore.New(store, coord, b)

	return NewService(tasks, sched, jrnl)
}

func TestCreateTask_AssignsID(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateTask(ctx, models.Task{Name: "Water plants"})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if created.ID == "" {
		t.Error("Expected an id to be assigned")
	}

	got, ok := svc.GetTask(ctx, created.ID)
	if !ok {
		t.Fatal("Expected created task to be retrievable")
	}
	if got.Name != "Water plants" {
		t.Errorf("Expected name 'Water plants', got '%s'", got.Name)
	}
}

func TestCreateTask_SeedsOriginalDueDate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateTask(ctx, models.Task{
		Name:      "Pay rent",
		DueDate:   "2026-03-01",
		Recurring: models.RecurrenceMonthly,
	})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if created.OriginalDueDate != "2026-03-01" {
		t.Errorf("Expected originalDueDate '2026-03-01', got '%s'", created.OriginalDueDate)
	}
}

func TestCreateTask_RejectsEmptyName(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.CreateTask(context.Background(), models.Task{}); err != ErrInvalidTask {
		t.Errorf("Expected ErrInvalidTask, got %v", err)
	}
}

func TestUpdateTask_NotFound(t *testing.T) {
	svc := newTestService(t)

	err := svc.UpdateTask(context.Background(), models.Task{ID: "missing", Name: "x"})
	if err != ErrTaskNotFound {
		t.Errorf("Expected ErrTaskNotFound, got %v", err)
	}
}

func TestDeleteTask(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, _ := svc.CreateTask(ctx, models.Task{Name: "Temp"})

	if err := svc.DeleteTask(ctx, created.ID); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}
	if _, ok := svc.GetTask(ctx, created.ID); ok {
		t.Error("Expected task to be gone after delete")
	}
	if err := svc.DeleteTask(ctx, created.ID); err != ErrTaskNotFound {
		t.Errorf("Expected ErrTaskNotFound on second delete, got %v", err)
	}
}

func TestCompleteTask_MaterializesNextOccurrence(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, _ := svc.CreateTask(ctx, models.Task{
		Name:      "Weekly review",
		DueDate:   "2026-01-05",
		Recurring: models.RecurrenceWeekly,
		Tags:      []string{"work"},
		Reminder:  &models.Reminder{Enabled: true, Time: "09:00"},
	})

	result, err := svc.CompleteTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("CompleteTask failed: %v", err)
	}
	if !result.Task.Completed {
		t.Error("Expected completed task in result")
	}
	if result.NextInstance == nil {
		t.Fatal("Expected a next occurrence to be created")
	}

	next := result.NextInstance
	if next.DueDate != "2026-01-12" {
		t.Errorf("Expected next due date '2026-01-12', got '%s'", next.DueDate)
	}
	if next.ID == created.ID {
		t.Error("Expected next occurrence to get a fresh id")
	}
	if next.Completed {
		t.Error("Expected next occurrence to be incomplete")
	}
	if !next.IsRecurringInstance {
		t.Error("Expected next occurrence to be marked as a recurring instance")
	}
	if next.OriginalDueDate != "2026-01-05" {
		t.Errorf("Expected originalDueDate '2026-01-05', got '%s'", next.OriginalDueDate)
	}
	if len(next.Tags) != 1 || next.Tags[0] != "work" {
		t.Errorf("Expected tags to be carried over, got %v", next.Tags)
	}
	if next.Reminder == nil || next.Reminder.Time != "09:00" {
		t.Error("Expected reminder settings to be carried over")
	}

	// Both the completed task and the new occurrence are stored.
	if len(svc.ListTasks(ctx)) != 2 {
		t.Errorf("Expected 2 tasks, got %d", len(svc.ListTasks(ctx)))
	}
}

func TestCompleteTask_NonRecurring(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, _ := svc.CreateTask(ctx, models.Task{Name: "One-off", DueDate: "2026-01-05"})

	result, err := svc.CompleteTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("CompleteTask failed: %v", err)
	}
	if result.NextInstance != nil {
		t.Error("Expected no next occurrence for a non-recurring task")
	}
}

func TestCompleteTask_ReopenDoesNotMaterialize(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, _ := svc.CreateTask(ctx, models.Task{
		Name:      "Daily standup",
		DueDate:   "2026-01-05",
		Recurring: models.RecurrenceDaily,
	})

	if _, err := svc.CompleteTask(ctx, created.ID); err != nil {
		t.Fatalf("CompleteTask failed: %v", err)
	}
	count := len(svc.ListTasks(ctx))

	// Toggling the completed task back open must not create another
	// occurrence.
	result, err := svc.CompleteTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("CompleteTask failed: %v", err)
	}
	if result.Task.Completed {
		t.Error("Expected second toggle to reopen the task")
	}
	if result.NextInstance != nil {
		t.Error("Expected no occurrence on reopen")
	}
	if len(svc.ListTasks(ctx)) != count {
		t.Errorf("Expected task count to stay at %d, got %d", count, len(svc.ListTasks(ctx)))
	}
}

func TestSnoozeTask_DefaultHours(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, _ := svc.CreateTask(ctx, models.Task{Name: "Call dentist", DueDate: "2026-02-10"})

	newDueDate, err := svc.SnoozeTask(ctx, created.ID, 0)
	if err != nil {
		t.Fatalf("SnoozeTask failed: %v", err)
	}
	// Default preference is 24 hours from midnight of the due date.
	if newDueDate != "2026-02-11" {
		t.Errorf("Expected new due date '2026-02-11', got '%s'", newDueDate)
	}
}

func TestSnoozeTask_ExplicitHours(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, _ := svc.CreateTask(ctx, models.Task{Name: "Call dentist", DueDate: "2026-02-10"})

	newDueDate, err := svc.SnoozeTask(ctx, created.ID, 48)
	if err != nil {
		t.Fatalf("SnoozeTask failed: %v", err)
	}
	if newDueDate != "2026-02-12" {
		t.Errorf("Expected new due date '2026-02-12', got '%s'", newDueDate)
	}
}

func TestBuckets(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.Local)
	svc.now = func() time.Time { return now }

	svc.CreateTask(ctx, models.Task{Name: "Today", DueDate: "2026-02-10"})
	svc.CreateTask(ctx, models.Task{Name: "Tomorrow", DueDate: "2026-02-11"})
	svc.CreateTask(ctx, models.Task{Name: "Later", DueDate: "2026-02-20"})
	svc.CreateTask(ctx, models.Task{Name: "Overdue", DueDate: "2026-02-01"})

	buckets := svc.Buckets(ctx)
	if len(buckets.Today) != 1 || buckets.Today[0].Name != "Today" {
		t.Errorf("Unexpected today bucket: %v", buckets.Today)
	}
	if len(buckets.Tomorrow) != 1 || buckets.Tomorrow[0].Name != "Tomorrow" {
		t.Errorf("Unexpected tomorrow bucket: %v", buckets.Tomorrow)
	}
	if len(buckets.Upcoming) != 1 || buckets.Upcoming[0].Name != "Later" {
		t.Errorf("Unexpected upcoming bucket: %v", buckets.Upcoming)
	}
	if len(buckets.Past) != 1 || buckets.Past[0].Name != "Overdue" {
		t.Errorf("Unexpected past bucket: %v", buckets.Past)
	}
}

func TestTagOperations(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if err := svc.SetTag(ctx, "errand", []string{"buy", "pick up"}); err != nil {
		t.Fatalf("SetTag failed: %v", err)
	}
	if err := svc.SetTag(ctx, "", nil); err != ErrInvalidTag {
		t.Errorf("Expected ErrInvalidTag for empty name, got %v", err)
	}

	tags := svc.Tags(ctx)
	if len(tags["errand"]) != 2 {
		t.Errorf("Expected 2 keywords for 'errand', got %v", tags["errand"])
	}

	if err := svc.RemoveTag(ctx, "errand"); err != nil {
		t.Fatalf("RemoveTag failed: %v", err)
	}
	if err := svc.RemoveTag(ctx, "errand"); err != ErrTagNotFound {
		t.Errorf("Expected ErrTagNotFound, got %v", err)
	}
}

func TestRecentEvents_RecordsMutations(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, _ := svc.CreateTask(ctx, models.Task{Name: "Journal me"})
	svc.CompleteTask(ctx, created.ID)

	events := svc.RecentEvents(ctx)
	if len(events) < 2 {
		t.Fatalf("Expected at least 2 journal entries, got %d", len(events))
	}
	if events[0].Event != bus.TodoAdded {
		t.Errorf("Expected first event '%s', got '%s'", bus.TodoAdded, events[0].Event)
	}
	last := events[len(events)-1]
	if last.Event != bus.TodoCompleted {
		t.Errorf("Expected last event '%s', got '%s'", bus.TodoCompleted, last.Event)
	}
	if last.TaskID != created.ID {
		t.Errorf("Expected task id '%s', got '%s'", created.ID, last.TaskID)
	}
}
