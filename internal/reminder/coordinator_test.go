package reminder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/nudgeapp/nudge/internal/kv"
	"github.com/nudgeapp/nudge/internal/models"
)

// fakeScheduler records scheduling decisions and keeps the mapping table
// in memory, mirroring the real scheduler's tracked-key behavior.
type fakeScheduler struct {
	nextID    int
	scheduled map[string]scheduledEntry // notification id -> entry
	tracked   map[string]string         // mapping key -> notification id
	immediate     []models.Notification
	cancels       int
	failLookAhead error
}

type scheduledEntry struct {
	Content models.Notification
	At      time.Time
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{
		scheduled: make(map[string]scheduledEntry),
		tracked:   make(map[string]string),
	}
}

func (f *fakeScheduler) ScheduleAt(ctx context.Context, n models.Notification, at time.Time) (string, error) {
	if f.failLookAhead != nil && n.Data["recurringInstance"] == "true" {
		err := f.failLookAhead
		f.failLookAhead = nil
		return "", err
	}
	f.nextID++
	id := fmt.Sprintf("n%d", f.nextID)
	f.scheduled[id] = scheduledEntry{Content: n, At: at}
	return id, nil
}

func (f *fakeScheduler) ScheduleImmediate(ctx context.Context, n models.Notification) (string, error) {
	f.immediate = append(f.immediate, n)
	f.nextID++
	return fmt.Sprintf("n%d", f.nextID), nil
}

func (f *fakeScheduler) Track(ctx context.Context, key, id string) error {
	f.tracked[key] = id
	return nil
}

func (f *fakeScheduler) CancelTracked(ctx context.Context, key string) error {
	f.cancels++
	if id, ok := f.tracked[key]; ok {
		delete(f.scheduled, id)
		delete(f.tracked, key)
	}
	return nil
}

func (f *fakeScheduler) trackedKeys() []string {
	var keys []string
	for k := range f.tracked {
		keys = append(keys, k)
	}
	return keys
}

func newTestCoordinator(now time.Time) (*Coordinator, *fakeScheduler) {
	fs := newFakeScheduler()
	c := New(fs)
	c.now = func() time.Time { return now }
	return c, fs
}

// morningOf is 08:00 local on the given date.
func morningOf(date string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" 08:00", time.Local)
	if err != nil {
		panic(err)
	}
	return t
}

func reminderTask(id, dueDate, at string) models.Task {
	return models.Task{
		ID:       id,
		Name:     "Buy milk",
		DueDate:  dueDate,
		Reminder: &models.Reminder{Enabled: true, Time: at},
	}
}

func TestSyncCompletedCancelsEverything(t *testing.T) {
	now := morningOf("2025-04-20")
	c, fs := newTestCoordinator(now)
	ctx := context.Background()

	task := reminderTask("t1", "2025-04-20", "17:00")
	if err := c.Sync(ctx, task); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if len(fs.scheduled) == 0 {
		t.Fatal("expected notifications scheduled for active task")
	}

	task.Completed = true
	if err := c.Sync(ctx, task); err != nil {
		t.Fatalf("Sync of completed task failed: %v", err)
	}
	if len(fs.scheduled) != 0 || len(fs.tracked) != 0 {
		t.Errorf("completed task left notifications: %v", fs.trackedKeys())
	}
}

func TestSyncReminderDisabledCancels(t *testing.T) {
	now := morningOf("2025-04-20")
	c, fs := newTestCoordinator(now)
	ctx := context.Background()

	task := reminderTask("t1", "2025-04-20", "17:00")
	c.Sync(ctx, task)

	task.Reminder.Enabled = false
	c.Sync(ctx, task)
	if len(fs.scheduled) != 0 {
		t.Errorf("disabled reminder left notifications scheduled")
	}

	task.Reminder = nil
	c.Sync(ctx, task) // must not panic, still cancels
	if len(fs.scheduled) != 0 {
		t.Error("nil reminder left notifications scheduled")
	}
}

func TestSyncNoDueDateCancels(t *testing.T) {
	now := morningOf("2025-04-20")
	c, fs := newTestCoordinator(now)

	task := reminderTask("t1", "", "17:00")
	c.Sync(context.Background(), task)
	if len(fs.scheduled) != 0 {
		t.Error("task without due date should schedule nothing")
	}
}

func TestSyncDueTodaySchedulesRegularAndEscalating(t *testing.T) {
	now := morningOf("2025-04-20")
	c, fs := newTestCoordinator(now)

	c.Sync(context.Background(), reminderTask("t1", "2025-04-20", "17:00"))

	// 1 regular + 4 escalating (all offsets still in the future at 08:00).
	if len(fs.scheduled) != 5 {
		t.Fatalf("expected 5 scheduled, got %d", len(fs.scheduled))
	}

	regularID, ok := fs.tracked[kv.NotificationKey("t1")]
	if !ok {
		t.Fatal("regular reminder not tracked")
	}
	reg := fs.scheduled[regularID]
	want, _ := time.ParseInLocation("2006-01-02 15:04", "2025-04-20 17:00", time.Local)
	if !reg.At.Equal(want) {
		t.Errorf("regular trigger at %v, want %v", reg.At, want)
	}
	if reg.Content.TaskID() != "t1" {
		t.Error("regular content missing task id")
	}

	offsets := map[int]time.Duration{0: 60, 1: 30, 2: 10, 3: 1}
	for i, mins := range offsets {
		id, ok := fs.tracked[kv.EscalatingKey("t1", i)]
		if !ok {
			t.Fatalf("escalating slot %d not tracked", i)
		}
		at := fs.scheduled[id].At
		if !at.Equal(want.Add(-mins * time.Minute)) {
			t.Errorf("slot %d trigger at %v", i, at)
		}
	}

	// The 1-minute slot carries the urgent message.
	urgentID := fs.tracked[kv.EscalatingKey("t1", 3)]
	if !strings.Contains(fs.scheduled[urgentID].Content.Body, "Wrap it up") {
		t.Errorf("1-minute message not urgent: %q", fs.scheduled[urgentID].Content.Body)
	}
}

func TestSyncDiscardsPastEscalatingCandidates(t *testing.T) {
	// 16:45: the 60- and 30-minute candidates for a 17:00 due time have
	// passed; only 10 and 1 survive.
	now, _ := time.ParseInLocation("2006-01-02 15:04", "2025-04-20 16:45", time.Local)
	c, fs := newTestCoordinator(now)

	c.Sync(context.Background(), reminderTask("t1", "2025-04-20", "17:00"))

	escalating := 0
	for i := 0; i < 4; i++ {
		if _, ok := fs.tracked[kv.EscalatingKey("t1", i)]; ok {
			escalating++
		}
	}
	if escalating != 2 {
		t.Errorf("expected 2 surviving escalating slots, got %d", escalating)
	}
}

func TestSyncPastRegularSkipped(t *testing.T) {
	now, _ := time.ParseInLocation("2006-01-02 15:04", "2025-04-20 18:00", time.Local)
	c, fs := newTestCoordinator(now)

	c.Sync(context.Background(), reminderTask("t1", "2025-04-20", "17:00"))
	if _, ok := fs.tracked[kv.NotificationKey("t1")]; ok {
		t.Error("past regular trigger should not be scheduled")
	}
}

func TestAllowPastTriggersBypass(t *testing.T) {
	now, _ := time.ParseInLocation("2006-01-02 15:04", "2025-04-20 18:00", time.Local)
	c, fs := newTestCoordinator(now)
	c.AllowPastTriggers = true

	c.Sync(context.Background(), reminderTask("t1", "2025-04-20", "17:00"))
	if _, ok := fs.tracked[kv.NotificationKey("t1")]; !ok {
		t.Error("bypass flag should schedule past triggers")
	}
}

func TestSyncNotDueTodaySchedulesOnlyRegular(t *testing.T) {
	now := morningOf("2025-04-20")
	c, fs := newTestCoordinator(now)

	c.Sync(context.Background(), reminderTask("t1", "2025-04-25", "17:00"))

	if _, ok := fs.tracked[kv.NotificationKey("t1")]; !ok {
		t.Error("regular reminder missing")
	}
	for i := 0; i < 4; i++ {
		if _, ok := fs.tracked[kv.EscalatingKey("t1", i)]; ok {
			t.Errorf("escalating slot %d scheduled for non-today task", i)
		}
	}
}

func TestSyncCancelBeforeReschedule(t *testing.T) {
	now := morningOf("2025-04-20")
	c, fs := newTestCoordinator(now)
	ctx := context.Background()

	task := reminderTask("t1", "2025-04-20", "17:00")
	c.Sync(ctx, task)
	had := len(fs.scheduled)

	// Re-sync must replace, not stack.
	c.Sync(ctx, task)
	if len(fs.scheduled) != had {
		t.Errorf("re-sync stacked notifications: %d -> %d", had, len(fs.scheduled))
	}
}

func TestSyncRecurringLookAhead(t *testing.T) {
	now := morningOf("2025-04-20")
	c, fs := newTestCoordinator(now)

	task := reminderTask("t1", "2025-04-25", "09:00")
	task.Recurring = models.RecurrenceDaily
	c.Sync(context.Background(), task)

	for i := 0; i < 3; i++ {
		id, ok := fs.tracked[kv.RecurringKey("t1", i)]
		if !ok {
			t.Fatalf("look-ahead occurrence %d not tracked", i)
		}
		entry := fs.scheduled[id]
		wantDate := []string{"2025-04-26", "2025-04-27", "2025-04-28"}[i]
		want, _ := time.ParseInLocation("2006-01-02 15:04", wantDate+" 09:00", time.Local)
		if !entry.At.Equal(want) {
			t.Errorf("occurrence %d at %v, want %v", i, entry.At, want)
		}
		if entry.Content.Data["recurringInstance"] != "true" {
			t.Errorf("occurrence %d not tagged as recurring instance", i)
		}
	}
}

func TestLookAheadFailureDoesNotAbortSync(t *testing.T) {
	now := morningOf("2025-04-20")
	c, fs := newTestCoordinator(now)

	task := reminderTask("t1", "2025-04-25", "09:00")
	task.Recurring = models.RecurrenceWeekly
	fs.failLookAhead = errors.New("platform error")

	// The first look-ahead occurrence fails; the primary path and the
	// remaining occurrences must be unaffected.
	if err := c.Sync(context.Background(), task); err != nil {
		t.Fatalf("look-ahead failure leaked out of Sync: %v", err)
	}
	if _, ok := fs.tracked[kv.NotificationKey("t1")]; !ok {
		t.Error("regular reminder missing")
	}
	if _, ok := fs.tracked[kv.RecurringKey("t1", 0)]; ok {
		t.Error("failed occurrence should not be tracked")
	}
	if _, ok := fs.tracked[kv.RecurringKey("t1", 1)]; !ok {
		t.Error("later look-ahead occurrences should still be scheduled")
	}
}

func TestCancelAllForIdempotent(t *testing.T) {
	now := morningOf("2025-04-20")
	c, fs := newTestCoordinator(now)
	ctx := context.Background()

	task := reminderTask("t1", "2025-04-20", "17:00")
	task.Recurring = models.RecurrenceDaily
	c.Sync(ctx, task)

	c.CancelAllFor(ctx, "t1")
	if len(fs.scheduled) != 0 || len(fs.tracked) != 0 {
		t.Fatalf("CancelAllFor left entries: %v", fs.trackedKeys())
	}

	// Second sweep over nothing must still touch every slot and not error.
	before := fs.cancels
	c.CancelAllFor(ctx, "t1")
	if fs.cancels-before != 1+4+3 {
		t.Errorf("expected full sweep of 8 slots, got %d", fs.cancels-before)
	}
}

func TestNotifyOverdue(t *testing.T) {
	now := morningOf("2025-04-20")
	c, fs := newTestCoordinator(now)

	task := reminderTask("t1", "2025-04-18", "17:00")
	if err := c.NotifyOverdue(context.Background(), task); err != nil {
		t.Fatalf("NotifyOverdue failed: %v", err)
	}
	if len(fs.immediate) != 1 {
		t.Fatalf("expected 1 immediate notification, got %d", len(fs.immediate))
	}
	if fs.immediate[0].Category != models.CategoryTaskOverdue {
		t.Errorf("overdue alert has category %q", fs.immediate[0].Category)
	}
}
