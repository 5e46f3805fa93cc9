// Package taskstore provides the CRUD, completion and snooze operations
// over the persisted task collection. Every mutation follows the same
// cycle: load the full collection, validate, mutate, persist the whole
// collection, run reminder side effects, emit domain events.
//
// The collection is a single JSON blob with no transactional isolation:
// two racing operations can lose an update (last write wins). That is an
// accepted limitation for single-user usage and is preserved here.
package taskstore

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/nudgeapp/nudge/internal/bus"
	"github.com/nudgeapp/nudge/internal/kv"
	"github.com/nudgeapp/nudge/internal/models"
	"github.com/nudgeapp/nudge/internal/recurrence"
)

// DefaultSnoozeHours is used when no snooze duration preference is stored.
const DefaultSnoozeHours = 24

// Reminders is the slice of the reminder coordinator the store drives.
// A failure to schedule never fails the owning mutation; the task is
// saved even when its reminder could not be scheduled.
type Reminders interface {
	Sync(ctx context.Context, t models.Task) error
	CancelAllFor(ctx context.Context, taskID string)
}

// Store owns the task collection and the tag registry.
type Store struct {
	kv        kv.Store
	reminders Reminders
	bus       *bus.Bus
	now       func() time.Time
}

// New creates a task store over the given persistence, reminder and event
// collaborators.
func New(store kv.Store, reminders Reminders, b *bus.Bus) *Store {
	return &Store{kv: store, reminders: reminders, bus: b, now: time.Now}
}

// ToggleResult is the outcome of ToggleCompletion.
type ToggleResult struct {
	Success bool
	Task    *models.Task
}

// SnoozeResult is the outcome of Snooze.
type SnoozeResult struct {
	Success    bool
	NewDueDate string
}

// List returns the task collection. Any read or parse failure yields an
// empty list, not an error; corrupt storage is treated as empty.
func (s *Store) List(ctx context.Context) []models.Task {
	tasks, err := s.loadTasks(ctx)
	if err != nil {
		log.Printf("List tasks: %v", err)
		return []models.Task{}
	}
	return tasks
}

// Add appends a new task. It rejects a missing id or name, or an id that
// already exists, without writing.
func (s *Store) Add(ctx context.Context, t models.Task) bool {
	if t.ID == "" || t.Name == "" {
		return false
	}

	tasks, err := s.loadTasks(ctx)
	if err != nil {
		log.Printf("Add task %s: %v", t.ID, err)
		return false
	}
	if findTask(tasks, t.ID) >= 0 {
		return false
	}

	tasks = append(tasks, t)
	if err := s.saveTasks(ctx, tasks); err != nil {
		log.Printf("Add task %s: %v", t.ID, err)
		return false
	}

	if t.HasReminder() && !t.Completed {
		if err := s.reminders.Sync(ctx, t); err != nil {
			log.Printf("Schedule reminders for task %s: %v", t.ID, err)
		}
	}

	s.bus.Emit(bus.TodoAdded, t)
	s.bus.Emit(bus.StorageChanged)
	return true
}

// Update replaces an existing task. It is not an upsert: an unknown id is
// rejected without writing.
func (s *Store) Update(ctx context.Context, t models.Task) bool {
	if t.ID == "" {
		return false
	}

	tasks, err := s.loadTasks(ctx)
	if err != nil {
		log.Printf("Update task %s: %v", t.ID, err)
		return false
	}
	i := findTask(tasks, t.ID)
	if i < 0 {
		return false
	}

	tasks[i] = t
	if err := s.saveTasks(ctx, tasks); err != nil {
		log.Printf("Update task %s: %v", t.ID, err)
		return false
	}

	// Full decision tree: the new state may schedule or cancel.
	if err := s.reminders.Sync(ctx, t); err != nil {
		log.Printf("Sync reminders for task %s: %v", t.ID, err)
	}

	s.bus.Emit(bus.TodoUpdated, t)
	s.bus.Emit(bus.StorageChanged)
	return true
}

// Remove deletes a task and unconditionally cancels its reminders.
func (s *Store) Remove(ctx context.Context, id string) bool {
	tasks, err := s.loadTasks(ctx)
	if err != nil {
		log.Printf("Remove task %s: %v", id, err)
		return false
	}
	i := findTask(tasks, id)
	if i < 0 {
		return false
	}

	removed := tasks[i]
	tasks = append(tasks[:i], tasks[i+1:]...)
	if err := s.saveTasks(ctx, tasks); err != nil {
		log.Printf("Remove task %s: %v", id, err)
		return false
	}

	s.reminders.CancelAllFor(ctx, id)

	s.bus.Emit(bus.TodoDeleted, removed)
	s.bus.Emit(bus.StorageChanged)
	return true
}

// ToggleCompletion flips a task's completed flag. Completing cancels its
// reminders; un-completing re-schedules them when a reminder is enabled.
func (s *Store) ToggleCompletion(ctx context.Context, id string) ToggleResult {
	tasks, err := s.loadTasks(ctx)
	if err != nil {
		log.Printf("Toggle task %s: %v", id, err)
		return ToggleResult{}
	}
	i := findTask(tasks, id)
	if i < 0 {
		return ToggleResult{}
	}

	tasks[i].Completed = !tasks[i].Completed
	updated := tasks[i]
	if err := s.saveTasks(ctx, tasks); err != nil {
		log.Printf("Toggle task %s: %v", id, err)
		return ToggleResult{}
	}

	if updated.Completed {
		s.reminders.CancelAllFor(ctx, id)
	} else if updated.HasReminder() {
		if err := s.reminders.Sync(ctx, updated); err != nil {
			log.Printf("Re-schedule reminders for task %s: %v", id, err)
		}
	}

	s.bus.Emit(bus.TodoCompleted, updated)
	s.bus.Emit(bus.StorageChanged)
	return ToggleResult{Success: true, Task: &updated}
}

// Snooze shifts a task's due date forward by the given hours, computed
// from the due date at midnight via datetime arithmetic so day rollover
// falls out naturally. OriginalDueDate is untouched: a snooze is a
// due-date shift, not a recurrence advance.
func (s *Store) Snooze(ctx context.Context, id string, hours int) SnoozeResult {
	tasks, err := s.loadTasks(ctx)
	if err != nil {
		log.Printf("Snooze task %s: %v", id, err)
		return SnoozeResult{}
	}
	i := findTask(tasks, id)
	if i < 0 {
		return SnoozeResult{}
	}

	base, err := time.ParseInLocation(recurrence.DateLayout, tasks[i].DueDate, time.Local)
	if err != nil {
		// No (or unparseable) due date snoozes from today.
		y, m, d := s.now().Date()
		base = time.Date(y, m, d, 0, 0, 0, 0, time.Local)
	}
	newDueDate := base.Add(time.Duration(hours) * time.Hour).Format(recurrence.DateLayout)

	tasks[i].DueDate = newDueDate
	updated := tasks[i]
	if err := s.saveTasks(ctx, tasks); err != nil {
		log.Printf("Snooze task %s: %v", id, err)
		return SnoozeResult{}
	}

	if updated.HasReminder() && !updated.Completed {
		// Cancels the stale escalating slots, reschedules the regular
		// reminder against the new date and re-evaluates escalating
		// (the task may now be due today).
		if err := s.reminders.Sync(ctx, updated); err != nil {
			log.Printf("Re-schedule reminders for task %s: %v", id, err)
		}
	}

	s.bus.Emit(bus.TodoSnoozed, map[string]interface{}{"id": id, "hours": hours})
	s.bus.Emit(bus.StorageChanged)
	return SnoozeResult{Success: true, NewDueDate: newDueDate}
}

// --- Snooze duration preference ---

// SnoozeDuration returns the stored snooze duration in hours, defaulting
// to DefaultSnoozeHours.
func (s *Store) SnoozeDuration(ctx context.Context) int {
	raw, ok, err := s.kv.Get(ctx, kv.KeySnoozeDuration)
	if err != nil || !ok {
		return DefaultSnoozeHours
	}
	hours, err := strconv.Atoi(raw)
	if err != nil || hours <= 0 {
		return DefaultSnoozeHours
	}
	return hours
}

// SetSnoozeDuration stores the snooze duration preference.
func (s *Store) SetSnoozeDuration(ctx context.Context, hours int) bool {
	if hours <= 0 {
		return false
	}
	if err := s.kv.Set(ctx, kv.KeySnoozeDuration, strconv.Itoa(hours)); err != nil {
		log.Printf("Set snooze duration: %v", err)
		return false
	}
	return true
}

// --- Tag registry ---
//
// Tags map a tag name to keyword strings. The registry has no scheduling
// coupling; mutations only persist and emit tag events.

// Tags returns the tag registry, empty on any read or parse failure.
func (s *Store) Tags(ctx context.Context) map[string][]string {
	raw, ok, err := s.kv.Get(ctx, kv.KeyTags)
	if err != nil || !ok {
		if err != nil {
			log.Printf("Load tags: %v", err)
		}
		return map[string][]string{}
	}
	var tags map[string][]string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil || tags == nil {
		return map[string][]string{}
	}
	return tags
}

// SetTag creates or replaces a tag's keyword list.
func (s *Store) SetTag(ctx context.Context, name string, keywords []string) bool {
	if name == "" {
		return false
	}

	tags := s.Tags(ctx)
	_, existed := tags[name]
	tags[name] = keywords

	if !s.saveTags(ctx, tags) {
		return false
	}

	if existed {
		s.bus.Emit(bus.TagUpdated, name)
	} else {
		s.bus.Emit(bus.TagAdded, name)
	}
	s.bus.Emit(bus.TagsChanged)
	return true
}

// RemoveTag deletes a tag from the registry.
func (s *Store) RemoveTag(ctx context.Context, name string) bool {
	tags := s.Tags(ctx)
	if _, ok := tags[name]; !ok {
		return false
	}
	delete(tags, name)

	if !s.saveTags(ctx, tags) {
		return false
	}

	s.bus.Emit(bus.TagDeleted, name)
	s.bus.Emit(bus.TagsChanged)
	return true
}

func (s *Store) saveTags(ctx context.Context, tags map[string][]string) bool {
	data, err := json.Marshal(tags)
	if err != nil {
		log.Printf("Encode tags: %v", err)
		return false
	}
	if err := s.kv.Set(ctx, kv.KeyTags, string(data)); err != nil {
		log.Printf("Save tags: %v", err)
		return false
	}
	return true
}

// --- Collection helpers ---

// loadTasks reads the whole collection. A missing or unparseable blob is
// an empty collection; only a storage read failure is an error.
func (s *Store) loadTasks(ctx context.Context) ([]models.Task, error) {
	raw, ok, err := s.kv.Get(ctx, kv.KeyTodos)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []models.Task{}, nil
	}
	var tasks []models.Task
	if err := json.Unmarshal([]byte(raw), &tasks); err != nil {
		return []models.Task{}, nil
	}
	return tasks, nil
}

// saveTasks replaces the whole collection blob.
func (s *Store) saveTasks(ctx context.Context, tasks []models.Task) error {
	data, err := json.Marshal(tasks)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, kv.KeyTodos, string(data))
}

func findTask(tasks []models.Task, id string) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}
