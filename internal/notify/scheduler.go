package notify

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nudgeapp/nudge/internal/kv"
	"github.com/nudgeapp/nudge/internal/models"
)

// ResponseHandler is invoked when the user acts on a notification,
// receiving the action identifier and the originating task id.
type ResponseHandler func(action, taskID string)

type pending struct {
	ID      string
	Content models.Notification
	At      time.Time
}

// Scheduler schedules one-shot notifications and dispatches them when due.
// It owns no domain state beyond the notification-id mapping entries it
// keeps in the key-value store on behalf of the reminder coordinator.
type Scheduler struct {
	notifier Notifier
	store    kv.Store
	now      func() time.Time

	mu         sync.Mutex
	pending    map[string]pending
	categories map[string][]string
	handlers   []handlerEntry
	nextHandle int

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type handlerEntry struct {
	id int
	fn ResponseHandler
}

// NewScheduler creates a scheduler delivering through the given notifier.
func NewScheduler(notifier Notifier, store kv.Store) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		notifier:   notifier,
		store:      store,
		now:        time.Now,
		pending:    make(map[string]pending),
		categories: make(map[string][]string),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start begins the dispatch loop.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.dispatchLoop()
	log.Println("Notification scheduler started")
}

// Stop gracefully stops the dispatch loop.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	log.Println("Notification scheduler stopped")
}

// dispatchLoop polls for due notifications and delivers them.
func (s *Scheduler) dispatchLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.dispatchDue()
		}
	}
}

// dispatchDue delivers every pending notification whose trigger time has
// passed. Delivery failures are logged and the entry is still consumed,
// so a broken notifier cannot make the same notification fire forever.
func (s *Scheduler) dispatchDue() {
	now := s.now()

	s.mu.Lock()
	var due []pending
	for id, p := range s.pending {
		if !p.At.After(now) {
			due = append(due, p)
			delete(s.pending, id)
		}
	}
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].At.Before(due[j].At) })

	for _, p := range due {
		if err := s.notifier.Deliver(s.ctx, p.Content); err != nil {
			log.Printf("Deliver notification %s: %v", p.ID, err)
		}
	}
}

// RequestPermission checks whether notifications can be delivered. It
// fails closed: any notifier unavailability reads as "no permission".
func (s *Scheduler) RequestPermission(ctx context.Context) bool {
	if s.notifier == nil {
		return false
	}
	return s.notifier.Available()
}

// ScheduleAt schedules a one-shot notification for the trigger time and
// returns its notification id. Trigger times already in the past fire on
// the next dispatch pass; callers are expected to filter them out.
func (s *Scheduler) ScheduleAt(ctx context.Context, n models.Notification, at time.Time) (string, error) {
	id := uuid.New().String()

	s.mu.Lock()
	s.pending[id] = pending{ID: id, Content: n, At: at}
	s.mu.Unlock()

	return id, nil
}

// ScheduleImmediate delivers the notification now and returns its id.
func (s *Scheduler) ScheduleImmediate(ctx context.Context, n models.Notification) (string, error) {
	id := uuid.New().String()
	if err := s.notifier.Deliver(ctx, n); err != nil {
		return "", err
	}
	return id, nil
}

// Cancel removes a pending notification. Canceling an unknown id is a
// no-op, not an error.
func (s *Scheduler) Cancel(ctx context.Context, id string) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// CancelAll removes every pending notification. It reports false only on
// platform-level failure and never panics past this boundary.
func (s *Scheduler) CancelAll(ctx context.Context) bool {
	s.mu.Lock()
	s.pending = make(map[string]pending)
	s.mu.Unlock()
	return true
}

// PendingCount returns the number of scheduled, not yet fired
// notifications.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// RegisterCategories declares the interactive notification categories.
// On platforms without action buttons the declarations are inert.
func (s *Scheduler) RegisterCategories() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[models.CategoryTaskReminder] = []string{models.ActionComplete, models.ActionSnooze}
	s.categories[models.CategoryTaskOverdue] = []string{models.ActionComplete, models.ActionReschedule}
}

// Categories returns the registered category -> actions map.
func (s *Scheduler) Categories() map[string][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]string, len(s.categories))
	for k, v := range s.categories {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// OnResponse registers a callback for user actions on notifications and
// returns an unsubscribe function.
func (s *Scheduler) OnResponse(fn ResponseHandler) func() {
	s.mu.Lock()
	s.nextHandle++
	id := s.nextHandle
	s.handlers = append(s.handlers, handlerEntry{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, h := range s.handlers {
			if h.id == id {
				s.handlers = append(s.handlers[:i:i], s.handlers[i+1:]...)
				return
			}
		}
	}
}

// HandleResponse fans a user action out to the registered handlers.
func (s *Scheduler) HandleResponse(action, taskID string) {
	s.mu.Lock()
	snapshot := make([]handlerEntry, len(s.handlers))
	copy(snapshot, s.handlers)
	s.mu.Unlock()

	for _, h := range snapshot {
		h.fn(action, taskID)
	}
}

// --- Tracked mapping operations ---
//
// The coordinator addresses notifications through stable mapping keys
// (see kv.NotificationKey and friends); the scheduler persists the
// key -> notification-id entries so they survive restarts.

// Track records the mapping entry for a scheduled notification.
func (s *Scheduler) Track(ctx context.Context, key, id string) error {
	return s.store.Set(ctx, key, id)
}

// CancelTracked cancels the notification recorded under the mapping key
// and deletes the entry. It is unconditionally idempotent: an absent
// entry, or an entry whose notification already fired, is success.
func (s *Scheduler) CancelTracked(ctx context.Context, key string) error {
	id, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	s.Cancel(ctx, id)
	return s.store.Remove(ctx, key)
}
