package control

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/nudgeapp/nudge/internal/bus"
	"github.com/nudgeapp/nudge/internal/journal"
	"github.com/nudgeapp/nudge/internal/kv"
	"github.com/nudgeapp/nudge/internal/models"
	"github.com/nudgeapp/nudge/internal/notify"
	"github.com/nudgeapp/nudge/internal/reminder"
	"github.com/nudgeapp/nudge/internal/taskstore"
)

func newTestServer(t *testing.T) (*Server, func()) {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := kv.NewSQLite(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	b := bus.New()
	jrnl := journal.New(store)
	jrnl.Attach(b)

	sched := notify.NewScheduler(notify.LogNotifier{}, store)
	coord := reminder.New(sched)
	tasks := taskstore.New(store, coord, b)

	service := NewService(tasks, sched, jrnl)
	server := NewServer(service, store, "127.0.0.1:0")

	cleanup := func() {
		store.Close()
	}
	return server, cleanup
}

func TestHealthEndpoint_OK(t *testing.T) {
	s, cleanup := newTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	s.handleHealth(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !health.OK {
		t.Error("Expected health.OK to be true")
	}
	if health.DB != "ok" {
		t.Errorf("Expected DB status 'ok', got '%s'", health.DB)
	}
	if health.Time == "" {
		t.Error("Expected time to be set")
	}
}

func TestHealthEndpoint_DBError(t *testing.T) {
	s, cleanup := newTestServer(t)
	// Close the store up front to simulate a DB error.
	cleanup()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	s.handleHealth(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", resp.StatusCode)
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if health.OK {
		t.Error("Expected health.OK to be false when DB is down")
	}
}

func TestCreateAndListTasks(t *testing.T) {
	s, cleanup := newTestServer(t)
	defer cleanup()

	body, _ := json.Marshal(models.Task{Name: "Buy milk", DueDate: "2026-05-01"})
	req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewReader(body))
	w := httptest.NewRecorder()

	s.handleTasks(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", resp.StatusCode)
	}

	var created models.Task
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if created.ID == "" {
		t.Error("Expected an id to be assigned")
	}

	req = httptest.NewRequest(http.MethodGet, "/tasks", nil)
	w = httptest.NewRecorder()

	s.handleTasks(w, req)

	var tasks []models.Task
	if err := json.NewDecoder(w.Result().Body).Decode(&tasks); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Name != "Buy milk" {
		t.Errorf("Unexpected task list: %v", tasks)
	}
}

func TestListTasks_EmptyIsArray(t *testing.T) {
	s, cleanup := newTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	w := httptest.NewRecorder()

	s.handleTasks(w, req)

	if got := w.Body.String(); got != "[]\n" {
		t.Errorf("Expected empty JSON array, got %q", got)
	}
}

func TestCreateTask_InvalidBody(t *testing.T) {
	s, cleanup := newTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewReader([]byte("not json")))
	w := httptest.NewRecorder()

	s.handleTasks(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Result().StatusCode)
	}
}

func TestTaskByID_Lifecycle(t *testing.T) {
	s, cleanup := newTestServer(t)
	defer cleanup()

	created, err := s.service.CreateTask(context.Background(),
		models.Task{Name: "Walk dog", DueDate: "2026-05-01"})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	// GET
	req := httptest.NewRequest(http.MethodGet, "/tasks/"+created.ID, nil)
	w := httptest.NewRecorder()
	s.handleTaskByID(w, req)
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Result().StatusCode)
	}

	// PUT
	body, _ := json.Marshal(models.Task{Name: "Walk the dog", DueDate: "2026-05-02"})
	req = httptest.NewRequest(http.MethodPut, "/tasks/"+created.ID, bytes.NewReader(body))
	w = httptest.NewRecorder()
	s.handleTaskByID(w, req)
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Result().StatusCode)
	}

	var updated models.Task
	json.NewDecoder(w.Result().Body).Decode(&updated)
	if updated.ID != created.ID {
		t.Errorf("Expected id to be preserved, got '%s'", updated.ID)
	}

	// DELETE
	req = httptest.NewRequest(http.MethodDelete, "/tasks/"+created.ID, nil)
	w = httptest.NewRecorder()
	s.handleTaskByID(w, req)
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Result().StatusCode)
	}

	// GET after delete
	req = httptest.NewRequest(http.MethodGet, "/tasks/"+created.ID, nil)
	w = httptest.NewRecorder()
	s.handleTaskByID(w, req)
	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Result().StatusCode)
	}
}

func TestTaskByID_MissingID(t *testing.T) {
	s, cleanup := newTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/tasks/", nil)
	w := httptest.NewRecorder()

	s.handleTaskByID(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Result().StatusCode)
	}
}

func TestUpdateTask_NotFoundStatus(t *testing.T) {
	s, cleanup := newTestServer(t)
	defer cleanup()

	body, _ := json.Marshal(models.Task{Name: "Ghost"})
	req := httptest.NewRequest(http.MethodPut, "/tasks/no-such-id", bytes.NewReader(body))
	w := httptest.NewRecorder()

	s.handleTaskByID(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Result().StatusCode)
	}
}

func TestCompleteEndpoint(t *testing.T) {
	s, cleanup := newTestServer(t)
	defer cleanup()

	created, _ := s.service.CreateTask(context.Background(),
		models.Task{Name: "Weekly review", DueDate: "2026-01-05", Recurring: models.RecurrenceWeekly})

	req := httptest.NewRequest(http.MethodPost, "/tasks/"+created.ID+"/complete", nil)
	w := httptest.NewRecorder()

	s.handleTaskByID(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Result().StatusCode)
	}

	var result CompleteResult
	if err := json.NewDecoder(w.Result().Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !result.Task.Completed {
		t.Error("Expected completed task in response")
	}
	if result.NextInstance == nil || result.NextInstance.DueDate != "2026-01-12" {
		t.Errorf("Expected next occurrence due '2026-01-12', got %v", result.NextInstance)
	}
}

func TestSnoozeEndpoint(t *testing.T) {
	s, cleanup := newTestServer(t)
	defer cleanup()

	created, _ := s.service.CreateTask(context.Background(),
		models.Task{Name: "Call dentist", DueDate: "2026-02-10"})

	req := httptest.NewRequest(http.MethodPost, "/tasks/"+created.ID+"/snooze",
		bytes.NewReader([]byte(`{"hours":48}`)))
	w := httptest.NewRecorder()

	s.handleTaskByID(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Result().StatusCode)
	}

	var resp map[string]string
	json.NewDecoder(w.Result().Body).Decode(&resp)
	if resp["newDueDate"] != "2026-02-12" {
		t.Errorf("Expected newDueDate '2026-02-12', got '%s'", resp["newDueDate"])
	}
}

func TestTagEndpoints(t *testing.T) {
	s, cleanup := newTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodPut, "/tags/errand",
		bytes.NewReader([]byte(`{"keywords":["buy","pick up"]}`)))
	w := httptest.NewRecorder()
	s.handleTagByName(w, req)
	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Result().StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, "/tags", nil)
	w = httptest.NewRecorder()
	s.handleTags(w, req)

	var tags map[string][]string
	if err := json.NewDecoder(w.Result().Body).Decode(&tags); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(tags["errand"]) != 2 {
		t.Errorf("Expected 2 keywords, got %v", tags["errand"])
	}

	req = httptest.NewRequest(http.MethodDelete, "/tags/errand", nil)
	w = httptest.NewRecorder()
	s.handleTagByName(w, req)
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Result().StatusCode)
	}

	req = httptest.NewRequest(http.MethodDelete, "/tags/errand", nil)
	w = httptest.NewRecorder()
	s.handleTagByName(w, req)
	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404 on second delete, got %d", w.Result().StatusCode)
	}
}

func TestRespondEndpoint_Validation(t *testing.T) {
	s, cleanup := newTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/notifications/respond",
		bytes.NewReader([]byte(`{"action":"complete"}`)))
	w := httptest.NewRecorder()

	s.handleRespond(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Result().StatusCode)
	}
}

func TestEventsEndpoint(t *testing.T) {
	s, cleanup := newTestServer(t)
	defer cleanup()

	s.service.CreateTask(context.Background(),
		models.Task{Name: "Journal me"})

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()

	s.handleEvents(w, req)

	var events []journal.Entry
	if err := json.NewDecoder(w.Result().Body).Decode(&events); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(events) != 1 || events[0].Event != bus.TodoAdded {
		t.Errorf("Unexpected events: %v", events)
	}
}
