package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// TaskItem is a summary of a task for the list view.
type TaskItem struct {
	ID           string
	Name         string
	DueDate      string
	Completed    bool
	Recurring    string
	Tags         []string
	ReminderTime string
}

// Buckets groups tasks by due date the way the daemon reports them.
type Buckets struct {
	Today    []TaskItem
	Tomorrow []TaskItem
	Upcoming []TaskItem
	Past     []TaskItem
}

// EventItem is one recent activity entry.
type EventItem struct {
	Time  string
	Event string
	Name  string
}

// Client wraps HTTP calls to the nudge daemon.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client with timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

type taskJSON struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	DueDate   string   `json:"dueDate"`
	Completed bool     `json:"completed"`
	Recurring string   `json:"recurring"`
	Tags      []string `json:"tags"`
	Reminder  *struct {
		Enabled bool   `json:"enabled"`
		Time    string `json:"time"`
	} `json:"reminder"`
}

func toItem(t taskJSON) TaskItem {
	item := TaskItem{
		ID:        t.ID,
		Name:      t.Name,
		DueDate:   t.DueDate,
		Completed: t.Completed,
		Recurring: t.Recurring,
		Tags:      t.Tags,
	}
	if t.Reminder != nil && t.Reminder.Enabled {
		item.ReminderTime = t.Reminder.Time
	}
	return item
}

// ListTasks fetches the full task collection.
func (c *Client) ListTasks() ([]TaskItem, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/tasks")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	var tasks []taskJSON
	if err := json.NewDecoder(resp.Body).Decode(&tasks); err != nil {
		return nil, err
	}

	items := make([]TaskItem, len(tasks))
	for i, t := range tasks {
		items[i] = toItem(t)
	}
	return items, nil
}

// GetBuckets fetches tasks grouped by due date.
func (c *Client) GetBuckets() (*Buckets, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/buckets")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	var raw struct {
		Today    []taskJSON `json:"today"`
		Tomorrow []taskJSON `json:"tomorrow"`
		Upcoming []taskJSON `json:"upcoming"`
		Past     []taskJSON `json:"past"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	convert := func(in []taskJSON) []TaskItem {
		out := make([]TaskItem, len(in))
		for i, t := range in {
			out[i] = toItem(t)
		}
		return out
	}
	return &Buckets{
		Today:    convert(raw.Today),
		Tomorrow: convert(raw.Tomorrow),
		Upcoming: convert(raw.Upcoming),
		Past:     convert(raw.Past),
	}, nil
}

// CreateTask creates a new task.
func (c *Client) CreateTask(name, dueDate string) (string, error) {
	body := map[string]string{
		"name":    name,
		"dueDate": dueDate,
	}
	resp, err := c.post("/tasks", body)
	if err != nil {
		return "", err
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return "", err
	}
	return result.ID, nil
}

// CompleteTask toggles a task's completion. It reports the due date of
// the next occurrence when completing the task created one.
func (c *Client) CompleteTask(taskID string) (nextDue string, err error) {
	resp, err := c.post("/tasks/"+taskID+"/complete", struct{}{})
	if err != nil {
		return "", err
	}

	var result struct {
		NextInstance *struct {
			DueDate string `json:"dueDate"`
		} `json:"nextInstance"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return "", err
	}
	if result.NextInstance != nil {
		return result.NextInstance.DueDate, nil
	}
	return "", nil
}

// SnoozeTask shifts a task's due date forward. Zero hours uses the
// daemon's stored snooze preference.
func (c *Client) SnoozeTask(taskID string, hours int) (string, error) {
	body := map[string]int{"hours": hours}
	resp, err := c.post("/tasks/"+taskID+"/snooze", body)
	if err != nil {
		return "", err
	}

	var result struct {
		NewDueDate string `json:"newDueDate"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return "", err
	}
	return result.NewDueDate, nil
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(taskID string) error {
	req, err := http.NewRequest(http.MethodDelete, c.baseURL+"/tasks/"+taskID, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error: %s", string(body))
	}
	return nil
}

// ListTags fetches the tag registry.
func (c *Client) ListTags() (map[string][]string, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/tags")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var tags map[string][]string
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// RecentEvents fetches the recent-activity journal.
func (c *Client) RecentEvents() ([]EventItem, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/events")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var entries []struct {
		Time   time.Time `json:"time"`
		Event  string    `json:"event"`
		TaskID string    `json:"taskId"`
		Name   string    `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, err
	}

	items := make([]EventItem, len(entries))
	for i, e := range entries {
		items[i] = EventItem{
			Time:  e.Time.Local().Format("15:04"),
			Event: e.Event,
			Name:  e.Name,
		}
	}
	return items, nil
}

func (c *Client) post(path string, data interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Post(c.baseURL+path, "application/json", bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	return body, nil
}

// CheckHealth checks if the daemon is healthy.
func (c *Client) CheckHealth() (bool, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/health")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}

	var health struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false, err
	}

	return health.OK, nil
}
