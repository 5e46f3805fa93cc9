package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add a new task",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTaskAdd,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks grouped by due date",
	RunE:  runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:   "show [task-id]",
	Short: "Show task details",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskDoneCmd = &cobra.Command{
	Use:   "done [task-id]",
	Short: "Toggle task completion",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDone,
}

var taskSnoozeCmd = &cobra.Command{
	Use:   "snooze [task-id]",
	Short: "Shift a task's due date forward",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskSnooze,
}

var taskRmCmd = &cobra.Command{
	Use:   "rm [task-id]",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskRm,
}

var (
	taskDue       string
	taskDesc      string
	taskRecurring string
	taskTags      []string
	taskRemind    string
	snoozeHours   int
)

func init() {
	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskShowCmd, taskDoneCmd, taskSnoozeCmd, taskRmCmd)

	taskAddCmd.Flags().StringVar(&taskDue, "due", "", "Due date (YYYY-MM-DD)")
	taskAddCmd.Flags().StringVar(&taskDesc, "desc", "", "Task description")
	taskAddCmd.Flags().StringVar(&taskRecurring, "recurring", "", "Recurrence (daily, weekly, monthly, yearly)")
	taskAddCmd.Flags().StringSliceVar(&taskTags, "tag", nil, "Tags (repeatable)")
	taskAddCmd.Flags().StringVar(&taskRemind, "remind", "", "Reminder time on the due date (HH:MM)")

	taskSnoozeCmd.Flags().IntVar(&snoozeHours, "hours", 0, "Hours to snooze (0 uses the stored preference)")
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	body := map[string]interface{}{
		"name":        strings.Join(args, " "),
		"description": taskDesc,
		"dueDate":     taskDue,
		"recurring":   taskRecurring,
		"tags":        taskTags,
	}
	if taskRemind != "" {
		body["reminder"] = map[string]interface{}{
			"enabled": true,
			"time":    taskRemind,
		}
	}

	resp, err := apiPost("/tasks", body)
	if err != nil {
		return err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}

	fmt.Printf("Created task: %s\n", result["id"])
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/buckets")
	if err != nil {
		return err
	}

	var buckets map[string][]map[string]interface{}
	if err := json.Unmarshal(resp, &buckets); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	empty := true
	for _, name := range []string{"past", "today", "tomorrow", "upcoming"} {
		tasks := buckets[name]
		if len(tasks) == 0 {
			continue
		}
		empty = false
		fmt.Fprintf(w, "%s\t\t\t\n", strings.ToUpper(name))
		for _, t := range tasks {
			id := truncateID(str(t["id"]))
			title := truncate(str(t["name"]), 40)
			due := str(t["dueDate"])
			flags := taskFlags(t)
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", id, title, due, flags)
		}
	}
	w.Flush()

	if empty {
		fmt.Println("No tasks found")
	}
	return nil
}

// taskFlags renders the compact marker column: done, recurrence,
// reminder time and tags.
func taskFlags(t map[string]interface{}) string {
	var parts []string
	if done, _ := t["completed"].(bool); done {
		parts = append(parts, "done")
	}
	if r := str(t["recurring"]); r != "" {
		parts = append(parts, r)
	}
	if rem, ok := t["reminder"].(map[string]interface{}); ok {
		if enabled, _ := rem["enabled"].(bool); enabled {
			parts = append(parts, "@"+str(rem["time"]))
		}
	}
	if tags, ok := t["tags"].([]interface{}); ok {
		for _, tag := range tags {
			parts = append(parts, "#"+str(tag))
		}
	}
	return strings.Join(parts, " ")
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/tasks/" + args[0])
	if err != nil {
		return err
	}

	var task map[string]interface{}
	if err := json.Unmarshal(resp, &task); err != nil {
		return err
	}

	fmt.Printf("ID:          %s\n", task["id"])
	fmt.Printf("Name:        %s\n", task["name"])
	if desc := str(task["description"]); desc != "" {
		fmt.Printf("Description: %s\n", desc)
	}
	if due := str(task["dueDate"]); due != "" {
		fmt.Printf("Due:         %s\n", due)
	}
	done, _ := task["completed"].(bool)
	fmt.Printf("Completed:   %v\n", done)
	if r := str(task["recurring"]); r != "" {
		fmt.Printf("Recurring:   %s\n", r)
		if orig := str(task["originalDueDate"]); orig != "" {
			fmt.Printf("First due:   %s\n", orig)
		}
	}
	if rem, ok := task["reminder"].(map[string]interface{}); ok {
		if enabled, _ := rem["enabled"].(bool); enabled {
			fmt.Printf("Reminder:    %s\n", str(rem["time"]))
		}
	}
	if tags, ok := task["tags"].([]interface{}); ok && len(tags) > 0 {
		var names []string
		for _, tag := range tags {
			names = append(names, str(tag))
		}
		fmt.Printf("Tags:        %s\n", strings.Join(names, ", "))
	}
	return nil
}

func runTaskDone(cmd *cobra.Command, args []string) error {
	resp, err := apiPost("/tasks/"+args[0]+"/complete", struct{}{})
	if err != nil {
		return err
	}

	var result struct {
		Task struct {
			Completed bool `json:"completed"`
		} `json:"task"`
		NextInstance *struct {
			ID      string `json:"id"`
			DueDate string `json:"dueDate"`
		} `json:"nextInstance"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}

	if result.Task.Completed {
		fmt.Printf("Completed task %s\n", args[0])
	} else {
		fmt.Printf("Reopened task %s\n", args[0])
	}
	if result.NextInstance != nil {
		fmt.Printf("Next occurrence %s due %s\n", truncateID(result.NextInstance.ID), result.NextInstance.DueDate)
	}
	return nil
}

func runTaskSnooze(cmd *cobra.Command, args []string) error {
	body := map[string]int{"hours": snoozeHours}
	resp, err := apiPost("/tasks/"+args[0]+"/snooze", body)
	if err != nil {
		return err
	}

	var result map[string]string
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}

	fmt.Printf("Snoozed task %s until %s\n", args[0], result["newDueDate"])
	return nil
}

func runTaskRm(cmd *cobra.Command, args []string) error {
	if _, err := apiSend(http.MethodDelete, "/tasks/"+args[0], nil); err != nil {
		return err
	}
	fmt.Printf("Deleted task %s\n", args[0])
	return nil
}

// --- Helpers ---

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
