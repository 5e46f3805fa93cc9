// Package tui provides the interactive terminal UI for nudge.
package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	// Colors
	primaryColor = lipgloss.Color("#7C3AED")
	successColor = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")
	fgColor      = lipgloss.Color("#F9FAFB")
	cyanColor    = lipgloss.Color("#06B6D4")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	taskItemStyle = lipgloss.NewStyle().
			Padding(0, 2)

	selectedStyle = lipgloss.NewStyle().
			Background(primaryColor).
			Foreground(fgColor).
			Bold(true).
			Padding(0, 2)

	bucketHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(cyanColor)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	daemonOnlineStyle = lipgloss.NewStyle().
				Foreground(successColor).
				Bold(true)

	daemonOfflineStyle = lipgloss.NewStyle().
				Foreground(errorColor)
)

// row is one rendered line of the list: a bucket header or a task.
type row struct {
	header string
	task   *TaskItem
}

// App is the main TUI application model.
type App struct {
	client       *Client
	buckets      *Buckets
	rows         []row
	selectedIdx  int
	input        textinput.Model
	width        int
	height       int
	mode         string // "list", "events", "tags"
	events       []EventItem
	tags         map[string][]string
	tagFilter    string
	message      string
	filterIdx    int
	loading      bool
	daemonOnline bool
	suggestions  *Suggestions
}

var filters = []string{"all", "today", "tomorrow", "upcoming", "past"}
var filterNames = []string{"ALL", "TODAY", "TOMORROW", "UPCOMING", "PAST"}

// New creates a new TUI application.
func New(apiAddr string) *App {
	ti := textinput.New()
	ti.Placeholder = "Type: add <name> [@YYYY-MM-DD] | done | snooze [hours] | rm | #tag"
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 80

	return &App{
		client:      NewClient(apiAddr),
		mode:        "list",
		input:       ti,
		suggestions: NewSuggestions(),
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		a.fetchBuckets(),
		a.checkDaemon(),
	)
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit

		case "esc":
			if a.mode == "events" || a.mode == "tags" {
				a.mode = "list"
				return a, a.fetchBuckets()
			}
			if a.tagFilter != "" {
				a.tagFilter = ""
				a.rebuildRows()
			}

		case "up", "k":
			if a.suggestions.IsVisible() {
				a.suggestions.Prev()
			} else if a.mode == "list" {
				a.moveSelection(-1)
			}

		case "down", "j":
			if a.suggestions.IsVisible() {
				a.suggestions.Next()
			} else if a.mode == "list" {
				a.moveSelection(1)
			}

		case "tab":
			if a.suggestions.IsVisible() {
				if selected := a.suggestions.Selected(); selected != nil {
					a.acceptSuggestion(selected)
				}
				return a, nil
			}
			a.filterIdx = (a.filterIdx + 1) % len(filters)
			a.rebuildRows()

		case "enter":
			if a.suggestions.IsVisible() {
				if selected := a.suggestions.Selected(); selected != nil {
					a.acceptSuggestion(selected)
				}
				return a, nil
			}
			cmd := strings.TrimSpace(a.input.Value())
			if cmd != "" {
				a.input.SetValue("")
				return a, a.executeCommand(cmd)
			}

		case "r":
			if a.mode == "list" && a.input.Value() == "" {
				return a, a.fetchBuckets()
			}
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = msg.Width - 4

	case bucketsLoadedMsg:
		a.loading = false
		a.buckets = msg.buckets
		a.rebuildRows()

	case eventsLoadedMsg:
		a.events = msg.events
		a.mode = "events"

	case tagsLoadedMsg:
		a.tags = msg.tags
		a.mode = "tags"

	case daemonStatusMsg:
		a.daemonOnline = msg.online

	case commandResultMsg:
		a.message = msg.message
		return a, a.fetchBuckets()

	case errMsg:
		a.message = "Error: " + msg.err.Error()
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)

	a.suggestions.Update(a.input.Value())

	// Populate tag suggestions for #
	if strings.HasPrefix(a.input.Value(), "#") && a.tags != nil {
		var names []string
		for name := range a.tags {
			names = append(names, name)
		}
		a.suggestions.SetTags(names)
	}

	return a, tea.Batch(cmds...)
}

func (a *App) acceptSuggestion(item *SuggestionItem) {
	if item.Type == "tag" {
		a.tagFilter = item.Text
		a.input.SetValue("")
		a.suggestions.Update("")
		a.rebuildRows()
		return
	}
	a.input.SetValue(item.Text + " ")
	a.suggestions.Update("")
}

// moveSelection moves the cursor, skipping bucket header rows.
func (a *App) moveSelection(delta int) {
	i := a.selectedIdx + delta
	for i >= 0 && i < len(a.rows) && a.rows[i].task == nil {
		i += delta
	}
	if i >= 0 && i < len(a.rows) {
		a.selectedIdx = i
	}
}

// selectedTask returns the task under the cursor, if any.
func (a *App) selectedTask() *TaskItem {
	if a.selectedIdx < 0 || a.selectedIdx >= len(a.rows) {
		return nil
	}
	return a.rows[a.selectedIdx].task
}

// rebuildRows flattens the buckets into display rows honoring the
// current filter.
func (a *App) rebuildRows() {
	a.rows = nil
	if a.buckets == nil {
		return
	}

	sections := []struct {
		name  string
		tasks []TaskItem
	}{
		{"today", a.buckets.Today},
		{"tomorrow", a.buckets.Tomorrow},
		{"upcoming", a.buckets.Upcoming},
		{"past", a.buckets.Past},
	}

	filter := filters[a.filterIdx]
	for si := range sections {
		if filter != "all" && filter != sections[si].name {
			continue
		}
		visible := make([]*TaskItem, 0, len(sections[si].tasks))
		for ti := range sections[si].tasks {
			t := &sections[si].tasks[ti]
			if a.tagFilter != "" && !hasTag(t, a.tagFilter) {
				continue
			}
			visible = append(visible, t)
		}
		if len(visible) == 0 {
			continue
		}
		a.rows = append(a.rows, row{header: sections[si].name})
		for _, t := range visible {
			a.rows = append(a.rows, row{task: t})
		}
	}

	if a.selectedIdx >= len(a.rows) {
		a.selectedIdx = len(a.rows) - 1
	}
	if a.selectedIdx < 0 {
		a.selectedIdx = 0
	}
	// Land on a task row, not a header.
	if a.selectedIdx < len(a.rows) && a.rows[a.selectedIdx].task == nil {
		a.moveSelection(1)
	}
}

func hasTag(t *TaskItem, tag string) bool {
	for _, have := range t.Tags {
		if have == tag {
			return true
		}
	}
	return false
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	daemonStatus := daemonOnlineStyle.Render("● daemon")
	if !a.daemonOnline {
		daemonStatus = daemonOfflineStyle.Render("○ daemon")
	}

	header := titleStyle.Render("NUDGE")
	header += "  " + daemonStatus
	if a.tagFilter != "" {
		header += "  " + lipgloss.NewStyle().Foreground(cyanColor).Render("#"+a.tagFilter)
	}
	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("─", a.width) + "\n")

	contentHeight := a.height - 8
	if contentHeight < 5 {
		contentHeight = 5
	}

	switch a.mode {
	case "list":
		filterLabel := fmt.Sprintf(" Filter: [%s]", filterNames[a.filterIdx])
		b.WriteString(lipgloss.NewStyle().Foreground(mutedColor).Render(filterLabel) + "\n")
		b.WriteString(a.renderTaskList(contentHeight - 1))
	case "events":
		b.WriteString(a.renderEvents(contentHeight))
	case "tags":
		b.WriteString(a.renderTags(contentHeight))
	}

	if a.message != "" {
		msgStyle := lipgloss.NewStyle().Foreground(successColor)
		if strings.HasPrefix(a.message, "Error") {
			msgStyle = lipgloss.NewStyle().Foreground(errorColor)
		}
		b.WriteString("\n" + msgStyle.Render(a.message))
	} else {
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(inputBoxStyle.Render(a.input.View()))

	if a.suggestions.IsVisible() {
		b.WriteString("\n")
		b.WriteString(a.suggestions.Render(a.width))
	}
	b.WriteString("\n")

	var status string
	switch a.mode {
	case "list":
		status = fmt.Sprintf(" Tasks: %d | ↑↓:nav | Tab:filter | r:refresh | /:commands | Ctrl+C:quit", a.taskCount())
	case "events":
		status = " Recent activity | Esc:back"
	case "tags":
		status = " Tags | Esc:back"
	}
	b.WriteString(statusBarStyle.Width(a.width).Render(status))

	return b.String()
}

func (a *App) taskCount() int {
	n := 0
	for _, r := range a.rows {
		if r.task != nil {
			n++
		}
	}
	return n
}

func (a *App) renderTaskList(height int) string {
	if a.loading {
		return "\n  Loading tasks...\n"
	}
	if len(a.rows) == 0 {
		return "\n  No tasks. Type: add <name> @2026-01-15 to create one.\n"
	}

	var lines []string
	for i, r := range a.rows {
		if r.task == nil {
			lines = append(lines, "  "+bucketHeaderStyle.Render(strings.ToUpper(r.header)))
			continue
		}
		t := r.task
		label := a.formatTask(t)
		if i == a.selectedIdx {
			lines = append(lines, selectedStyle.Render("▶ "+label))
		} else {
			lines = append(lines, taskItemStyle.Render("  "+label))
		}
	}

	if len(lines) > height {
		start := a.selectedIdx - height/2
		if start < 0 {
			start = 0
		}
		end := start + height
		if end > len(lines) {
			end = len(lines)
			start = max(0, end-height)
		}
		lines = lines[start:end]
	}

	return strings.Join(lines, "\n")
}

func (a *App) formatTask(t *TaskItem) string {
	mark := "○"
	if t.Completed {
		mark = "●"
	}
	label := fmt.Sprintf("%s %s", mark, t.Name)
	if t.DueDate != "" {
		label += "  " + lipgloss.NewStyle().Foreground(mutedColor).Render(t.DueDate)
	}
	if t.Recurring != "" {
		label += " " + lipgloss.NewStyle().Foreground(cyanColor).Render("↻"+t.Recurring)
	}
	if t.ReminderTime != "" {
		label += " " + lipgloss.NewStyle().Foreground(warningColor).Render("⏰"+t.ReminderTime)
	}
	for _, tag := range t.Tags {
		label += " " + lipgloss.NewStyle().Foreground(mutedColor).Render("#"+tag)
	}
	return label
}

func (a *App) renderEvents(height int) string {
	var b strings.Builder
	b.WriteString("\n  Recent Activity\n")
	b.WriteString("  " + strings.Repeat("─", 40) + "\n\n")

	if len(a.events) == 0 {
		b.WriteString("  Nothing yet.\n")
		return b.String()
	}

	start := 0
	if len(a.events) > height-4 {
		start = len(a.events) - (height - 4)
	}
	for _, e := range a.events[start:] {
		name := e.Name
		if name == "" {
			name = "(task)"
		}
		b.WriteString(fmt.Sprintf("  %s  %-15s %s\n",
			lipgloss.NewStyle().Foreground(mutedColor).Render(e.Time),
			e.Event, name))
	}
	return b.String()
}

func (a *App) renderTags(height int) string {
	var b strings.Builder
	b.WriteString("\n  Tags\n")
	b.WriteString("  " + strings.Repeat("─", 40) + "\n\n")

	if len(a.tags) == 0 {
		b.WriteString("  No tags defined.\n")
		return b.String()
	}

	for name, keywords := range a.tags {
		b.WriteString(fmt.Sprintf("  %s  %s\n",
			bucketHeaderStyle.Render("#"+name),
			lipgloss.NewStyle().Foreground(mutedColor).Render(strings.Join(keywords, ", "))))
	}
	b.WriteString("\n  " + helpStyle.Render("Type #<tag> in the list view to filter") + "\n")
	return b.String()
}

func (a *App) fetchBuckets() tea.Cmd {
	a.loading = true
	return func() tea.Msg {
		buckets, err := a.client.GetBuckets()
		if err != nil {
			return errMsg{err}
		}
		return bucketsLoadedMsg{buckets}
	}
}

func (a *App) checkDaemon() tea.Cmd {
	return func() tea.Msg {
		ok, err := a.client.CheckHealth()
		return daemonStatusMsg{online: err == nil && ok}
	}
}

func (a *App) executeCommand(input string) tea.Cmd {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}

	cmd := parts[0]
	args := parts[1:]
	selected := a.selectedTask()

	return func() tea.Msg {
		switch cmd {
		case "add":
			if len(args) < 1 {
				return commandResultMsg{"Usage: add <name> [@YYYY-MM-DD]"}
			}
			name, dueDate := splitDue(args)
			id, err := a.client.CreateTask(name, dueDate)
			if err != nil {
				return commandResultMsg{"Error: " + err.Error()}
			}
			return commandResultMsg{fmt.Sprintf("✓ Created task: %s", shortID(id))}

		case "done":
			if selected == nil {
				return commandResultMsg{"No task selected"}
			}
			nextDue, err := a.client.CompleteTask(selected.ID)
			if err != nil {
				return commandResultMsg{"Error: " + err.Error()}
			}
			if nextDue != "" {
				return commandResultMsg{fmt.Sprintf("✓ Done. Next occurrence due %s", nextDue)}
			}
			return commandResultMsg{"✓ Done"}

		case "snooze":
			if selected == nil {
				return commandResultMsg{"No task selected"}
			}
			hours := 0
			if len(args) > 0 {
				h, err := strconv.Atoi(args[0])
				if err != nil {
					return commandResultMsg{"Usage: snooze [hours]"}
				}
				hours = h
			}
			newDue, err := a.client.SnoozeTask(selected.ID, hours)
			if err != nil {
				return commandResultMsg{"Error: " + err.Error()}
			}
			return commandResultMsg{fmt.Sprintf("✓ Snoozed until %s", newDue)}

		case "rm":
			if selected == nil {
				return commandResultMsg{"No task selected"}
			}
			if err := a.client.DeleteTask(selected.ID); err != nil {
				return commandResultMsg{"Error: " + err.Error()}
			}
			return commandResultMsg{"✓ Deleted"}

		case "tags":
			tags, err := a.client.ListTags()
			if err != nil {
				return errMsg{err}
			}
			return tagsLoadedMsg{tags}

		case "events":
			events, err := a.client.RecentEvents()
			if err != nil {
				return errMsg{err}
			}
			return eventsLoadedMsg{events}

		case "q", "quit", "exit":
			return tea.Quit()

		default:
			return commandResultMsg{fmt.Sprintf("Unknown: %s (try: add, done, snooze, rm)", cmd)}
		}
	}
}

// splitDue separates a trailing @YYYY-MM-DD token from the task name.
func splitDue(args []string) (name, dueDate string) {
	last := args[len(args)-1]
	if strings.HasPrefix(last, "@") {
		return strings.Join(args[:len(args)-1], " "), strings.TrimPrefix(last, "@")
	}
	return strings.Join(args, " "), ""
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

type commandResultMsg struct {
	message string
}

type errMsg struct {
	err error
}

type bucketsLoadedMsg struct {
	buckets *Buckets
}

type eventsLoadedMsg struct {
	events []EventItem
}

type tagsLoadedMsg struct {
	tags map[string][]string
}

type daemonStatusMsg struct {
	online bool
}
