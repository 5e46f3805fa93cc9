// Package recurrence provides pure date math for due dates: advancing a
// recurring task to its next occurrence and bucketing tasks by due date.
// All functions take the current time explicitly and do no I/O.
package recurrence

import (
	"sort"
	"time"

	"github.com/nudgeapp/nudge/internal/models"
)

// DateLayout is the calendar-date form used for due dates.
const DateLayout = "2006-01-02"

// dueSoonWindowDays is the look-ahead window for IsDueSoon.
const dueSoonWindowDays = 3

// NextDueDate returns the next occurrence for a due date under the given
// recurrence. Monthly advances clamp to the last valid day of the target
// month (Jan 31 -> Feb 28/29); yearly clamps the same way for Feb 29.
// Unrecognized recurrences and unparseable dates return the input unchanged.
func NextDueDate(date string, r models.Recurrence) string {
	t, err := time.ParseInLocation(DateLayout, date, time.Local)
	if err != nil {
		return date
	}

	switch r {
	case models.RecurrenceDaily:
		t = t.AddDate(0, 0, 1)
	case models.RecurrenceWeekly:
		t = t.AddDate(0, 0, 7)
	case models.RecurrenceMonthly:
		t = addMonthsClamped(t, 1)
	case models.RecurrenceYearly:
		t = addYearsClamped(t, 1)
	default:
		return date
	}
	return t.Format(DateLayout)
}

// addMonthsClamped adds months without the AddDate overflow behavior:
// the day of month is clamped to the last day of the target month.
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	firstOfTarget := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(firstOfTarget); d > last {
		d = last
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, 0, 0, 0, 0, t.Location())
}

func addYearsClamped(t time.Time, years int) time.Time {
	return addMonthsClamped(t, years*12)
}

// daysIn returns the number of days in the month containing t.
func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// midnight normalizes a time to local midnight. Comparing normalized dates
// avoids drift when the wall clocks sit on either side of a DST change.
func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// parseDay parses a due date at local midnight.
func parseDay(date string) (time.Time, bool) {
	t, err := time.ParseInLocation(DateLayout, date, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// IsToday reports whether date falls on the same calendar day as now.
func IsToday(date string, now time.Time) bool {
	d, ok := parseDay(date)
	if !ok {
		return false
	}
	return d.Equal(midnight(now))
}

// IsTomorrow reports whether date falls on the calendar day after now.
func IsTomorrow(date string, now time.Time) bool {
	d, ok := parseDay(date)
	if !ok {
		return false
	}
	return d.Equal(midnight(now).AddDate(0, 0, 1))
}

// IsDueSoon reports whether date falls within [today, today+3d] inclusive.
func IsDueSoon(date string, now time.Time) bool {
	d, ok := parseDay(date)
	if !ok {
		return false
	}
	today := midnight(now)
	return !d.Before(today) && !d.After(today.AddDate(0, 0, dueSoonWindowDays))
}

// Buckets holds tasks grouped by due date relative to a reference time.
type Buckets struct {
	Today    []models.Task `json:"today"`
	Tomorrow []models.Task `json:"tomorrow"`
	Upcoming []models.Task `json:"upcoming"`
	Past     []models.Task `json:"past"`
}

// Categorize groups tasks into today/tomorrow/upcoming/past buckets. A task
// without a due date counts as due today. Each bucket is sorted ascending
// by due date, tasks without a due date first.
func Categorize(tasks []models.Task, now time.Time) Buckets {
	var b Buckets
	today := midnight(now)

	for _, t := range tasks {
		if t.DueDate == "" {
			b.Today = append(b.Today, t)
			continue
		}
		d, ok := parseDay(t.DueDate)
		if !ok {
			b.Today = append(b.Today, t)
			continue
		}
		switch {
		case d.Equal(today):
			b.Today = append(b.Today, t)
		case d.Equal(today.AddDate(0, 0, 1)):
			b.Tomorrow = append(b.Tomorrow, t)
		case d.Before(today):
			b.Past = append(b.Past, t)
		default:
			b.Upcoming = append(b.Upcoming, t)
		}
	}

	sortByDueDate(b.Today)
	sortByDueDate(b.Tomorrow)
	sortByDueDate(b.Upcoming)
	sortByDueDate(b.Past)
	return b
}

// sortByDueDate orders tasks ascending by due date; empty due dates first.
// The sort is stable so insertion order is kept within equal dates.
func sortByDueDate(tasks []models.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i].DueDate, tasks[j].DueDate
		if a == "" || b == "" {
			return a == "" && b != ""
		}
		return a < b
	})
}
