// Package recurrence holds the pure calendar-day window functions that
// decide whether a recurring task instance is currently visible. Both
// checks take "today" as an input so they stay testable; all comparisons
// discard time-of-day and use a single reference location.
package recurrence

import (
	"time"

	"github.com/ndimoski/taskmirror/pkg/models"
)

func startOfDay(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
}

// SameDay reports whether two timestamps fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// IsActive reports whether a recurring window covers today. With no end
// date the window never expires; with one, the range is inclusive at both
// ends.
func IsActive(start time.Time, end *time.Time, today time.Time) bool {
	if end == nil {
		return true
	}
	day := startOfDay(today)
	return !day.Before(startOfDay(start)) && !day.After(startOfDay(*end))
}

// IsDueToday implements the "due today" predicate. For recurring tasks
// with an end date it is intentionally the same window check as IsActive;
// with no end date it degrades to start==today. Non-recurring tasks use
// plain calendar-day equality against the due date.
func IsDueToday(rec models.TaskRecord, today time.Time) bool {
	if rec.IsRecurring {
		if rec.RecurringEndDate == nil {
			return SameDay(rec.StartDate, today)
		}
		return IsActive(rec.StartDate, rec.RecurringEndDate, today)
	}
	return SameDay(rec.DueDate, today)
}

// Expired reports whether a recurring task's window has fully elapsed.
// Non-recurring tasks never expire this way.
func Expired(rec models.TaskRecord, today time.Time) bool {
	if !rec.IsRecurring {
		return false
	}
	return !IsActive(rec.StartDate, rec.RecurringEndDate, today)
}
