// Package filter composes the search, project, assignee, priority,
// status-label, source and time-window predicates into the final visible
// task set. Stage order is fixed for correctness, not performance: later
// stages read fields earlier stages normalize.
package filter

import (
	"strings"
	"time"

	"github.com/ndimoski/taskmirror/pkg/dedup"
	"github.com/ndimoski/taskmirror/pkg/models"
	"github.com/ndimoski/taskmirror/pkg/recurrence"
	"github.com/ndimoski/taskmirror/pkg/status"
)

// Filters is the filter state of one presentation surface.
type Filters struct {
	// SelfOnly toggles the origin gate: self-created tasks only, versus the
	// combined admin/client set.
	SelfOnly bool
	// Search is a case-insensitive substring over title and description.
	Search string
	// StatusLabel is a concrete status label, a raw custom label, or one of
	// the reserved meta-labels ("All", "Today's Task", "Recurring Task").
	StatusLabel string
	// ProjectID/ProjectName filter on project identity; either matching is
	// sufficient.
	ProjectID   string
	ProjectName string
	// Assignee is an exact, case-insensitive assignee match.
	Assignee string
	// Priority matches the raw enum, its short code, or its canonical human
	// label, any one sufficing.
	Priority string
	// DueToday activates the due-today predicate independently of the
	// reserved label.
	DueToday bool
	// Today is the reference day for all calendar-window checks.
	Today time.Time
}

// Pipeline applies the fixed filter stages and the output ordering.
type Pipeline struct {
	dedup *dedup.Deduplicator
}

func NewPipeline(dd *dedup.Deduplicator) *Pipeline {
	if dd == nil {
		dd = dedup.New()
	}
	return &Pipeline{dedup: dd}
}

// Apply is a pure function from (tasks, filters) to the ordered visible
// set. Running it twice on the same input yields identical ordering:
// records never get re-sorted, only grouped, so list positions stay stable
// across re-renders.
func (p *Pipeline) Apply(tasks []models.TaskRecord, f Filters) []models.TaskRecord {
	today := f.Today
	if today.IsZero() {
		today = time.Now()
	}

	// Resolve reserved meta-labels into their dedicated predicates before
	// any equality filtering.
	statusLabel := strings.TrimSpace(f.StatusLabel)
	dueToday := f.DueToday
	recurringOnly := false
	if status.IsReservedLabel(statusLabel) {
		switch {
		case strings.EqualFold(statusLabel, "All"):
		case strings.Contains(strings.ToLower(statusLabel), "recurring"):
			recurringOnly = true
		default: // "Today's Task"
			dueToday = true
		}
		statusLabel = ""
	}

	// 1. Origin gate.
	var out []models.TaskRecord
	for _, rec := range tasks {
		if f.SelfOnly != (rec.Origin == models.SelfOrigin) {
			continue
		}
		out = append(out, rec)
	}

	// 2. Deduplication, re-applied defensively. Idempotent.
	out = p.dedup.Collapse(out)

	// 3. Free-text search.
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		out = keep(out, func(rec models.TaskRecord) bool {
			return strings.Contains(strings.ToLower(rec.Title), q) ||
				strings.Contains(strings.ToLower(rec.Description), q)
		})
	}

	// 4. Status filter. A label that normalizes to a known status matches
	// the enum exactly; anything else matches the verbatim stored label so
	// custom labels stay filterable.
	if statusLabel != "" {
		if normalized, known := status.Normalize(statusLabel); known {
			out = keep(out, func(rec models.TaskRecord) bool {
				return rec.Status == normalized
			})
		} else {
			out = keep(out, func(rec models.TaskRecord) bool {
				return strings.TrimSpace(rec.StatusLabel) == statusLabel
			})
		}
	}

	// 5. Project filter.
	if f.ProjectID != "" || f.ProjectName != "" {
		out = keep(out, func(rec models.TaskRecord) bool {
			if rec.Project == nil {
				return false
			}
			return (f.ProjectID != "" && rec.Project.ID == f.ProjectID) ||
				(f.ProjectName != "" && rec.Project.Name == f.ProjectName)
		})
	}

	// 6. Assignee filter.
	if a := strings.TrimSpace(f.Assignee); a != "" {
		out = keep(out, func(rec models.TaskRecord) bool {
			return strings.EqualFold(strings.TrimSpace(rec.AssignedTo), a)
		})
	}

	// 7. Priority filter: enum, short code or human label, any match wins.
	if pq := strings.TrimSpace(f.Priority); pq != "" {
		out = keep(out, func(rec models.TaskRecord) bool {
			return strings.EqualFold(string(rec.Priority), pq) ||
				rec.Priority.ShortCode() == pq ||
				strings.EqualFold(rec.Priority.Label(), pq)
		})
	}

	// 8. Recurrence-window visibility: a recurring task whose window has
	// fully elapsed is dropped even if nothing else filters it out.
	out = keep(out, func(rec models.TaskRecord) bool {
		return !recurrence.Expired(rec, today)
	})

	if recurringOnly {
		out = keep(out, func(rec models.TaskRecord) bool { return rec.IsRecurring })
	}

	// 9. Due-today predicate, when active.
	if dueToday {
		out = keep(out, func(rec models.TaskRecord) bool {
			return recurrence.IsDueToday(rec, today)
		})
	}

	// 10. Denylist hygiene, defense in depth on top of the dedup stage.
	out = keep(out, func(rec models.TaskRecord) bool {
		return !p.dedup.Denylisted(rec.Title)
	})

	return orderForDisplay(out, today)
}

func keep(in []models.TaskRecord, pred func(models.TaskRecord) bool) []models.TaskRecord {
	out := in[:0]
	for _, rec := range in {
		if pred(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// orderForDisplay groups tasks into a synthetic "Today" bucket first, then
// by status in display order. Within a bucket, source order is preserved;
// ties break by arrival order, never by title or date.
func orderForDisplay(tasks []models.TaskRecord, today time.Time) []models.TaskRecord {
	var todayBucket []models.TaskRecord
	statusBuckets := make(map[models.TaskStatus][]models.TaskRecord)
	var unknownBucket []models.TaskRecord

	for _, rec := range tasks {
		if recurrence.IsDueToday(rec, today) {
			todayBucket = append(todayBucket, rec)
			continue
		}
		if rec.Status.Valid() {
			statusBuckets[rec.Status] = append(statusBuckets[rec.Status], rec)
		} else {
			unknownBucket = append(unknownBucket, rec)
		}
	}

	out := make([]models.TaskRecord, 0, len(tasks))
	out = append(out, todayBucket...)
	for _, s := range models.AllTaskStatuses {
		out = append(out, statusBuckets[s]...)
	}
	out = append(out, unknownBucket...)
	return out
}
