// Package dedup collapses task records that represent the same logical
// task even when mirrored across partitions or re-delivered by listeners.
package dedup

import (
	"github.com/ndimoski/taskmirror/pkg/models"
)

// DefaultDenylist holds the known junk/test titles the hygiene sweep
// removes. Matching is on the trimmed-lowercased title.
var DefaultDenylist = []string{"Mmm", "Test", "Testing"}

type logicalKey struct {
	titleKey string
	dueDay   string
}

// Deduplicator enforces the natural-key identity invariant: records with
// equal trimmed-lowercased titles and equal due calendar day are the same
// logical task, and the first-seen one wins.
type Deduplicator struct {
	denylist map[string]struct{}
	titles   []string
}

// New builds a Deduplicator with the given junk-title denylist; with no
// arguments the default denylist applies.
func New(denylist ...string) *Deduplicator {
	if len(denylist) == 0 {
		denylist = DefaultDenylist
	}
	d := &Deduplicator{denylist: make(map[string]struct{}, len(denylist))}
	for _, t := range denylist {
		d.denylist[models.TitleKeyFor(t)] = struct{}{}
		d.titles = append(d.titles, t)
	}
	return d
}

// Denylisted reports whether a title is junk. Applied uniformly to every
// surfaced list and before any bulk delete sweep.
func (d *Deduplicator) Denylisted(title string) bool {
	_, ok := d.denylist[models.TitleKeyFor(title)]
	return ok
}

// DenylistTitles returns the configured junk titles, for the sweep.
func (d *Deduplicator) DenylistTitles() []string {
	out := make([]string, len(d.titles))
	copy(out, d.titles)
	return out
}

// Collapse concatenates the given record streams in precedence order and
// returns the set with duplicates dropped: the first-seen record for each
// identity key survives, so a fallback stream never overrides a record
// already delivered by a primary stream. Denylisted titles are dropped
// outright. Idempotent; output order is input arrival order.
func (d *Deduplicator) Collapse(streams ...[]models.TaskRecord) []models.TaskRecord {
	seen := make(map[logicalKey]struct{})
	var out []models.TaskRecord
	for _, stream := range streams {
		for _, rec := range stream {
			if d.Denylisted(rec.Title) {
				continue
			}
			key := logicalKey{
				titleKey: models.TitleKeyFor(rec.Title),
				dueDay:   models.DueDayFor(rec.DueDate),
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, rec)
		}
	}
	return out
}
