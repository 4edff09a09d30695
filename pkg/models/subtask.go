package models

import "time"

// SubtaskRecord is a structured subtask owned by a parent task.
type SubtaskRecord struct {
	ID         string     `json:"id" db:"id"`
	Title      string     `json:"title" db:"title"`
	Status     TaskStatus `json:"status" db:"status"`
	Priority   Priority   `json:"priority" db:"priority"`
	DueDate    *time.Time `json:"due_date,omitempty" db:"due_date"`
	AssignedTo string     `json:"assigned_to,omitempty" db:"assigned_to"`
}

type SubtaskSourceKind string

const (
	LegacySubtaskSource     SubtaskSourceKind = "LEGACY"
	StructuredSubtaskSource SubtaskSourceKind = "STRUCTURED"
)

// SubtaskSource is the tagged union at the storage boundary: a legacy
// free-text blob (one item per line with optional inline tags) or a
// structured list. The two are presented together but mutated differently:
// legacy entries only by rewriting the whole blob, structured entries by id.
type SubtaskSource struct {
	Kind  SubtaskSourceKind `json:"kind"`
	Raw   string            `json:"raw,omitempty"`
	Items []SubtaskRecord   `json:"items,omitempty"`
}
