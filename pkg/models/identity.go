package models

import (
	"strings"
	"time"
)

// Partition names the storage bucket a record lives in.
type Partition string

const (
	AdminSharedPartition Partition = "admin_shared"
	SelfPartition        Partition = "self"
	ArchivedPartition    Partition = "archived"
)

// DueDayLayout is the calendar-day encoding used inside identity keys.
const DueDayLayout = "2006-01-02"

// IdentityKey is the natural key used to correlate task records in lieu of
// a stable id: case-insensitive trimmed title plus due calendar day plus
// owning partition. Two distinct tasks sharing a title and a due day are
// indistinguishable under this key; that is an accepted limitation of the
// data, not something callers should work around.
type IdentityKey struct {
	TitleKey  string    `json:"title_key" db:"title_key"`
	DueDay    string    `json:"due_day" db:"due_day"`
	Partition Partition `json:"partition" db:"partition"`
}

// TitleKeyFor normalizes a title for identity purposes.
func TitleKeyFor(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// DueDayFor truncates a timestamp to its calendar day.
func DueDayFor(ts time.Time) string {
	return ts.Format(DueDayLayout)
}

// KeyFor builds the identity key for a title/due-date pair in a partition.
func KeyFor(title string, due time.Time, partition Partition) IdentityKey {
	return IdentityKey{
		TitleKey:  TitleKeyFor(title),
		DueDay:    DueDayFor(due),
		Partition: partition,
	}
}

// Key returns the record's identity key in its current partition.
func (t TaskRecord) Key() IdentityKey {
	return KeyFor(t.Title, t.DueDate, t.HomePartition())
}

// HomePartition maps a record to the partition that owns it.
func (t TaskRecord) HomePartition() Partition {
	if t.Archived {
		return ArchivedPartition
	}
	if t.Origin == SelfOrigin {
		return SelfPartition
	}
	return AdminSharedPartition
}

// SameLogicalTask reports whether two records represent the same logical
// task regardless of partition.
func SameLogicalTask(a, b TaskRecord) bool {
	return TitleKeyFor(a.Title) == TitleKeyFor(b.Title) &&
		DueDayFor(a.DueDate) == DueDayFor(b.DueDate)
}

// OwnerFilter scopes a subscription to an identity. A zero filter means
// "no filter": the store returns nothing rather than erroring.
type OwnerFilter struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

func (o OwnerFilter) IsZero() bool {
	return o.UID == "" && o.Email == ""
}

// Matches reports whether an assignee reference (email or uid) belongs to
// this owner. Comparison is case-insensitive to match how identities are
// entered across surfaces.
func (o OwnerFilter) Matches(assignee string) bool {
	if o.IsZero() {
		return false
	}
	a := strings.ToLower(strings.TrimSpace(assignee))
	return (o.Email != "" && a == strings.ToLower(o.Email)) ||
		(o.UID != "" && a == strings.ToLower(o.UID))
}
