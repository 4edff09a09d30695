package models

import "time"

type TaskStatus string

const (
	NotStartedTaskStatus     TaskStatus = "NOT_STARTED"
	InProgressTaskStatus     TaskStatus = "IN_PROGRESS"
	StuckTaskStatus          TaskStatus = "STUCK"
	WaitingForTaskStatus     TaskStatus = "WAITING_FOR"
	OnHoldByClientTaskStatus TaskStatus = "ON_HOLD_BY_CLIENT"
	NeedHelpTaskStatus       TaskStatus = "NEED_HELP"
	CompletedTaskStatus      TaskStatus = "COMPLETED"
	CanceledTaskStatus       TaskStatus = "CANCELED"
)

// AllTaskStatuses lists every status in display order. The filter pipeline
// and the status pickers rely on this order, so keep it stable.
var AllTaskStatuses = []TaskStatus{
	NotStartedTaskStatus,
	InProgressTaskStatus,
	StuckTaskStatus,
	WaitingForTaskStatus,
	OnHoldByClientTaskStatus,
	NeedHelpTaskStatus,
	CompletedTaskStatus,
	CanceledTaskStatus,
}

func (s TaskStatus) Valid() bool {
	for _, known := range AllTaskStatuses {
		if s == known {
			return true
		}
	}
	return false
}

type Priority string

const (
	P1Priority Priority = "P1"
	P2Priority Priority = "P2"
	P3Priority Priority = "P3"
)

// Label returns the canonical human label for a priority: P1=High,
// P2=Medium, P3=Low. The two presentation surfaces this replaces disagreed
// on the direction (one mapped P1 to Low); this mapping is the documented
// canonical one, and the priority filter accepts enum, short code and label
// so records written under either historical mapping stay findable.
func (p Priority) Label() string {
	switch p {
	case P1Priority:
		return "High"
	case P2Priority:
		return "Medium"
	case P3Priority:
		return "Low"
	}
	return ""
}

// ShortCode returns the numeric code ("1", "2", "3") some surfaces display.
func (p Priority) ShortCode() string {
	if len(p) == 2 {
		return string(p[1])
	}
	return ""
}

type TaskOrigin string

const (
	SelfOrigin           TaskOrigin = "SELF"
	AdminSharedOrigin    TaskOrigin = "ADMIN_SHARED"
	ClientAssignedOrigin TaskOrigin = "CLIENT_ASSIGNED"
)

type RecurringPattern string

const (
	DailyPattern   RecurringPattern = "DAILY"
	WeeklyPattern  RecurringPattern = "WEEKLY"
	MonthlyPattern RecurringPattern = "MONTHLY"
	CustomPattern  RecurringPattern = "CUSTOM"
)

// ProjectRef is a lightweight project reference (id plus display name).
type ProjectRef struct {
	ID   string `json:"id" db:"project_id"`
	Name string `json:"name" db:"project_name"`
}

// TaskRecord is the canonical task entity mirrored across storage
// partitions. It carries no stable cross-partition identifier; records are
// correlated by the natural key returned from Key instead.
type TaskRecord struct {
	Title            string           `json:"title" db:"title"`
	Description      string           `json:"description" db:"description"`
	Status           TaskStatus       `json:"status" db:"status"`
	StatusLabel      string           `json:"status_label" db:"status_label"` // free-form display label, preserved verbatim
	Priority         Priority         `json:"priority" db:"priority"`
	StartDate        time.Time        `json:"start_date" db:"start_date"`
	DueDate          time.Time        `json:"due_date" db:"due_date"`
	AssignedTo       string           `json:"assigned_to" db:"assigned_to"` // email or uid
	Project          *ProjectRef      `json:"project,omitempty"`
	Origin           TaskOrigin       `json:"origin" db:"origin"`
	IsRecurring      bool             `json:"is_recurring" db:"is_recurring"`
	RecurringPattern RecurringPattern `json:"recurring_pattern,omitempty" db:"recurring_pattern"`
	RecurringDays    int              `json:"recurring_days,omitempty" db:"recurring_days"`
	RecurringEndDate *time.Time       `json:"recurring_end_date,omitempty" db:"recurring_end_date"`
	SubtaskText      string           `json:"subtask,omitempty" db:"subtask_text"` // legacy free-text, one item per line
	Subtasks         []SubtaskRecord  `json:"subtask_collection,omitempty"`
	SubtaskStatus    TaskStatus       `json:"subtask_status,omitempty" db:"subtask_status"` // independent rollup, never auto-derived
	Progress         int              `json:"progress" db:"progress"`
	Comments         []Comment        `json:"comments,omitempty"`
	Activity         []ActivityEntry  `json:"activity,omitempty"`
	Archived         bool             `json:"archived" db:"archived"`
}
