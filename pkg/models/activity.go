package models

import "time"

// Comment is the legacy per-task comment shape.
type Comment struct {
	User      string    `json:"user" db:"user_ref"`
	Message   string    `json:"message" db:"message"`
	Timestamp time.Time `json:"timestamp" db:"logged_at"`
}

// ActivityEntry is one entry of the append-only activity log. Completion
// comments land here, not on the task record itself.
type ActivityEntry struct {
	ID       string    `json:"id" db:"id"`
	User     string    `json:"user" db:"user_ref"`
	Message  string    `json:"message" db:"message"`
	LoggedAt time.Time `json:"logged_at" db:"logged_at"`
}
