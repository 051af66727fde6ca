package models

import "time"

// TaskType classifies field work and carries scheduling defaults: how long a
// job of this type usually takes and the travel/setup buffers around it.
type TaskType struct {
	ID               string    `db:"id" json:"id"`
	Name             string    `db:"name" json:"name"`
	Active           bool      `db:"active" json:"active"`
	DefaultHours     float64   `db:"default_hours" json:"default_hours"`
	BufferBeforeMins int       `db:"buffer_before_mins" json:"buffer_before_mins"`
	BufferAfterMins  int       `db:"buffer_after_mins" json:"buffer_after_mins"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// TaskTypeFilter narrows task type listings.
type TaskTypeFilter struct {
	Active   *bool
	Search   string
	Page     int
	PageSize int
}

// TaskOccupancy is an external record occupying team time without a formal
// booking, folded into conflict checks alongside bookings.
type TaskOccupancy struct {
	TaskID   string    `db:"task_id" json:"task_id"`
	TeamID   string    `db:"team_id" json:"team_id"`
	StartUTC time.Time `db:"start_utc" json:"start_utc"`
	EndUTC   time.Time `db:"end_utc" json:"end_utc"`
}
