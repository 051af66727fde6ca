package models

import "time"

// Team is a schedulable group of technicians sharing one working calendar.
type Team struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Active      bool      `db:"active" json:"active"`
	LeadID      *string   `db:"lead_id" json:"lead_id,omitempty"`
	CalendarID  *string   `db:"calendar_id" json:"calendar_id,omitempty"`
	WarehouseID *string   `db:"warehouse_id" json:"warehouse_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// EligibleTeam is a team qualified for a task type, flagged when the type
// lists it as preferred rather than merely capable.
type EligibleTeam struct {
	Team
	Preferred bool `db:"preferred" json:"preferred"`
}

// TeamFilter captures filtering criteria for listing teams.
type TeamFilter struct {
	Active     *bool
	Search     string
	TaskTypeID string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
