package models

import "time"

// Audit actions recorded for booking lifecycle transitions.
const (
	AuditActionAllocate   = "ALLOCATE"
	AuditActionReschedule = "RESCHEDULE"
	AuditActionCancel     = "CANCEL"
)

// BookingAudit preserves the before/after intervals of every booking
// transition. Bookings are never hard-deleted, and neither are these.
type BookingAudit struct {
	ID        string     `db:"id" json:"id"`
	BookingID string     `db:"booking_id" json:"booking_id"`
	Action    string     `db:"action" json:"action"`
	ActorID   *string    `db:"actor_id" json:"actor_id,omitempty"`
	TeamID    string     `db:"team_id" json:"team_id"`
	OldTeamID *string    `db:"old_team_id" json:"old_team_id,omitempty"`
	OldStart  *time.Time `db:"old_start" json:"old_start,omitempty"`
	OldEnd    *time.Time `db:"old_end" json:"old_end,omitempty"`
	NewStart  *time.Time `db:"new_start" json:"new_start,omitempty"`
	NewEnd    *time.Time `db:"new_end" json:"new_end,omitempty"`
	Note      string     `db:"note" json:"note"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
