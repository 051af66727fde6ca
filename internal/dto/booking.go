package dto

import (
	"time"

	"github.com/fieldserve/dispatch-api/internal/models"
)

// CreateBookingRequest books a chosen candidate slot. Start and End span the
// full occupied interval including buffers.
type CreateBookingRequest struct {
	TeamID         string     `json:"team_id" validate:"required"`
	TaskID         *string    `json:"task_id,omitempty"`
	SiteID         *string    `json:"site_id,omitempty"`
	Start          time.Time  `json:"start" validate:"required"`
	End            time.Time  `json:"end" validate:"required"`
	AllocatedHours float64    `json:"allocated_hours" validate:"gt=0"`
	// Tentative creates a hold that must be confirmed later.
	Tentative bool   `json:"tentative"`
	Note      string `json:"note"`
}

// RescheduleBookingRequest moves a booking to a new interval, optionally on a
// different team.
type RescheduleBookingRequest struct {
	TeamID string    `json:"team_id,omitempty"`
	Start  time.Time `json:"start" validate:"required"`
	End    time.Time `json:"end" validate:"required"`
	Note   string    `json:"note"`
}

// CancelBookingRequest releases a booking's time.
type CancelBookingRequest struct {
	Note string `json:"note"`
}

// RescheduleResult pairs the moved booking with where it used to sit.
type RescheduleResult struct {
	Booking   *models.Booking `json:"booking"`
	OldTeamID string          `json:"old_team_id"`
	OldStart  time.Time       `json:"old_start"`
	OldEnd    time.Time       `json:"old_end"`
}

// BookingListResponse wraps a booking page.
type BookingListResponse struct {
	Bookings   []models.Booking  `json:"bookings"`
	Pagination models.Pagination `json:"pagination"`
}
