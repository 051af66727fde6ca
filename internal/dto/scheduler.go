package dto

import (
	"time"

	"github.com/fieldserve/dispatch-api/internal/models"
)

// SlotSearchRequest asks for ranked appointment candidates.
type SlotSearchRequest struct {
	// TaskTypeID supplies duration/buffer defaults and the eligible team set.
	TaskTypeID string `json:"task_type_id"`
	// TeamID pins the search to a single team when set.
	TeamID string `json:"team_id"`

	// NeededHours overrides the task type default when > 0.
	NeededHours      float64 `json:"needed_hours"`
	BufferBeforeMins *int    `json:"buffer_before_mins,omitempty"`
	BufferAfterMins  *int    `json:"buffer_after_mins,omitempty"`

	WindowStart time.Time  `json:"window_start"`
	WindowEnd   *time.Time `json:"window_end,omitempty"`

	// Timezone is the requester's IANA zone, authoritative for "already in
	// the past" checks on today's candidates.
	Timezone string `json:"timezone"`

	EarliestHour *float64 `json:"earliest_hour,omitempty"`
	LatestHour   *float64 `json:"latest_hour,omitempty"`

	// SiteID enables zone clustering against the job's location.
	SiteID string `json:"site_id"`

	Limit int `json:"limit"`
}

// SlotSearchResponse carries the ranked candidates plus the window the search
// actually settled on, so callers can continue from there.
type SlotSearchResponse struct {
	Candidates  []models.CandidateSlot `json:"candidates"`
	WindowStart time.Time              `json:"window_start"`
	WindowEnd   time.Time              `json:"window_end"`
	Attempts    int                    `json:"attempts"`
}

// DispatchSheetRequest selects a team's bookings for export.
type DispatchSheetRequest struct {
	TeamID string
	From   time.Time
	To     time.Time
	Format string
}
