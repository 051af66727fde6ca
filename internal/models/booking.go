package models

import (
	"sort"
	"time"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingTentative BookingStatus = "tentative"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// CanTransition reports whether the status may move to the target state.
// Cancelled is terminal; tentative may confirm or cancel; confirmed may cancel.
func (s BookingStatus) CanTransition(to BookingStatus) bool {
	switch s {
	case BookingTentative:
		return to == BookingConfirmed || to == BookingCancelled
	case BookingConfirmed:
		return to == BookingCancelled
	default:
		return false
	}
}

// Booking is a confirmed or tentative occupation of a team's time. Timestamps
// are absolute UTC; all overlap comparisons happen on this single timeline.
type Booking struct {
	ID             string        `db:"id" json:"id"`
	TeamID         string        `db:"team_id" json:"team_id"`
	TaskID         *string       `db:"task_id" json:"task_id,omitempty"`
	SiteID         *string       `db:"site_id" json:"site_id,omitempty"`
	StartUTC       time.Time     `db:"start_utc" json:"start_utc"`
	EndUTC         time.Time     `db:"end_utc" json:"end_utc"`
	AllocatedHours float64       `db:"allocated_hours" json:"allocated_hours"`
	Status         BookingStatus `db:"status" json:"status"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// Interval returns the booking's occupied interval.
func (b *Booking) Interval() Interval {
	return Interval{Start: b.StartUTC, End: b.EndUTC}
}

// BookingFilter describes query params for listing bookings.
type BookingFilter struct {
	TeamID    string
	TaskID    string
	Status    string
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Interval is a half-open [Start, End) span of absolute time.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps applies the half-open overlap rule: abutting intervals do not
// overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// MergeIntervals sorts and folds overlapping or touching intervals into a
// minimal disjoint set.
func MergeIntervals(intervals []Interval) []Interval {
	if len(intervals) <= 1 {
		return intervals
	}
	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a].Start.Before(sorted[b].Start) })

	merged := sorted[:1]
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}
