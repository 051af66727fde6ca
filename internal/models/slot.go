package models

import "time"

// DurationPolicy defines how much team time a job consumes: the working
// portion plus buffers either side. Total span = before + needed + after.
type DurationPolicy struct {
	NeededHours  float64       `json:"needed_hours"`
	BufferBefore time.Duration `json:"buffer_before"`
	BufferAfter  time.Duration `json:"buffer_after"`
}

// Needed returns the working portion as a duration.
func (p DurationPolicy) Needed() time.Duration {
	return time.Duration(p.NeededHours * float64(time.Hour))
}

// Span returns the full occupied duration including buffers.
func (p DurationPolicy) Span() time.Duration {
	return p.BufferBefore + p.Needed() + p.BufferAfter
}

// Valid reports whether the policy can generate candidates at all.
func (p DurationPolicy) Valid() bool {
	return p.NeededHours > 0 && p.BufferBefore >= 0 && p.BufferAfter >= 0
}

// CandidateSlot is an ephemeral proposal produced by slot search. Only a
// chosen candidate ever becomes a booking; candidates are never persisted and
// may differ between searches as commitments change.
type CandidateSlot struct {
	TeamID    string    `json:"team_id"`
	TeamName  string    `json:"team_name,omitempty"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Score     float64   `json:"score"`
	Preferred bool      `json:"preferred"`
}

// SearchWindow bounds a slot search on the absolute timeline.
type SearchWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// TimeOfDayFilter optionally narrows candidates to a clock-time band, in the
// requester's timezone, expressed as fractional hours.
type TimeOfDayFilter struct {
	EarliestHour *float64 `json:"earliest_hour,omitempty"`
	LatestHour   *float64 `json:"latest_hour,omitempty"`
}

// RankingPrefs steers candidate scoring.
type RankingPrefs struct {
	PreferredTeamIDs map[string]struct{}
	CapableTeamIDs   map[string]struct{}
	ZoneClustering   bool
	Limit            int
}
