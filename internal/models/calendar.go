package models

import (
	"fmt"
	"math"
	"time"
)

// Attendance is one recurring weekly working interval on a calendar.
// Weekday follows time.Weekday semantics shifted so 0 = Monday .. 6 = Sunday,
// matching how field calendars are administered. Clock times are fractional
// hours: 8.5 means 08:30.
type Attendance struct {
	ID            string  `db:"id" json:"id"`
	CalendarID    string  `db:"calendar_id" json:"calendar_id"`
	Weekday       int     `db:"weekday" json:"weekday"`
	StartHour     float64 `db:"start_hour" json:"start_hour"`
	EndHour       float64 `db:"end_hour" json:"end_hour"`
	CapacityHours float64 `db:"capacity_hours" json:"capacity_hours"`
}

// Validate rejects malformed attendances before they can poison slot search.
func (a Attendance) Validate() error {
	if a.Weekday < 0 || a.Weekday > 6 {
		return fmt.Errorf("attendance %s: weekday %d out of range", a.ID, a.Weekday)
	}
	if a.EndHour <= a.StartHour {
		return fmt.Errorf("attendance %s: end %.2f must be after start %.2f", a.ID, a.EndHour, a.StartHour)
	}
	if a.CapacityHours <= 0 {
		return fmt.Errorf("attendance %s: capacity must be > 0", a.ID)
	}
	return nil
}

// WeeklyCalendar is a team's resolved working pattern: per weekday, the
// ordered disjoint attendance intervals.
type WeeklyCalendar struct {
	CalendarID string              `json:"calendar_id"`
	Days       map[int][]Attendance `json:"days"`
}

// AttendancesFor returns the ordered working intervals for a weekday, empty
// when the day is off.
func (w *WeeklyCalendar) AttendancesFor(weekday int) []Attendance {
	if w == nil || w.Days == nil {
		return nil
	}
	return w.Days[weekday]
}

// HoursToClock converts fractional hours to an hour/minute pair, rounding at
// minute granularity only. 8.5 becomes (8, 30); 17.999 carries to (18, 0).
func HoursToClock(hours float64) (int, int) {
	h := int(hours)
	m := int(math.Round((hours - float64(h)) * 60))
	if m == 60 {
		h++
		m = 0
	}
	return h, m
}

// ClockOnDay anchors a fractional clock time onto a calendar day in the given
// location.
func ClockOnDay(day time.Time, hours float64, loc *time.Location) time.Time {
	h, m := HoursToClock(hours)
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, loc)
}

// WeekdayIndex maps a time.Weekday onto the Monday-based index attendances use.
func WeekdayIndex(d time.Weekday) int {
	// time.Sunday is 0; shift so Monday is 0 and Sunday is 6.
	return (int(d) + 6) % 7
}
