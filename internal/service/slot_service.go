package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/fieldserve/dispatch-api/internal/models"
	appErrors "github.com/fieldserve/dispatch-api/pkg/errors"
)

// SlotConfig tunes candidate generation.
type SlotConfig struct {
	// Step is the cursor granularity when scanning an attendance interval.
	Step time.Duration
	// LeadIn delays the first candidate after an attendance opens, giving
	// crews time to load up before the first appointment.
	LeadIn time.Duration
}

// SlotService generates candidate slots for one team by walking its weekly
// calendar across the search window and dropping anything that collides with
// committed time. Candidates are proposals, not reservations.
type SlotService struct {
	logger *zap.Logger
	config SlotConfig
}

// NewSlotService constructs a SlotService.
func NewSlotService(logger *zap.Logger, config SlotConfig) *SlotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Step <= 0 {
		config.Step = 30 * time.Minute
	}
	return &SlotService{logger: logger, config: config}
}

// GenerateInput bundles everything one team's generation run needs.
type GenerateInput struct {
	Team     models.Team
	Calendar *models.WeeklyCalendar
	Policy   models.DurationPolicy
	Window   models.SearchWindow
	// Busy holds the team's merged committed intervals inside the window.
	Busy []models.Interval
	// Location anchors attendance clock times and the time-of-day filter.
	Location *time.Location
	// Now filters out candidates that already started.
	Now       time.Time
	TimeOfDay models.TimeOfDayFilter
}

// Generate walks the calendar day by day and returns, in chronological order,
// every conflict-free candidate. Returned candidates for one team never
// overlap each other: after a candidate is emitted the cursor jumps past it.
func (s *SlotService) Generate(in GenerateInput) ([]models.CandidateSlot, error) {
	if !in.Policy.Valid() {
		return nil, appErrors.Clone(appErrors.ErrInvalidDuration, "duration policy must have positive needed hours and non-negative buffers")
	}
	if in.Calendar == nil {
		return nil, appErrors.Clone(appErrors.ErrConfiguration, "no calendar to generate from")
	}
	if in.Location == nil {
		in.Location = time.UTC
	}

	span := in.Policy.Span()
	needed := in.Policy.Needed()

	var candidates []models.CandidateSlot
	// floor is the end of the last emitted candidate. Buffers may overhang
	// an attendance, so the next attendance or day must not restart before
	// it.
	var floor time.Time

	day := time.Date(in.Window.Start.In(in.Location).Year(), in.Window.Start.In(in.Location).Month(), in.Window.Start.In(in.Location).Day(), 0, 0, 0, 0, in.Location)
	for !day.After(in.Window.End.In(in.Location)) {
		attendances := in.Calendar.AttendancesFor(models.WeekdayIndex(day.Weekday()))
		for _, att := range attendances {
			openAt := models.ClockOnDay(day, att.StartHour, in.Location).Add(s.config.LeadIn)
			closeAt := models.ClockOnDay(day, att.EndHour, in.Location)

			cursor := openAt
			if cursor.Before(in.Window.Start) {
				cursor = alignToStep(in.Window.Start, openAt, s.config.Step)
			}
			if cursor.Before(floor) {
				cursor = alignToStep(floor, openAt, s.config.Step)
			}

			for {
				coreStart := cursor.Add(in.Policy.BufferBefore)
				coreEnd := coreStart.Add(needed)
				// Buffers may overhang the attendance; the working portion
				// must not.
				if coreEnd.After(closeAt) {
					break
				}
				candidate := models.Interval{Start: cursor, End: cursor.Add(span)}
				if candidate.End.After(in.Window.End) {
					break
				}

				if !cursor.Before(in.Now) && s.passesTimeOfDay(coreStart, coreEnd, in.Location, in.TimeOfDay) && isFree(candidate, in.Busy) {
					candidates = append(candidates, models.CandidateSlot{
						TeamID:   in.Team.ID,
						TeamName: in.Team.Name,
						Start:    candidate.Start,
						End:      candidate.End,
					})
					cursor = candidate.End
					floor = candidate.End
					continue
				}
				cursor = cursor.Add(s.config.Step)
			}
		}
		day = day.AddDate(0, 0, 1)
	}

	return candidates, nil
}

// alignToStep lifts t onto the step grid anchored at origin, rounding up.
func alignToStep(t, origin time.Time, step time.Duration) time.Time {
	if !t.After(origin) {
		return origin
	}
	elapsed := t.Sub(origin)
	steps := elapsed / step
	if elapsed%step != 0 {
		steps++
	}
	return origin.Add(steps * step)
}

func (s *SlotService) passesTimeOfDay(coreStart, coreEnd time.Time, loc *time.Location, filter models.TimeOfDayFilter) bool {
	if filter.EarliestHour != nil {
		if fractionalHour(coreStart.In(loc)) < *filter.EarliestHour {
			return false
		}
	}
	if filter.LatestHour != nil {
		if fractionalHour(coreEnd.In(loc)) > *filter.LatestHour {
			return false
		}
	}
	return true
}

func fractionalHour(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60
}

func isFree(candidate models.Interval, busy []models.Interval) bool {
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return false
		}
	}
	return true
}
