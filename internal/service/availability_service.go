package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/fieldserve/dispatch-api/internal/models"
	appErrors "github.com/fieldserve/dispatch-api/pkg/errors"
)

type bookingOverlapReader interface {
	Overlapping(ctx context.Context, exec sqlx.ExtContext, teamIDs []string, from, to time.Time, excludeID string) ([]models.Booking, error)
}

type occupancyOverlapReader interface {
	Overlapping(ctx context.Context, exec sqlx.ExtContext, teamIDs []string, from, to time.Time) ([]models.TaskOccupancy, error)
}

type leadTeamReader interface {
	ListByLead(ctx context.Context, leadID string) ([]models.Team, error)
}

// AvailabilityConfig tunes conflict scoping.
type AvailabilityConfig struct {
	// LeadSharing widens a team's conflict set to every team sharing its lead.
	LeadSharing bool
}

// AvailabilityService is the commitment index: it answers what time is
// already spoken for. Bookings and external task occupancy fold into one
// busy-interval timeline per conflict scope.
type AvailabilityService struct {
	bookings    bookingOverlapReader
	occupancies occupancyOverlapReader
	teams       leadTeamReader
	logger      *zap.Logger
	config      AvailabilityConfig
}

// NewAvailabilityService constructs an AvailabilityService.
func NewAvailabilityService(bookings bookingOverlapReader, occupancies occupancyOverlapReader, teams leadTeamReader, logger *zap.Logger, config AvailabilityConfig) *AvailabilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{bookings: bookings, occupancies: occupancies, teams: teams, logger: logger, config: config}
}

// ConflictScope returns the team ids whose commitments can block the given
// team: the team itself, widened to its lead group when lead sharing is on. A
// lead's technicians move between that lead's teams, so one lead group shares
// one timeline.
func (s *AvailabilityService) ConflictScope(ctx context.Context, team *models.Team) ([]string, error) {
	if team == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "team not found")
	}
	scope := []string{team.ID}
	if !s.config.LeadSharing || team.LeadID == nil || *team.LeadID == "" {
		return scope, nil
	}

	shared, err := s.teams.ListByLead(ctx, *team.LeadID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to expand lead group")
	}
	for _, t := range shared {
		if t.ID != team.ID && t.Active {
			scope = append(scope, t.ID)
		}
	}
	return scope, nil
}

// BusyIntervals returns, merged and sorted, every committed interval for the
// given teams intersecting [window.Start, window.End). excludeBookingID keeps
// one booking out of the result so reschedules do not collide with
// themselves. Pass a transaction as exec to read under an allocation lock.
func (s *AvailabilityService) BusyIntervals(ctx context.Context, exec sqlx.ExtContext, teamIDs []string, window models.SearchWindow, excludeBookingID string) ([]models.Interval, error) {
	if len(teamIDs) == 0 {
		return nil, nil
	}

	bookings, err := s.bookings.Overlapping(ctx, exec, teamIDs, window.Start, window.End, excludeBookingID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booked intervals")
	}

	occupancies, err := s.occupancies.Overlapping(ctx, exec, teamIDs, window.Start, window.End)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load task occupancy")
	}

	intervals := make([]models.Interval, 0, len(bookings)+len(occupancies))
	for _, b := range bookings {
		intervals = append(intervals, b.Interval())
	}
	for _, o := range occupancies {
		intervals = append(intervals, models.Interval{Start: o.StartUTC, End: o.EndUTC})
	}
	return models.MergeIntervals(intervals), nil
}

// IsFree reports whether the candidate interval touches none of the busy
// intervals, under half-open overlap.
func (s *AvailabilityService) IsFree(candidate models.Interval, busy []models.Interval) bool {
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return false
		}
	}
	return true
}
