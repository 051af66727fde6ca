package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fieldserve/dispatch-api/internal/models"
	appErrors "github.com/fieldserve/dispatch-api/pkg/errors"
)

type teamRepository interface {
	List(ctx context.Context, filter models.TeamFilter) ([]models.Team, int, error)
	FindByID(ctx context.Context, id string) (*models.Team, error)
}

// TeamService exposes team lookups plus each team's resolved working
// calendar.
type TeamService struct {
	teams     teamRepository
	calendars calendarResolver
	logger    *zap.Logger
}

// NewTeamService constructs a TeamService.
func NewTeamService(teams teamRepository, calendars calendarResolver, logger *zap.Logger) *TeamService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeamService{teams: teams, calendars: calendars, logger: logger}
}

// List returns teams matching the filter with pagination metadata.
func (s *TeamService) List(ctx context.Context, filter models.TeamFilter) ([]models.Team, models.Pagination, error) {
	teams, total, err := s.teams.List(ctx, filter)
	if err != nil {
		return nil, models.Pagination{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teams")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return teams, models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get loads one team.
func (s *TeamService) Get(ctx context.Context, id string) (*models.Team, error) {
	team, err := s.teams.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("team %s not found", id))
	}
	return team, nil
}

// Calendar returns the weekly working pattern the team schedules by, after
// resolution through team, lead and organisation defaults.
func (s *TeamService) Calendar(ctx context.Context, id string) (*models.WeeklyCalendar, error) {
	team, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.calendars.ResolveForTeam(ctx, team)
}
