package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fieldserve/dispatch-api/internal/models"
	appErrors "github.com/fieldserve/dispatch-api/pkg/errors"
)

type calendarRepository interface {
	ListAttendances(ctx context.Context, calendarID string) ([]models.Attendance, error)
	FindUserCalendarID(ctx context.Context, userID string) (string, error)
	CalendarExists(ctx context.Context, calendarID string) (bool, error)
}

type calendarTeamReader interface {
	FindByID(ctx context.Context, id string) (*models.Team, error)
}

type calendarCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CalendarConfig tunes calendar resolution.
type CalendarConfig struct {
	// DefaultCalendarID backs teams whose own and lead calendars are absent.
	DefaultCalendarID string
	CacheTTL          time.Duration
}

// CalendarService resolves the working calendar a team schedules by. The
// precedence is team calendar, then the team lead's calendar, then the
// organisation default. A team whose resolution yields nothing usable is a
// configuration error, never an empty result.
type CalendarService struct {
	calendars calendarRepository
	teams     calendarTeamReader
	cache     calendarCache
	logger    *zap.Logger
	config    CalendarConfig
}

// NewCalendarService constructs a CalendarService.
func NewCalendarService(calendars calendarRepository, teams calendarTeamReader, cache calendarCache, logger *zap.Logger, config CalendarConfig) *CalendarService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 10 * time.Minute
	}
	return &CalendarService{calendars: calendars, teams: teams, cache: cache, logger: logger, config: config}
}

func calendarCacheKey(teamID string) string {
	return "calendar:team:" + teamID
}

// ResolveForTeam returns the weekly calendar the given team works by.
func (s *CalendarService) ResolveForTeam(ctx context.Context, team *models.Team) (*models.WeeklyCalendar, error) {
	if team == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "team not found")
	}

	if s.cache != nil {
		var cached models.WeeklyCalendar
		if err := s.cache.Get(ctx, calendarCacheKey(team.ID), &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("calendar cache read failed", zap.String("team_id", team.ID), zap.Error(err))
		}
	}

	calendarID, err := s.resolveCalendarID(ctx, team)
	if err != nil {
		return nil, err
	}

	calendar, err := s.loadWeekly(ctx, calendarID, team.ID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, calendarCacheKey(team.ID), calendar, s.config.CacheTTL); err != nil {
			s.logger.Warn("calendar cache write failed", zap.String("team_id", team.ID), zap.Error(err))
		}
	}
	return calendar, nil
}

// ResolveForTeamID looks the team up first. Convenience for callers holding
// only an id.
func (s *CalendarService) ResolveForTeamID(ctx context.Context, teamID string) (*models.WeeklyCalendar, error) {
	team, err := s.teams.FindByID(ctx, teamID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("team %s not found", teamID))
	}
	return s.ResolveForTeam(ctx, team)
}

// Invalidate drops cached calendars for every team. Called after calendar or
// attendance changes.
func (s *CalendarService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.DeleteByPattern(ctx, "calendar:team:*")
}

func (s *CalendarService) resolveCalendarID(ctx context.Context, team *models.Team) (string, error) {
	if team.CalendarID != nil && *team.CalendarID != "" {
		return *team.CalendarID, nil
	}

	if team.LeadID != nil && *team.LeadID != "" {
		leadCalendar, err := s.calendars.FindUserCalendarID(ctx, *team.LeadID)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve lead calendar")
		}
		if leadCalendar != "" {
			return leadCalendar, nil
		}
	}

	if s.config.DefaultCalendarID != "" {
		return s.config.DefaultCalendarID, nil
	}

	return "", appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("team %s has no calendar and no organisation default is configured", team.ID))
}

func (s *CalendarService) loadWeekly(ctx context.Context, calendarID, teamID string) (*models.WeeklyCalendar, error) {
	attendances, err := s.calendars.ListAttendances(ctx, calendarID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendances")
	}
	if len(attendances) == 0 {
		return nil, appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("calendar %s for team %s has no attendances", calendarID, teamID))
	}

	days := make(map[int][]models.Attendance, 7)
	for _, att := range attendances {
		if err := att.Validate(); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrConfiguration.Code, appErrors.ErrConfiguration.Status, fmt.Sprintf("calendar %s is misconfigured", calendarID))
		}
		days[att.Weekday] = append(days[att.Weekday], att)
	}

	return &models.WeeklyCalendar{CalendarID: calendarID, Days: days}, nil
}
