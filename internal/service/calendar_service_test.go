package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldserve/dispatch-api/internal/models"
	appErrors "github.com/fieldserve/dispatch-api/pkg/errors"
)

type calendarRepoStub struct {
	attendances   map[string][]models.Attendance
	userCalendars map[string]string
	listCalls     []string
}

func (s *calendarRepoStub) ListAttendances(ctx context.Context, calendarID string) ([]models.Attendance, error) {
	s.listCalls = append(s.listCalls, calendarID)
	return s.attendances[calendarID], nil
}

func (s *calendarRepoStub) FindUserCalendarID(ctx context.Context, userID string) (string, error) {
	return s.userCalendars[userID], nil
}

func (s *calendarRepoStub) CalendarExists(ctx context.Context, calendarID string) (bool, error) {
	_, ok := s.attendances[calendarID]
	return ok, nil
}

type teamFinderStub struct {
	teams map[string]*models.Team
}

func (s *teamFinderStub) FindByID(ctx context.Context, id string) (*models.Team, error) {
	if team, ok := s.teams[id]; ok {
		return team, nil
	}
	return nil, appErrors.ErrNotFound
}

type cacheStub struct {
	values map[string]*models.WeeklyCalendar
	sets   int
}

func (s *cacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	if s.values == nil {
		return appErrors.ErrCacheMiss
	}
	cached, ok := s.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	*(dest.(*models.WeeklyCalendar)) = *cached
	return nil
}

func (s *cacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	s.sets++
	return nil
}

func (s *cacheStub) DeleteByPattern(ctx context.Context, pattern string) error {
	s.values = nil
	return nil
}

func mondayAttendances(calendarID string) []models.Attendance {
	return []models.Attendance{
		{ID: "a1", CalendarID: calendarID, Weekday: 0, StartHour: 8, EndHour: 12, CapacityHours: 4},
	}
}

func strPtr(v string) *string { return &v }

func TestResolveUsesTeamCalendar(t *testing.T) {
	repo := &calendarRepoStub{attendances: map[string][]models.Attendance{"cal-team": mondayAttendances("cal-team")}}
	svc := NewCalendarService(repo, &teamFinderStub{}, nil, nil, CalendarConfig{DefaultCalendarID: "cal-default"})

	calendar, err := svc.ResolveForTeam(context.Background(), &models.Team{ID: "team-1", CalendarID: strPtr("cal-team")})
	require.NoError(t, err)
	assert.Equal(t, "cal-team", calendar.CalendarID)
	assert.Len(t, calendar.AttendancesFor(0), 1)
}

func TestResolveFallsBackToLeadCalendar(t *testing.T) {
	repo := &calendarRepoStub{
		attendances:   map[string][]models.Attendance{"cal-lead": mondayAttendances("cal-lead")},
		userCalendars: map[string]string{"lead-1": "cal-lead"},
	}
	svc := NewCalendarService(repo, &teamFinderStub{}, nil, nil, CalendarConfig{DefaultCalendarID: "cal-default"})

	calendar, err := svc.ResolveForTeam(context.Background(), &models.Team{ID: "team-1", LeadID: strPtr("lead-1")})
	require.NoError(t, err)
	assert.Equal(t, "cal-lead", calendar.CalendarID)
}

func TestResolveFallsBackToDefault(t *testing.T) {
	repo := &calendarRepoStub{attendances: map[string][]models.Attendance{"cal-default": mondayAttendances("cal-default")}}
	svc := NewCalendarService(repo, &teamFinderStub{}, nil, nil, CalendarConfig{DefaultCalendarID: "cal-default"})

	calendar, err := svc.ResolveForTeam(context.Background(), &models.Team{ID: "team-1"})
	require.NoError(t, err)
	assert.Equal(t, "cal-default", calendar.CalendarID)
}

func TestResolveNoCalendarAnywhere(t *testing.T) {
	svc := NewCalendarService(&calendarRepoStub{}, &teamFinderStub{}, nil, nil, CalendarConfig{})

	_, err := svc.ResolveForTeam(context.Background(), &models.Team{ID: "team-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConfiguration.Code, appErrors.FromError(err).Code)
}

func TestResolveEmptyCalendarIsConfigurationError(t *testing.T) {
	repo := &calendarRepoStub{attendances: map[string][]models.Attendance{}}
	svc := NewCalendarService(repo, &teamFinderStub{}, nil, nil, CalendarConfig{})

	_, err := svc.ResolveForTeam(context.Background(), &models.Team{ID: "team-1", CalendarID: strPtr("cal-empty")})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConfiguration.Code, appErrors.FromError(err).Code)
}

func TestResolveRejectsMalformedAttendance(t *testing.T) {
	repo := &calendarRepoStub{attendances: map[string][]models.Attendance{
		"cal-bad": {{ID: "a1", CalendarID: "cal-bad", Weekday: 0, StartHour: 12, EndHour: 8, CapacityHours: 4}},
	}}
	svc := NewCalendarService(repo, &teamFinderStub{}, nil, nil, CalendarConfig{})

	_, err := svc.ResolveForTeam(context.Background(), &models.Team{ID: "team-1", CalendarID: strPtr("cal-bad")})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConfiguration.Code, appErrors.FromError(err).Code)
}

func TestResolveServesFromCache(t *testing.T) {
	repo := &calendarRepoStub{}
	cache := &cacheStub{values: map[string]*models.WeeklyCalendar{
		"calendar:team:team-1": {CalendarID: "cal-cached", Days: map[int][]models.Attendance{0: mondayAttendances("cal-cached")}},
	}}
	svc := NewCalendarService(repo, &teamFinderStub{}, cache, nil, CalendarConfig{})

	calendar, err := svc.ResolveForTeam(context.Background(), &models.Team{ID: "team-1", CalendarID: strPtr("cal-team")})
	require.NoError(t, err)
	assert.Equal(t, "cal-cached", calendar.CalendarID)
	assert.Empty(t, repo.listCalls)
}

func TestResolveWritesThroughCache(t *testing.T) {
	repo := &calendarRepoStub{attendances: map[string][]models.Attendance{"cal-team": mondayAttendances("cal-team")}}
	cache := &cacheStub{}
	svc := NewCalendarService(repo, &teamFinderStub{}, cache, nil, CalendarConfig{})

	_, err := svc.ResolveForTeam(context.Background(), &models.Team{ID: "team-1", CalendarID: strPtr("cal-team")})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)
}
