package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/fieldserve/dispatch-api/internal/dto"
	"github.com/fieldserve/dispatch-api/internal/models"
	appErrors "github.com/fieldserve/dispatch-api/pkg/errors"
)

type schedulerTaskTypeReader interface {
	FindByID(ctx context.Context, id string) (*models.TaskType, error)
}

type schedulerTeamReader interface {
	FindByID(ctx context.Context, id string) (*models.Team, error)
	ListActive(ctx context.Context) ([]models.Team, error)
	ListEligible(ctx context.Context, taskTypeID string) ([]models.EligibleTeam, error)
}

type calendarResolver interface {
	ResolveForTeam(ctx context.Context, team *models.Team) (*models.WeeklyCalendar, error)
}

type commitmentIndex interface {
	ConflictScope(ctx context.Context, team *models.Team) ([]string, error)
	BusyIntervals(ctx context.Context, exec sqlx.ExtContext, teamIDs []string, window models.SearchWindow, excludeBookingID string) ([]models.Interval, error)
}

type slotGenerator interface {
	Generate(in GenerateInput) ([]models.CandidateSlot, error)
}

type candidateRanker interface {
	Rank(in RankInput) []models.CandidateSlot
}

type siteReader interface {
	FindByID(ctx context.Context, id string) (*models.ServiceSite, error)
	VisitsForWindow(ctx context.Context, teamIDs []string, from, to time.Time) ([]models.TeamVisit, error)
}

type searchObserver interface {
	ObserveSlotSearch(duration time.Duration, attempts int, found bool)
}

// SchedulerConfig tunes search orchestration.
type SchedulerConfig struct {
	HorizonDays     int
	RetryAttempts   int
	RetryAdvance    time.Duration
	DefaultTimezone string
	DefaultLimit    int
	ZoneClustering  bool
}

// SchedulerService runs the full slot search: resolve the team set, generate
// candidates per team, rank, and when a window comes up empty advance it and
// try again.
type SchedulerService struct {
	taskTypes    schedulerTaskTypeReader
	teams        schedulerTeamReader
	calendars    calendarResolver
	availability commitmentIndex
	slots        slotGenerator
	ranker       candidateRanker
	sites        siteReader
	metrics      searchObserver
	clock        Clock
	validator    *validator.Validate
	logger       *zap.Logger
	config       SchedulerConfig
}

// NewSchedulerService wires the search pipeline.
func NewSchedulerService(
	taskTypes schedulerTaskTypeReader,
	teams schedulerTeamReader,
	calendars calendarResolver,
	availability commitmentIndex,
	slots slotGenerator,
	ranker candidateRanker,
	sites siteReader,
	metrics searchObserver,
	clock Clock,
	validate *validator.Validate,
	logger *zap.Logger,
	config SchedulerConfig,
) *SchedulerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock()
	}
	if config.HorizonDays <= 0 {
		config.HorizonDays = 30
	}
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = 84
	}
	if config.RetryAdvance <= 0 {
		config.RetryAdvance = 2 * time.Hour
	}
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = 10
	}
	return &SchedulerService{
		taskTypes:    taskTypes,
		teams:        teams,
		calendars:    calendars,
		availability: availability,
		slots:        slots,
		ranker:       ranker,
		sites:        sites,
		metrics:      metrics,
		clock:        clock,
		validator:    validate,
		logger:       logger,
		config:       config,
	}
}

// searchStartGrain keeps first candidates on friendly clock times instead of
// whatever second the request landed on.
const searchStartGrain = 10 * time.Minute

// FindCandidates runs a ranked slot search.
func (s *SchedulerService) FindCandidates(ctx context.Context, req dto.SlotSearchRequest) (*dto.SlotSearchResponse, error) {
	started := time.Now()

	policy, prefs, teams, err := s.prepare(ctx, &req)
	if err != nil {
		return nil, err
	}

	loc, err := s.resolveLocation(req.Timezone)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	base := req.WindowStart
	if base.Before(now) {
		base = now
	}
	base = roundUp(base, searchStartGrain)

	horizon := time.Duration(s.config.HorizonDays) * 24 * time.Hour

	var response *dto.SlotSearchResponse
	for attempt := 0; attempt <= s.config.RetryAttempts; attempt++ {
		windowStart := base.Add(time.Duration(attempt) * s.config.RetryAdvance)
		windowEnd := windowStart.Add(horizon)
		if req.WindowEnd != nil {
			if !windowStart.Before(*req.WindowEnd) {
				break
			}
			if windowEnd.After(*req.WindowEnd) {
				windowEnd = *req.WindowEnd
			}
		}
		window := models.SearchWindow{Start: windowStart, End: windowEnd}

		candidates, genErr := s.generateAll(ctx, teams, policy, window, loc, now, req)
		if genErr != nil {
			return nil, genErr
		}
		if len(candidates) == 0 {
			continue
		}

		ranked, rankErr := s.rank(ctx, candidates, prefs, teams, window, loc, req)
		if rankErr != nil {
			return nil, rankErr
		}

		response = &dto.SlotSearchResponse{
			Candidates:  ranked,
			WindowStart: window.Start,
			WindowEnd:   window.End,
			Attempts:    attempt,
		}
		break
	}

	if s.metrics != nil {
		s.metrics.ObserveSlotSearch(time.Since(started), s.attemptsOf(response), response != nil)
	}
	if response == nil {
		return nil, appErrors.Clone(appErrors.ErrNoAvailability, "no slot available within the search horizon")
	}
	return response, nil
}

func (s *SchedulerService) attemptsOf(resp *dto.SlotSearchResponse) int {
	if resp == nil {
		return s.config.RetryAttempts
	}
	return resp.Attempts
}

// prepare resolves the duration policy, ranking preferences and the team set
// the search runs over.
func (s *SchedulerService) prepare(ctx context.Context, req *dto.SlotSearchRequest) (models.DurationPolicy, models.RankingPrefs, []models.Team, error) {
	var policy models.DurationPolicy
	prefs := models.RankingPrefs{
		PreferredTeamIDs: map[string]struct{}{},
		CapableTeamIDs:   map[string]struct{}{},
		ZoneClustering:   s.config.ZoneClustering,
		Limit:            req.Limit,
	}
	if prefs.Limit <= 0 {
		prefs.Limit = s.config.DefaultLimit
	}

	var teams []models.Team

	if req.TaskTypeID != "" {
		taskType, err := s.taskTypes.FindByID(ctx, req.TaskTypeID)
		if err != nil {
			return policy, prefs, nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("task type %s not found", req.TaskTypeID))
		}
		policy.NeededHours = taskType.DefaultHours
		policy.BufferBefore = time.Duration(taskType.BufferBeforeMins) * time.Minute
		policy.BufferAfter = time.Duration(taskType.BufferAfterMins) * time.Minute

		eligible, err := s.teams.ListEligible(ctx, req.TaskTypeID)
		if err != nil {
			return policy, prefs, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load eligible teams")
		}
		for _, et := range eligible {
			if et.Preferred {
				prefs.PreferredTeamIDs[et.ID] = struct{}{}
			} else {
				prefs.CapableTeamIDs[et.ID] = struct{}{}
			}
			teams = append(teams, et.Team)
		}
	}

	if req.NeededHours > 0 {
		policy.NeededHours = req.NeededHours
	}
	if req.BufferBeforeMins != nil {
		policy.BufferBefore = time.Duration(*req.BufferBeforeMins) * time.Minute
	}
	if req.BufferAfterMins != nil {
		policy.BufferAfter = time.Duration(*req.BufferAfterMins) * time.Minute
	}
	if !policy.Valid() {
		return policy, prefs, nil, appErrors.Clone(appErrors.ErrInvalidDuration, "needed hours must be greater than zero and buffers non-negative")
	}

	if req.TeamID != "" {
		team, err := s.teams.FindByID(ctx, req.TeamID)
		if err != nil {
			return policy, prefs, nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("team %s not found", req.TeamID))
		}
		teams = []models.Team{*team}
	} else if len(teams) == 0 {
		all, err := s.teams.ListActive(ctx)
		if err != nil {
			return policy, prefs, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teams")
		}
		teams = all
	}

	if len(teams) == 0 {
		return policy, prefs, nil, appErrors.Clone(appErrors.ErrNoAvailability, "no team can serve this request")
	}
	return policy, prefs, teams, nil
}

func (s *SchedulerService) resolveLocation(tz string) (*time.Location, error) {
	if tz == "" {
		tz = s.config.DefaultTimezone
	}
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown timezone %q", tz))
	}
	return loc, nil
}

func (s *SchedulerService) generateAll(ctx context.Context, teams []models.Team, policy models.DurationPolicy, window models.SearchWindow, loc *time.Location, now time.Time, req dto.SlotSearchRequest) ([]models.CandidateSlot, error) {
	var all []models.CandidateSlot
	usable := 0
	for i := range teams {
		team := teams[i]

		calendar, err := s.calendars.ResolveForTeam(ctx, &team)
		if err != nil {
			// A misconfigured team drops out of the search rather than
			// sinking it, unless it was pinned explicitly.
			if appErrors.FromError(err).Code == appErrors.ErrConfiguration.Code && len(teams) > 1 {
				s.logger.Warn("skipping misconfigured team", zap.String("team_id", team.ID), zap.Error(err))
				continue
			}
			return nil, err
		}
		usable++

		scope, err := s.availability.ConflictScope(ctx, &team)
		if err != nil {
			return nil, err
		}
		busy, err := s.availability.BusyIntervals(ctx, nil, scope, window, "")
		if err != nil {
			return nil, err
		}

		candidates, err := s.slots.Generate(GenerateInput{
			Team:      team,
			Calendar:  calendar,
			Policy:    policy,
			Window:    window,
			Busy:      busy,
			Location:  loc,
			Now:       now,
			TimeOfDay: models.TimeOfDayFilter{EarliestHour: req.EarliestHour, LatestHour: req.LatestHour},
		})
		if err != nil {
			return nil, err
		}
		all = append(all, candidates...)
	}

	if usable == 0 {
		return nil, appErrors.Clone(appErrors.ErrConfiguration, "no team in the search has a usable calendar")
	}
	return all, nil
}

func (s *SchedulerService) rank(ctx context.Context, candidates []models.CandidateSlot, prefs models.RankingPrefs, teams []models.Team, window models.SearchWindow, loc *time.Location, req dto.SlotSearchRequest) ([]models.CandidateSlot, error) {
	in := RankInput{
		Candidates: candidates,
		Prefs:      prefs,
		Base:       window.Start,
		Location:   loc,
	}

	if prefs.ZoneClustering && req.SiteID != "" {
		site, err := s.sites.FindByID(ctx, req.SiteID)
		if err != nil {
			s.logger.Warn("site lookup failed, ranking without zone affinity", zap.String("site_id", req.SiteID), zap.Error(err))
		} else {
			in.Site = *site
			teamIDs := make([]string, 0, len(teams))
			for _, t := range teams {
				teamIDs = append(teamIDs, t.ID)
			}
			visits, err := s.sites.VisitsForWindow(ctx, teamIDs, window.Start, window.End)
			if err != nil {
				s.logger.Warn("visit lookup failed, ranking without zone affinity", zap.Error(err))
			} else {
				in.Visits = visits
			}
		}
	}

	return s.ranker.Rank(in), nil
}

// roundUp lifts t to the next multiple of grain, leaving exact multiples
// untouched.
func roundUp(t time.Time, grain time.Duration) time.Time {
	rounded := t.Truncate(grain)
	if rounded.Equal(t) {
		return t
	}
	return rounded.Add(grain)
}
