package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldserve/dispatch-api/internal/dto"
	"github.com/fieldserve/dispatch-api/internal/models"
	appErrors "github.com/fieldserve/dispatch-api/pkg/errors"
	"github.com/fieldserve/dispatch-api/pkg/jobs"
)

type bookingRepoStub struct {
	byID          map[string]*models.Booking
	created       *models.Booking
	updated       *models.Booking
	statusUpdates map[string]models.BookingStatus
	lockedScope   []string
}

func (s *bookingRepoStub) Overlapping(ctx context.Context, exec sqlx.ExtContext, teamIDs []string, from, to time.Time, excludeID string) ([]models.Booking, error) {
	return nil, nil
}

func (s *bookingRepoStub) LockTeams(ctx context.Context, tx *sqlx.Tx, teamIDs []string) error {
	s.lockedScope = teamIDs
	return nil
}

func (s *bookingRepoStub) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	if booking, ok := s.byID[id]; ok {
		copied := *booking
		return &copied, nil
	}
	return nil, appErrors.ErrNotFound
}

func (s *bookingRepoStub) Create(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error {
	s.created = booking
	return nil
}

func (s *bookingRepoStub) UpdateInterval(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error {
	s.updated = booking
	return nil
}

func (s *bookingRepoStub) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.BookingStatus) error {
	if s.statusUpdates == nil {
		s.statusUpdates = map[string]models.BookingStatus{}
	}
	s.statusUpdates[id] = status
	return nil
}

func (s *bookingRepoStub) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	return nil, 0, nil
}

type scopeStub struct {
	scope      []string
	busy       []models.Interval
	gotExclude string
	gotWindow  models.SearchWindow
}

func (s *scopeStub) ConflictScope(ctx context.Context, team *models.Team) ([]string, error) {
	if s.scope != nil {
		return s.scope, nil
	}
	return []string{team.ID}, nil
}

func (s *scopeStub) BusyIntervals(ctx context.Context, exec sqlx.ExtContext, teamIDs []string, window models.SearchWindow, excludeBookingID string) ([]models.Interval, error) {
	s.gotExclude = excludeBookingID
	s.gotWindow = window
	return s.busy, nil
}

type auditStub struct {
	jobs []jobs.Job
}

func (s *auditStub) Enqueue(job jobs.Job) error {
	s.jobs = append(s.jobs, job)
	return nil
}

func newBookingTestTx(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func activeTeam(id string) map[string]*models.Team {
	return map[string]*models.Team{id: {ID: id, Name: "Crew " + id, Active: true}}
}

func createReq(t *testing.T) dto.CreateBookingRequest {
	t.Helper()
	return dto.CreateBookingRequest{
		TeamID:         "team-1",
		Start:          ts(t, "2026-09-07T08:00:00Z"),
		End:            ts(t, "2026-09-07T10:30:00Z"),
		AllocatedHours: 2,
	}
}

func TestAllocateCreatesConfirmedBooking(t *testing.T) {
	db, mock := newBookingTestTx(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	repo := &bookingRepoStub{}
	audit := &auditStub{}
	svc := NewBookingService(repo, &teamFinderStub{teams: activeTeam("team-1")}, &scopeStub{}, db, audit, nil, nil, nil)

	booking, err := svc.Allocate(context.Background(), "user-1", createReq(t))
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, booking.Status)
	assert.Equal(t, "team-1", booking.TeamID)
	require.NotNil(t, repo.created)
	assert.Equal(t, []string{"team-1"}, repo.lockedScope)
	require.Len(t, audit.jobs, 1)
	assert.Equal(t, AuditJobType, audit.jobs[0].Type)
	payload, ok := audit.jobs[0].Payload.(models.BookingAudit)
	require.True(t, ok)
	assert.Equal(t, models.AuditActionAllocate, payload.Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocateTentativeHold(t *testing.T) {
	db, mock := newBookingTestTx(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	svc := NewBookingService(&bookingRepoStub{}, &teamFinderStub{teams: activeTeam("team-1")}, &scopeStub{}, db, nil, nil, nil, nil)

	req := createReq(t)
	req.Tentative = true
	booking, err := svc.Allocate(context.Background(), "user-1", req)
	require.NoError(t, err)
	assert.Equal(t, models.BookingTentative, booking.Status)
}

func TestAllocateConflictRollsBack(t *testing.T) {
	db, mock := newBookingTestTx(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	repo := &bookingRepoStub{}
	scope := &scopeStub{busy: []models.Interval{
		{Start: ts(t, "2026-09-07T09:00:00Z"), End: ts(t, "2026-09-07T11:00:00Z")},
	}}
	svc := NewBookingService(repo, &teamFinderStub{teams: activeTeam("team-1")}, scope, db, nil, nil, nil, nil)

	_, err := svc.Allocate(context.Background(), "user-1", createReq(t))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSlotConflict.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocateRejectsInvertedInterval(t *testing.T) {
	svc := NewBookingService(&bookingRepoStub{}, &teamFinderStub{teams: activeTeam("team-1")}, &scopeStub{}, nil, nil, nil, nil, nil)

	req := createReq(t)
	req.Start, req.End = req.End, req.Start
	_, err := svc.Allocate(context.Background(), "user-1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAllocateRejectsInactiveTeam(t *testing.T) {
	teams := &teamFinderStub{teams: map[string]*models.Team{"team-1": {ID: "team-1", Active: false}}}
	svc := NewBookingService(&bookingRepoStub{}, teams, &scopeStub{}, nil, nil, nil, nil, nil)

	_, err := svc.Allocate(context.Background(), "user-1", createReq(t))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestConfirmPromotesTentativeBooking(t *testing.T) {
	repo := &bookingRepoStub{byID: map[string]*models.Booking{
		"b-1": {ID: "b-1", TeamID: "team-1", Status: models.BookingTentative},
	}}
	svc := NewBookingService(repo, &teamFinderStub{}, &scopeStub{}, nil, nil, nil, nil, nil)

	booking, err := svc.Confirm(context.Background(), "b-1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, booking.Status)
	assert.Equal(t, models.BookingConfirmed, repo.statusUpdates["b-1"])
}

func TestConfirmAlreadyConfirmedIsNoOp(t *testing.T) {
	repo := &bookingRepoStub{byID: map[string]*models.Booking{
		"b-1": {ID: "b-1", TeamID: "team-1", Status: models.BookingConfirmed},
	}}
	svc := NewBookingService(repo, &teamFinderStub{}, &scopeStub{}, nil, nil, nil, nil, nil)

	booking, err := svc.Confirm(context.Background(), "b-1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, booking.Status)
	assert.Empty(t, repo.statusUpdates)
}

func TestConfirmCancelledBookingFails(t *testing.T) {
	repo := &bookingRepoStub{byID: map[string]*models.Booking{
		"b-1": {ID: "b-1", TeamID: "team-1", Status: models.BookingCancelled},
	}}
	svc := NewBookingService(repo, &teamFinderStub{}, &scopeStub{}, nil, nil, nil, nil, nil)

	_, err := svc.Confirm(context.Background(), "b-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrBookingState.Code, appErrors.FromError(err).Code)
}

func TestRescheduleExcludesOwnBooking(t *testing.T) {
	db, mock := newBookingTestTx(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	repo := &bookingRepoStub{byID: map[string]*models.Booking{
		"b-1": {
			ID:       "b-1",
			TeamID:   "team-1",
			StartUTC: ts(t, "2026-09-07T08:00:00Z"),
			EndUTC:   ts(t, "2026-09-07T10:00:00Z"),
			Status:   models.BookingConfirmed,
		},
	}}
	scope := &scopeStub{}
	svc := NewBookingService(repo, &teamFinderStub{teams: activeTeam("team-1")}, scope, db, nil, nil, nil, nil)

	result, err := svc.Reschedule(context.Background(), "user-1", "b-1", dto.RescheduleBookingRequest{
		Start: ts(t, "2026-09-08T08:00:00Z"),
		End:   ts(t, "2026-09-08T10:00:00Z"),
	})
	require.NoError(t, err)
	assert.Equal(t, "b-1", scope.gotExclude)
	assert.Equal(t, "team-1", result.OldTeamID)
	assert.Equal(t, ts(t, "2026-09-07T08:00:00Z"), result.OldStart)
	assert.Equal(t, ts(t, "2026-09-07T10:00:00Z"), result.OldEnd)
	require.NotNil(t, repo.updated)
	assert.Equal(t, ts(t, "2026-09-08T08:00:00Z"), repo.updated.StartUTC)
}

func TestRescheduleMovesToAnotherTeam(t *testing.T) {
	db, mock := newBookingTestTx(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	repo := &bookingRepoStub{byID: map[string]*models.Booking{
		"b-1": {ID: "b-1", TeamID: "team-1", StartUTC: ts(t, "2026-09-07T08:00:00Z"), EndUTC: ts(t, "2026-09-07T10:00:00Z"), Status: models.BookingConfirmed},
	}}
	teams := &teamFinderStub{teams: map[string]*models.Team{
		"team-2": {ID: "team-2", Active: true},
	}}
	svc := NewBookingService(repo, teams, &scopeStub{}, db, nil, nil, nil, nil)

	result, err := svc.Reschedule(context.Background(), "user-1", "b-1", dto.RescheduleBookingRequest{
		TeamID: "team-2",
		Start:  ts(t, "2026-09-08T08:00:00Z"),
		End:    ts(t, "2026-09-08T10:00:00Z"),
	})
	require.NoError(t, err)
	assert.Equal(t, "team-2", result.Booking.TeamID)
	assert.Equal(t, "team-1", result.OldTeamID)
}

func TestRescheduleCancelledBookingFails(t *testing.T) {
	repo := &bookingRepoStub{byID: map[string]*models.Booking{
		"b-1": {ID: "b-1", TeamID: "team-1", Status: models.BookingCancelled},
	}}
	svc := NewBookingService(repo, &teamFinderStub{}, &scopeStub{}, nil, nil, nil, nil, nil)

	_, err := svc.Reschedule(context.Background(), "user-1", "b-1", dto.RescheduleBookingRequest{
		Start: ts(t, "2026-09-08T08:00:00Z"),
		End:   ts(t, "2026-09-08T10:00:00Z"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrBookingState.Code, appErrors.FromError(err).Code)
}

func TestCancelReleasesBooking(t *testing.T) {
	repo := &bookingRepoStub{byID: map[string]*models.Booking{
		"b-1": {ID: "b-1", TeamID: "team-1", Status: models.BookingConfirmed},
	}}
	audit := &auditStub{}
	svc := NewBookingService(repo, &teamFinderStub{}, &scopeStub{}, nil, audit, nil, nil, nil)

	booking, err := svc.Cancel(context.Background(), "user-1", "b-1", dto.CancelBookingRequest{Note: "customer asked"})
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, booking.Status)
	assert.Equal(t, models.BookingCancelled, repo.statusUpdates["b-1"])
	require.Len(t, audit.jobs, 1)
	payload := audit.jobs[0].Payload.(models.BookingAudit)
	assert.Equal(t, models.AuditActionCancel, payload.Action)
	assert.Equal(t, "customer asked", payload.Note)
}

func TestCancelAlreadyCancelledIsIdempotent(t *testing.T) {
	repo := &bookingRepoStub{byID: map[string]*models.Booking{
		"b-1": {ID: "b-1", TeamID: "team-1", Status: models.BookingCancelled},
	}}
	audit := &auditStub{}
	svc := NewBookingService(repo, &teamFinderStub{}, &scopeStub{}, nil, audit, nil, nil, nil)

	booking, err := svc.Cancel(context.Background(), "user-1", "b-1", dto.CancelBookingRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, booking.Status)
	assert.Empty(t, repo.statusUpdates)
	assert.Empty(t, audit.jobs)
}
