package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/fieldserve/dispatch-api/internal/dto"
	"github.com/fieldserve/dispatch-api/internal/models"
	appErrors "github.com/fieldserve/dispatch-api/pkg/errors"
	"github.com/fieldserve/dispatch-api/pkg/jobs"
)

type bookingRepository interface {
	Overlapping(ctx context.Context, exec sqlx.ExtContext, teamIDs []string, from, to time.Time, excludeID string) ([]models.Booking, error)
	LockTeams(ctx context.Context, tx *sqlx.Tx, teamIDs []string) error
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	Create(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error
	UpdateInterval(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.BookingStatus) error
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error)
}

type bookingTeamReader interface {
	FindByID(ctx context.Context, id string) (*models.Team, error)
}

type conflictScoper interface {
	ConflictScope(ctx context.Context, team *models.Team) ([]string, error)
	BusyIntervals(ctx context.Context, exec sqlx.ExtContext, teamIDs []string, window models.SearchWindow, excludeBookingID string) ([]models.Interval, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type auditEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type allocationObserver interface {
	RecordAllocation(action string)
	RecordAllocationConflict()
}

// BookingService turns chosen candidates into committed bookings. Every
// allocation re-checks availability under row locks on the conflict scope, so
// two dispatchers racing for the same slot cannot both win.
type BookingService struct {
	bookings     bookingRepository
	teams        bookingTeamReader
	availability conflictScoper
	tx           txProvider
	audit        auditEnqueuer
	metrics      allocationObserver
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewBookingService constructs a BookingService.
func NewBookingService(bookings bookingRepository, teams bookingTeamReader, availability conflictScoper, tx txProvider, audit auditEnqueuer, metrics allocationObserver, validate *validator.Validate, logger *zap.Logger) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		bookings:     bookings,
		teams:        teams,
		availability: availability,
		tx:           tx,
		audit:        audit,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
	}
}

// AuditJobType routes booking audit payloads on the background queue.
const AuditJobType = "booking_audit"

// Allocate books the requested interval, failing with a conflict when any
// team in the conflict scope is already committed inside it.
func (s *BookingService) Allocate(ctx context.Context, actorID string, req dto.CreateBookingRequest) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	if !req.Start.Before(req.End) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "booking end must be after start")
	}

	team, err := s.teams.FindByID(ctx, req.TeamID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("team %s not found", req.TeamID))
	}
	if !team.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("team %s is inactive", req.TeamID))
	}

	status := models.BookingConfirmed
	if req.Tentative {
		status = models.BookingTentative
	}
	booking := &models.Booking{
		ID:             uuid.NewString(),
		TeamID:         team.ID,
		TaskID:         req.TaskID,
		SiteID:         req.SiteID,
		StartUTC:       req.Start.UTC(),
		EndUTC:         req.End.UTC(),
		AllocatedHours: req.AllocatedHours,
		Status:         status,
	}

	err = s.withLockedScope(ctx, team, booking.Interval(), "", func(tx *sqlx.Tx) error {
		return s.bookings.Create(ctx, tx, booking)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordAllocation("allocate")
	}
	s.enqueueAudit(models.BookingAudit{
		BookingID: booking.ID,
		Action:    models.AuditActionAllocate,
		ActorID:   optional(actorID),
		TeamID:    booking.TeamID,
		NewStart:  &booking.StartUTC,
		NewEnd:    &booking.EndUTC,
		Note:      req.Note,
	})
	return booking, nil
}

// Confirm promotes a tentative booking.
func (s *BookingService) Confirm(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.findBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.Status == models.BookingConfirmed {
		return booking, nil
	}
	if !booking.Status.CanTransition(models.BookingConfirmed) {
		return nil, appErrors.Clone(appErrors.ErrBookingState, fmt.Sprintf("booking %s is %s and cannot be confirmed", id, booking.Status))
	}
	if err := s.bookings.UpdateStatus(ctx, nil, id, models.BookingConfirmed); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to confirm booking")
	}
	booking.Status = models.BookingConfirmed
	return booking, nil
}

// Reschedule moves a booking to a new interval, optionally on another team,
// under the same locking discipline as Allocate. The booking's own committed
// time never blocks its move.
func (s *BookingService) Reschedule(ctx context.Context, actorID, id string, req dto.RescheduleBookingRequest) (*dto.RescheduleResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}
	if !req.Start.Before(req.End) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "booking end must be after start")
	}

	booking, err := s.findBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.Status == models.BookingCancelled {
		return nil, appErrors.Clone(appErrors.ErrBookingState, fmt.Sprintf("booking %s is cancelled", id))
	}

	targetTeamID := booking.TeamID
	if req.TeamID != "" {
		targetTeamID = req.TeamID
	}
	team, err := s.teams.FindByID(ctx, targetTeamID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("team %s not found", targetTeamID))
	}

	oldTeamID := booking.TeamID
	oldStart := booking.StartUTC
	oldEnd := booking.EndUTC

	booking.TeamID = team.ID
	booking.StartUTC = req.Start.UTC()
	booking.EndUTC = req.End.UTC()

	err = s.withLockedScope(ctx, team, booking.Interval(), booking.ID, func(tx *sqlx.Tx) error {
		return s.bookings.UpdateInterval(ctx, tx, booking)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordAllocation("reschedule")
	}
	s.enqueueAudit(models.BookingAudit{
		BookingID: booking.ID,
		Action:    models.AuditActionReschedule,
		ActorID:   optional(actorID),
		TeamID:    booking.TeamID,
		OldTeamID: &oldTeamID,
		OldStart:  &oldStart,
		OldEnd:    &oldEnd,
		NewStart:  &booking.StartUTC,
		NewEnd:    &booking.EndUTC,
		Note:      req.Note,
	})
	return &dto.RescheduleResult{Booking: booking, OldTeamID: oldTeamID, OldStart: oldStart, OldEnd: oldEnd}, nil
}

// Cancel releases a booking's time. Cancelling an already cancelled booking
// is a no-op, not an error.
func (s *BookingService) Cancel(ctx context.Context, actorID, id string, req dto.CancelBookingRequest) (*models.Booking, error) {
	booking, err := s.findBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.Status == models.BookingCancelled {
		return booking, nil
	}

	if err := s.bookings.UpdateStatus(ctx, nil, id, models.BookingCancelled); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel booking")
	}
	booking.Status = models.BookingCancelled

	if s.metrics != nil {
		s.metrics.RecordAllocation("cancel")
	}
	s.enqueueAudit(models.BookingAudit{
		BookingID: booking.ID,
		Action:    models.AuditActionCancel,
		ActorID:   optional(actorID),
		TeamID:    booking.TeamID,
		OldStart:  &booking.StartUTC,
		OldEnd:    &booking.EndUTC,
		Note:      req.Note,
	})
	return booking, nil
}

// Get loads one booking.
func (s *BookingService) Get(ctx context.Context, id string) (*models.Booking, error) {
	return s.findBooking(ctx, id)
}

// List returns a booking page.
func (s *BookingService) List(ctx context.Context, filter models.BookingFilter) (*dto.BookingListResponse, error) {
	bookings, total, err := s.bookings.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return &dto.BookingListResponse{
		Bookings:   bookings,
		Pagination: models.Pagination{Page: page, PageSize: size, TotalCount: total},
	}, nil
}

// withLockedScope runs mutate inside a transaction holding row locks on the
// booking's conflict scope, after proving the interval is still free.
func (s *BookingService) withLockedScope(ctx context.Context, team *models.Team, interval models.Interval, excludeBookingID string, mutate func(tx *sqlx.Tx) error) error {
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	scope, err := s.availability.ConflictScope(ctx, team)
	if err != nil {
		return err
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.bookings.LockTeams(ctx, tx, scope); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock conflict scope")
		return err
	}

	busy, busyErr := s.availability.BusyIntervals(ctx, tx, scope, models.SearchWindow{Start: interval.Start, End: interval.End}, excludeBookingID)
	if busyErr != nil {
		err = busyErr
		return err
	}
	for _, b := range busy {
		if interval.Overlaps(b) {
			if s.metrics != nil {
				s.metrics.RecordAllocationConflict()
			}
			err = appErrors.Clone(appErrors.ErrSlotConflict, "slot was taken while booking")
			return err
		}
	}

	if err = mutate(tx); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist booking")
		return err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit booking")
		return err
	}
	return nil
}

func (s *BookingService) findBooking(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("booking %s not found", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	return booking, nil
}

// enqueueAudit records the transition asynchronously; the booking mutation
// itself never waits on, or fails with, the audit trail.
func (s *BookingService) enqueueAudit(audit models.BookingAudit) {
	if s.audit == nil {
		return
	}
	audit.ID = uuid.NewString()
	audit.CreatedAt = time.Now().UTC()
	job := jobs.Job{ID: audit.ID, Type: AuditJobType, Payload: audit}
	if err := s.audit.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue booking audit", zap.String("booking_id", audit.BookingID), zap.String("action", audit.Action), zap.Error(err))
	}
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
