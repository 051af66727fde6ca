package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/fieldserve/dispatch-api/internal/models"
)

// BookingRepository provides persistence for bookings. Overlap queries rely
// on the (team_id, start_utc, end_utc) index.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new booking repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = "id, team_id, task_id, site_id, start_utc, end_utc, allocated_hours, status, created_at, updated_at"

func (r *BookingRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Overlapping returns non-cancelled bookings for any team in teamIDs whose
// interval intersects [from, to) under half-open semantics. excludeID drops
// one booking, used so a rescheduled booking cannot block itself. Pass a
// transaction as exec to read under an allocation lock.
func (r *BookingRepository) Overlapping(ctx context.Context, exec sqlx.ExtContext, teamIDs []string, from, to time.Time, excludeID string) ([]models.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE team_id = ANY($1) AND status <> 'cancelled' AND start_utc < $2 AND end_utc > $3`, bookingColumns)
	args := []interface{}{pq.Array(teamIDs), to, from}
	if excludeID != "" {
		query += " AND id <> $4"
		args = append(args, excludeID)
	}
	query += " ORDER BY start_utc ASC"

	var bookings []models.Booking
	if err := sqlx.SelectContext(ctx, r.exec(exec), &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("overlapping bookings: %w", err)
	}
	return bookings, nil
}

// LockTeams takes row locks on the given teams for the duration of the
// transaction, serialising allocation per team (and per lead group when the
// caller expands the set). Ordered to keep lock acquisition deterministic.
func (r *BookingRepository) LockTeams(ctx context.Context, tx *sqlx.Tx, teamIDs []string) error {
	if tx == nil {
		return fmt.Errorf("nil transaction provided")
	}
	var locked []string
	if err := tx.SelectContext(ctx, &locked, `SELECT id FROM teams WHERE id = ANY($1) ORDER BY id FOR UPDATE`, pq.Array(teamIDs)); err != nil {
		return fmt.Errorf("lock teams: %w", err)
	}
	if len(locked) != len(teamIDs) {
		return fmt.Errorf("lock teams: expected %d rows, locked %d", len(teamIDs), len(locked))
	}
	return nil
}

// FindByID loads a booking by id.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	query := fmt.Sprintf("SELECT %s FROM bookings WHERE id = $1", bookingColumns)
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// Create stores a new booking record.
func (r *BookingRepository) Create(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now

	const query = `INSERT INTO bookings (id, team_id, task_id, site_id, start_utc, end_utc, allocated_hours, status, created_at, updated_at) VALUES (:id, :team_id, :task_id, :site_id, :start_utc, :end_utc, :allocated_hours, :status, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, booking); err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

// UpdateInterval moves a booking to a new team and window.
func (r *BookingRepository) UpdateInterval(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error {
	booking.UpdatedAt = time.Now().UTC()
	const query = `UPDATE bookings SET team_id = :team_id, start_utc = :start_utc, end_utc = :end_utc, allocated_hours = :allocated_hours, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, booking); err != nil {
		return fmt.Errorf("update booking interval: %w", err)
	}
	return nil
}

// UpdateStatus transitions a booking's lifecycle state.
func (r *BookingRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.BookingStatus) error {
	const query = `UPDATE bookings SET status = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.exec(exec).ExecContext(ctx, query, status, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	return nil
}

// List returns bookings with optional filtering and pagination.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	base := "FROM bookings WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.TeamID != "" {
		conditions = append(conditions, fmt.Sprintf("team_id = $%d", len(args)+1))
		args = append(args, filter.TeamID)
	}
	if filter.TaskID != "" {
		conditions = append(conditions, fmt.Sprintf("task_id = $%d", len(args)+1))
		args = append(args, filter.TaskID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("end_utc > $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("start_utc < $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{"start_utc": true, "created_at": true, "status": true}
	if !allowedSorts[sortBy] {
		sortBy = "start_utc"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", bookingColumns, base, sortBy, order, size, offset)
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}

	return bookings, total, nil
}

// ListForWindow returns non-cancelled bookings for one team intersecting the
// window, ordered chronologically. Used for dispatch sheets and clustering.
func (r *BookingRepository) ListForWindow(ctx context.Context, teamID string, from, to time.Time) ([]models.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE team_id = $1 AND status <> 'cancelled' AND start_utc < $2 AND end_utc > $3 ORDER BY start_utc ASC`, bookingColumns)
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, teamID, to, from); err != nil {
		return nil, fmt.Errorf("list bookings for window: %w", err)
	}
	return bookings, nil
}
