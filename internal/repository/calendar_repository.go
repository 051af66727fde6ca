package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/fieldserve/dispatch-api/internal/models"
)

// CalendarRepository provides read access to working calendars and their
// attendance entries.
type CalendarRepository struct {
	db *sqlx.DB
}

// NewCalendarRepository creates a new calendar repository.
func NewCalendarRepository(db *sqlx.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

// ListAttendances returns all attendance entries for a calendar ordered by
// weekday and start time.
func (r *CalendarRepository) ListAttendances(ctx context.Context, calendarID string) ([]models.Attendance, error) {
	const query = `SELECT id, calendar_id, weekday, start_hour, end_hour, capacity_hours FROM attendances WHERE calendar_id = $1 ORDER BY weekday ASC, start_hour ASC`
	var attendances []models.Attendance
	if err := r.db.SelectContext(ctx, &attendances, query, calendarID); err != nil {
		return nil, fmt.Errorf("list attendances: %w", err)
	}
	return attendances, nil
}

// FindUserCalendarID returns the calendar a user (team lead) works by, or
// empty when none is assigned.
func (r *CalendarRepository) FindUserCalendarID(ctx context.Context, userID string) (string, error) {
	const query = `SELECT COALESCE(calendar_id, '') FROM users WHERE id = $1`
	var calendarID string
	if err := r.db.GetContext(ctx, &calendarID, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("find user calendar: %w", err)
	}
	return calendarID, nil
}

// CalendarExists reports whether a calendar row is present.
func (r *CalendarRepository) CalendarExists(ctx context.Context, calendarID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM calendars WHERE id = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, calendarID); err != nil {
		return false, fmt.Errorf("calendar exists: %w", err)
	}
	return exists, nil
}
