package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/fieldserve/dispatch-api/internal/models"
)

func newBookingRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func bookingRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "team_id", "task_id", "site_id", "start_utc", "end_utc", "allocated_hours", "status", "created_at", "updated_at"})
}

func TestBookingRepositoryOverlapping(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	from := time.Date(2026, 9, 7, 8, 0, 0, 0, time.UTC)
	to := time.Date(2026, 9, 7, 12, 0, 0, 0, time.UTC)

	rows := bookingRows().
		AddRow("b-1", "team-1", nil, nil, from, from.Add(2*time.Hour), 2.0, models.BookingConfirmed, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, team_id, task_id, site_id, start_utc, end_utc, allocated_hours, status, created_at, updated_at FROM bookings WHERE team_id = ANY($1) AND status <> 'cancelled' AND start_utc < $2 AND end_utc > $3 ORDER BY start_utc ASC")).
		WithArgs(pq.Array([]string{"team-1", "team-2"}), to, from).
		WillReturnRows(rows)

	bookings, err := repo.Overlapping(context.Background(), nil, []string{"team-1", "team-2"}, from, to, "")
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	require.Equal(t, "b-1", bookings[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryOverlappingExcludesBooking(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	from := time.Date(2026, 9, 7, 8, 0, 0, 0, time.UTC)
	to := time.Date(2026, 9, 7, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("AND id <> $4 ORDER BY start_utc ASC")).
		WithArgs(pq.Array([]string{"team-1"}), to, from, "b-self").
		WillReturnRows(bookingRows())

	bookings, err := repo.Overlapping(context.Background(), nil, []string{"team-1"}, from, to, "b-self")
	require.NoError(t, err)
	require.Empty(t, bookings)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryLockTeams(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM teams WHERE id = ANY($1) ORDER BY id FOR UPDATE")).
		WithArgs(pq.Array([]string{"team-1", "team-2"})).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("team-1").AddRow("team-2"))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.LockTeams(context.Background(), tx, []string{"team-1", "team-2"}))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryLockTeamsMissingRow(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(pq.Array([]string{"team-1", "team-ghost"})).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("team-1"))
	mock.ExpectRollback()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	err = repo.LockTeams(context.Background(), tx, []string{"team-1", "team-ghost"})
	require.Error(t, err)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bookings")).
		WithArgs("b-1", "team-1", nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg(), 2.0, models.BookingConfirmed, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	booking := &models.Booking{
		ID:             "b-1",
		TeamID:         "team-1",
		StartUTC:       time.Date(2026, 9, 7, 8, 0, 0, 0, time.UTC),
		EndUTC:         time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC),
		AllocatedHours: 2,
		Status:         models.BookingConfirmed,
	}
	require.NoError(t, repo.Create(context.Background(), nil, booking))
	require.False(t, booking.UpdatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET status = $1, updated_at = $2 WHERE id = $3")).
		WithArgs(models.BookingCancelled, sqlmock.AnyArg(), "b-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), nil, "b-1", models.BookingCancelled))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings WHERE id = $1")).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "ghost")
	require.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryListFiltersAndCounts(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	start := time.Date(2026, 9, 7, 8, 0, 0, 0, time.UTC)
	rows := bookingRows().
		AddRow("b-1", "team-1", nil, nil, start, start.Add(2*time.Hour), 2.0, models.BookingConfirmed, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings WHERE 1=1 AND team_id = $1 AND status = $2 ORDER BY start_utc ASC LIMIT 20 OFFSET 0")).
		WithArgs("team-1", models.BookingConfirmed).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM bookings WHERE 1=1 AND team_id = $1 AND status = $2")).
		WithArgs("team-1", models.BookingConfirmed).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	bookings, total, err := repo.List(context.Background(), models.BookingFilter{TeamID: "team-1", Status: string(models.BookingConfirmed)})
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	require.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryListForWindow(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	from := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC)
	rows := bookingRows().
		AddRow("b-1", "team-1", nil, nil, from.Add(8*time.Hour), from.Add(10*time.Hour), 2.0, models.BookingConfirmed, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings WHERE team_id = $1 AND status <> 'cancelled' AND start_utc < $2 AND end_utc > $3 ORDER BY start_utc ASC")).
		WithArgs("team-1", to, from).
		WillReturnRows(rows)

	bookings, err := repo.ListForWindow(context.Background(), "team-1", from, to)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
