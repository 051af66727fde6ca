package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/fieldserve/dispatch-api/internal/models"
)

func newTeamRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func teamRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "active", "lead_id", "calendar_id", "warehouse_id", "created_at", "updated_at"})
}

func TestTeamRepositoryListWithFilters(t *testing.T) {
	db, mock, cleanup := newTeamRepoMock(t)
	defer cleanup()
	repo := NewTeamRepository(db)

	active := true
	rows := teamRows().
		AddRow("team-1", "North Crew", true, nil, nil, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM teams WHERE 1=1 AND active = $1 AND name ILIKE $2 ORDER BY name ASC LIMIT 20 OFFSET 0")).
		WithArgs(true, "%north%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM teams WHERE 1=1 AND active = $1 AND name ILIKE $2")).
		WithArgs(true, "%north%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	teams, total, err := repo.List(context.Background(), models.TeamFilter{Active: &active, Search: "north"})
	require.NoError(t, err)
	require.Len(t, teams, 1)
	require.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamRepositoryListActive(t *testing.T) {
	db, mock, cleanup := newTeamRepoMock(t)
	defer cleanup()
	repo := NewTeamRepository(db)

	rows := teamRows().
		AddRow("team-1", "North Crew", true, nil, nil, nil, time.Now(), time.Now()).
		AddRow("team-2", "South Crew", true, nil, nil, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM teams WHERE active = TRUE ORDER BY name ASC")).
		WillReturnRows(rows)

	teams, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, teams, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamRepositoryListEligible(t *testing.T) {
	db, mock, cleanup := newTeamRepoMock(t)
	defer cleanup()
	repo := NewTeamRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "active", "lead_id", "calendar_id", "warehouse_id", "created_at", "updated_at", "preferred"}).
		AddRow("team-1", "North Crew", true, nil, nil, nil, time.Now(), time.Now(), true).
		AddRow("team-2", "South Crew", true, nil, nil, nil, time.Now(), time.Now(), false)
	mock.ExpectQuery(regexp.QuoteMeta("JOIN task_type_teams tt ON tt.team_id = t.id WHERE tt.task_type_id = $1 AND t.active = TRUE ORDER BY tt.preferred DESC, t.name ASC")).
		WithArgs("tt-1").
		WillReturnRows(rows)

	teams, err := repo.ListEligible(context.Background(), "tt-1")
	require.NoError(t, err)
	require.Len(t, teams, 2)
	require.True(t, teams[0].Preferred)
	require.False(t, teams[1].Preferred)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamRepositoryListByLead(t *testing.T) {
	db, mock, cleanup := newTeamRepoMock(t)
	defer cleanup()
	repo := NewTeamRepository(db)

	rows := teamRows().
		AddRow("team-1", "North Crew", true, nil, nil, nil, time.Now(), time.Now()).
		AddRow("team-2", "North Crew B", false, nil, nil, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM teams WHERE lead_id = $1 ORDER BY id ASC")).
		WithArgs("lead-1").
		WillReturnRows(rows)

	teams, err := repo.ListByLead(context.Background(), "lead-1")
	require.NoError(t, err)
	require.Len(t, teams, 2)
	require.False(t, teams[1].Active)
	require.NoError(t, mock.ExpectationsWereMet())
}
