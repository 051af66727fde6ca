package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/fieldserve/dispatch-api/internal/models"
)

// TeamRepository provides read access to teams. Teams are administered
// elsewhere; the scheduler only reads them.
type TeamRepository struct {
	db *sqlx.DB
}

// NewTeamRepository creates a new team repository.
func NewTeamRepository(db *sqlx.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

const teamColumns = "id, name, active, lead_id, calendar_id, warehouse_id, created_at, updated_at"

// List returns teams with optional filtering and pagination.
func (r *TeamRepository) List(ctx context.Context, filter models.TeamFilter) ([]models.Team, int, error) {
	base := "FROM teams WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.TaskTypeID != "" {
		conditions = append(conditions, fmt.Sprintf("id IN (SELECT team_id FROM task_type_teams WHERE task_type_id = $%d)", len(args)+1))
		args = append(args, filter.TaskTypeID)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{"name": true, "created_at": true}
	if !allowedSorts[sortBy] {
		sortBy = "name"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", teamColumns, base, sortBy, order, size, offset)
	var teams []models.Team
	if err := r.db.SelectContext(ctx, &teams, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list teams: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count teams: %w", err)
	}

	return teams, total, nil
}

// FindByID loads a team by id.
func (r *TeamRepository) FindByID(ctx context.Context, id string) (*models.Team, error) {
	query := fmt.Sprintf("SELECT %s FROM teams WHERE id = $1", teamColumns)
	var team models.Team
	if err := r.db.GetContext(ctx, &team, query, id); err != nil {
		return nil, err
	}
	return &team, nil
}

// ListActive returns every active team, the search fallback when a task type
// qualifies nobody.
func (r *TeamRepository) ListActive(ctx context.Context) ([]models.Team, error) {
	query := fmt.Sprintf("SELECT %s FROM teams WHERE active = TRUE ORDER BY name ASC", teamColumns)
	var teams []models.Team
	if err := r.db.SelectContext(ctx, &teams, query); err != nil {
		return nil, fmt.Errorf("list active teams: %w", err)
	}
	return teams, nil
}

// ListEligible returns active teams capable of a task type, flagged when the
// type prefers them.
func (r *TeamRepository) ListEligible(ctx context.Context, taskTypeID string) ([]models.EligibleTeam, error) {
	const query = `SELECT t.id, t.name, t.active, t.lead_id, t.calendar_id, t.warehouse_id, t.created_at, t.updated_at, tt.preferred FROM teams t JOIN task_type_teams tt ON tt.team_id = t.id WHERE tt.task_type_id = $1 AND t.active = TRUE ORDER BY tt.preferred DESC, t.name ASC`
	var teams []models.EligibleTeam
	if err := r.db.SelectContext(ctx, &teams, query, taskTypeID); err != nil {
		return nil, fmt.Errorf("list eligible teams: %w", err)
	}
	return teams, nil
}

// ListByLead returns every team sharing a lead, inactive ones included so
// callers decide what counts. Teams under one lead share effective
// availability.
func (r *TeamRepository) ListByLead(ctx context.Context, leadID string) ([]models.Team, error) {
	query := fmt.Sprintf("SELECT %s FROM teams WHERE lead_id = $1 ORDER BY id ASC", teamColumns)
	var teams []models.Team
	if err := r.db.SelectContext(ctx, &teams, query, leadID); err != nil {
		return nil, fmt.Errorf("list teams by lead: %w", err)
	}
	return teams, nil
}
