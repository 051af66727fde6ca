package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/fieldserve/dispatch-api/internal/models"
)

// TaskOccupancyRepository reads externally planned work that occupies team
// time without going through the booking flow.
type TaskOccupancyRepository struct {
	db *sqlx.DB
}

// NewTaskOccupancyRepository creates a new task occupancy repository.
func NewTaskOccupancyRepository(db *sqlx.DB) *TaskOccupancyRepository {
	return &TaskOccupancyRepository{db: db}
}

// Overlapping returns occupancy records for any team in teamIDs intersecting
// [from, to) under half-open semantics.
func (r *TaskOccupancyRepository) Overlapping(ctx context.Context, exec sqlx.ExtContext, teamIDs []string, from, to time.Time) ([]models.TaskOccupancy, error) {
	if exec == nil {
		exec = r.db
	}
	const query = `SELECT task_id, team_id, start_utc, end_utc FROM task_occupancies WHERE team_id = ANY($1) AND start_utc < $2 AND end_utc > $3 ORDER BY start_utc ASC`
	var occupancies []models.TaskOccupancy
	if err := sqlx.SelectContext(ctx, exec, &occupancies, query, pq.Array(teamIDs), to, from); err != nil {
		return nil, fmt.Errorf("overlapping occupancies: %w", err)
	}
	return occupancies, nil
}
