package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/fieldserve/dispatch-api/internal/models"
)

// TaskTypeRepository provides read access to task types and their defaults.
type TaskTypeRepository struct {
	db *sqlx.DB
}

// NewTaskTypeRepository creates a new task type repository.
func NewTaskTypeRepository(db *sqlx.DB) *TaskTypeRepository {
	return &TaskTypeRepository{db: db}
}

const taskTypeColumns = "id, name, active, default_hours, buffer_before_mins, buffer_after_mins, created_at, updated_at"

// FindByID loads a task type by id.
func (r *TaskTypeRepository) FindByID(ctx context.Context, id string) (*models.TaskType, error) {
	query := fmt.Sprintf("SELECT %s FROM task_types WHERE id = $1", taskTypeColumns)
	var taskType models.TaskType
	if err := r.db.GetContext(ctx, &taskType, query, id); err != nil {
		return nil, err
	}
	return &taskType, nil
}

// List returns task types with optional filtering and pagination.
func (r *TaskTypeRepository) List(ctx context.Context, filter models.TaskTypeFilter) ([]models.TaskType, int, error) {
	base := "FROM task_types WHERE 1=1"
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
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY name ASC LIMIT %d OFFSET %d", taskTypeColumns, base, size, offset)
	var taskTypes []models.TaskType
	if err := r.db.SelectContext(ctx, &taskTypes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list task types: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count task types: %w", err)
	}

	return taskTypes, total, nil
}
