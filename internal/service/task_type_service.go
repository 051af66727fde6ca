package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fieldserve/dispatch-api/internal/models"
	appErrors "github.com/fieldserve/dispatch-api/pkg/errors"
)

type taskTypeRepository interface {
	FindByID(ctx context.Context, id string) (*models.TaskType, error)
	List(ctx context.Context, filter models.TaskTypeFilter) ([]models.TaskType, int, error)
}

// TaskTypeService exposes task type lookups.
type TaskTypeService struct {
	taskTypes taskTypeRepository
	logger    *zap.Logger
}

// NewTaskTypeService constructs a TaskTypeService.
func NewTaskTypeService(taskTypes taskTypeRepository, logger *zap.Logger) *TaskTypeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskTypeService{taskTypes: taskTypes, logger: logger}
}

// List returns task types matching the filter.
func (s *TaskTypeService) List(ctx context.Context, filter models.TaskTypeFilter) ([]models.TaskType, models.Pagination, error) {
	taskTypes, total, err := s.taskTypes.List(ctx, filter)
	if err != nil {
		return nil, models.Pagination{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list task types")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return taskTypes, models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get loads one task type.
func (s *TaskTypeService) Get(ctx context.Context, id string) (*models.TaskType, error) {
	taskType, err := s.taskTypes.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("task type %s not found", id))
	}
	return taskType, nil
}
