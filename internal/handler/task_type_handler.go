package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fieldserve/dispatch-api/internal/models"
	"github.com/fieldserve/dispatch-api/internal/service"
	"github.com/fieldserve/dispatch-api/pkg/response"
)

// TaskTypeHandler wires task type routes.
type TaskTypeHandler struct {
	taskTypes *service.TaskTypeService
}

// NewTaskTypeHandler constructs a new TaskTypeHandler.
func NewTaskTypeHandler(taskTypes *service.TaskTypeService) *TaskTypeHandler {
	return &TaskTypeHandler{taskTypes: taskTypes}
}

// List godoc
// @Summary List task types
// @Tags TaskTypes
// @Produce json
// @Param search query string false "Search by name"
// @Param active query bool false "Filter by active status"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /task-types [get]
func (h *TaskTypeHandler) List(c *gin.Context) {
	filter := models.TaskTypeFilter{
		Search: strings.TrimSpace(c.Query("search")),
	}
	if active := c.Query("active"); active != "" {
		switch strings.ToLower(active) {
		case "true":
			val := true
			filter.Active = &val
		case "false":
			val := false
			filter.Active = &val
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	taskTypes, pagination, err := h.taskTypes.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, taskTypes, &pagination)
}

// Get godoc
// @Summary Get task type detail
// @Tags TaskTypes
// @Produce json
// @Param id path string true "Task type ID"
// @Success 200 {object} response.Envelope
// @Router /task-types/{id} [get]
func (h *TaskTypeHandler) Get(c *gin.Context) {
	taskType, err := h.taskTypes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, taskType, nil)
}
