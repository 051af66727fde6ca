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

// TeamHandler wires team routes.
type TeamHandler struct {
	teams *service.TeamService
}

// NewTeamHandler constructs a new TeamHandler.
func NewTeamHandler(teams *service.TeamService) *TeamHandler {
	return &TeamHandler{teams: teams}
}

// List godoc
// @Summary List teams
// @Tags Teams
// @Produce json
// @Param search query string false "Search by name"
// @Param active query bool false "Filter by active status"
// @Param task_type_id query string false "Only teams eligible for this task type"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param sort query string false "Sort field (name,created_at)"
// @Param order query string false "Sort order (asc/desc)"
// @Success 200 {object} response.Envelope
// @Router /teams [get]
func (h *TeamHandler) List(c *gin.Context) {
	filter := models.TeamFilter{
		Search:     strings.TrimSpace(c.Query("search")),
		TaskTypeID: c.Query("task_type_id"),
		SortBy:     c.Query("sort"),
		SortOrder:  c.Query("order"),
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

	teams, pagination, err := h.teams.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teams, &pagination)
}

// Get godoc
// @Summary Get team detail
// @Tags Teams
// @Produce json
// @Param id path string true "Team ID"
// @Success 200 {object} response.Envelope
// @Router /teams/{id} [get]
func (h *TeamHandler) Get(c *gin.Context) {
	team, err := h.teams.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, team, nil)
}

// Calendar godoc
// @Summary Get a team's resolved working calendar
// @Tags Teams
// @Produce json
// @Param id path string true "Team ID"
// @Success 200 {object} response.Envelope
// @Router /teams/{id}/calendar [get]
func (h *TeamHandler) Calendar(c *gin.Context) {
	calendar, err := h.teams.Calendar(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, calendar, nil)
}
