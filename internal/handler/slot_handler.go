package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fieldserve/dispatch-api/internal/dto"
	"github.com/fieldserve/dispatch-api/internal/service"
	appErrors "github.com/fieldserve/dispatch-api/pkg/errors"
	"github.com/fieldserve/dispatch-api/pkg/response"
)

// SlotHandler wires slot search routes.
type SlotHandler struct {
	scheduler *service.SchedulerService
}

// NewSlotHandler constructs a new SlotHandler.
func NewSlotHandler(scheduler *service.SchedulerService) *SlotHandler {
	return &SlotHandler{scheduler: scheduler}
}

// Search godoc
// @Summary Search ranked appointment slots
// @Tags Slots
// @Accept json
// @Produce json
// @Param payload body dto.SlotSearchRequest true "Search parameters"
// @Success 200 {object} response.Envelope
// @Router /slots/search [post]
func (h *SlotHandler) Search(c *gin.Context) {
	var req dto.SlotSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid slot search payload"))
		return
	}
	// An X-Timezone header backs requests whose body carries no zone.
	if req.Timezone == "" {
		req.Timezone = c.GetHeader("X-Timezone")
	}

	result, err := h.scheduler.FindCandidates(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
