package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fieldserve/dispatch-api/internal/dto"
	"github.com/fieldserve/dispatch-api/internal/service"
	appErrors "github.com/fieldserve/dispatch-api/pkg/errors"
	"github.com/fieldserve/dispatch-api/pkg/response"
)

// ExportHandler wires dispatch sheet export routes.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs a new ExportHandler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// DispatchSheet godoc
// @Summary Export a team's dispatch sheet
// @Tags Exports
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Team ID"
// @Param from query string true "Window start (RFC3339)"
// @Param to query string false "Window end (RFC3339), defaults to one day after from"
// @Param format query string false "csv or pdf (default csv)"
// @Success 200 {file} binary
// @Router /teams/{id}/dispatch-sheet [get]
func (h *ExportHandler) DispatchSheet(c *gin.Context) {
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be RFC3339"))
		return
	}
	to := from.AddDate(0, 0, 1)
	if raw := c.Query("to"); raw != "" {
		to, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be RFC3339"))
			return
		}
	}

	file, err := h.exports.DispatchSheet(c.Request.Context(), dto.DispatchSheetRequest{
		TeamID: c.Param("id"),
		From:   from,
		To:     to,
		Format: c.DefaultQuery("format", "csv"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+file.FileName+`"`)
	c.Data(200, file.ContentType, file.Data)
}
