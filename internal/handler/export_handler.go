package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uniplan/enrollment-api/internal/dto"
	"github.com/uniplan/enrollment-api/internal/models"
	"github.com/uniplan/enrollment-api/internal/service"
	appErrors "github.com/uniplan/enrollment-api/pkg/errors"
	"github.com/uniplan/enrollment-api/pkg/response"
)

// ExportHandler lists stored schedules and renders downloads.
type ExportHandler struct {
	schedules      *service.ScheduleService
	exportsEnabled bool
}

// NewExportHandler constructs the handler.
func NewExportHandler(schedules *service.ScheduleService, exportsEnabled bool) *ExportHandler {
	return &ExportHandler{schedules: schedules, exportsEnabled: exportsEnabled}
}

// List godoc
// @Summary List generated schedules in a term
// @Tags Schedules
// @Produce json
// @Param termId query string true "Term ID"
// @Param kind query string false "PERSONAL or INSTITUTION"
// @Success 200 {object} response.Envelope
// @Router /schedules [get]
func (h *ExportHandler) List(c *gin.Context) {
	termID := c.Query("termId")
	if termID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "termId is required"))
		return
	}

	kind := models.ScheduleKind(c.DefaultQuery("kind", string(models.ScheduleKindPersonal)))
	if kind != models.ScheduleKindPersonal && kind != models.ScheduleKindInstitution {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown schedule kind %q", kind)))
		return
	}

	summaries, err := h.schedules.ListByTerm(c.Request.Context(), termID, kind)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summaries, nil)
}

// Export godoc
// @Summary Download a generated schedule as CSV or PDF
// @Tags Schedules
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Schedule ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /schedules/{id}/export [get]
func (h *ExportHandler) Export(c *gin.Context) {
	if !h.exportsEnabled {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "schedule exports are disabled"))
		return
	}

	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}

	result, err := h.schedules.Export(c.Request.Context(), c.Param("id"), query.Format, claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Data)
}
