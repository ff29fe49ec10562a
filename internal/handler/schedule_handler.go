package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uniplan/enrollment-api/internal/dto"
	"github.com/uniplan/enrollment-api/internal/service"
	appErrors "github.com/uniplan/enrollment-api/pkg/errors"
	"github.com/uniplan/enrollment-api/pkg/response"
)

// ScheduleHandler exposes the optimization run endpoints.
type ScheduleHandler struct {
	personal    *service.PersonalScheduleService
	institution *service.InstitutionScheduleService
}

// NewScheduleHandler constructs the handler.
func NewScheduleHandler(personal *service.PersonalScheduleService, institution *service.InstitutionScheduleService) *ScheduleHandler {
	return &ScheduleHandler{personal: personal, institution: institution}
}

// GeneratePersonal godoc
// @Summary Queue a personal schedule run
// @Tags Schedules
// @Accept json
// @Produce json
// @Param request body dto.GeneratePersonalScheduleRequest true "Run parameters"
// @Success 202 {object} response.Envelope
// @Router /schedules/personal/generate [post]
func (h *ScheduleHandler) GeneratePersonal(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.GeneratePersonalScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}

	resp, err := h.personal.Generate(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, resp)
}

// PersonalStatus godoc
// @Summary Personal run status
// @Tags Schedules
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/personal/jobs/{id} [get]
func (h *ScheduleHandler) PersonalStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	status, err := h.personal.GetStatus(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// GenerateInstitution godoc
// @Summary Queue an institution-wide schedule run
// @Tags Schedules
// @Accept json
// @Produce json
// @Param request body dto.GenerateInstitutionScheduleRequest true "Run parameters"
// @Success 202 {object} response.Envelope
// @Router /schedules/institution/generate [post]
func (h *ScheduleHandler) GenerateInstitution(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.GenerateInstitutionScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}

	resp, err := h.institution.Generate(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, resp)
}

// InstitutionStatus godoc
// @Summary Institution run status
// @Tags Schedules
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/institution/jobs/{id} [get]
func (h *ScheduleHandler) InstitutionStatus(c *gin.Context) {
	status, err := h.institution.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}
