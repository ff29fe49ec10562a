package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uniplan/enrollment-api/internal/dto"
	"github.com/uniplan/enrollment-api/internal/service"
	appErrors "github.com/uniplan/enrollment-api/pkg/errors"
	"github.com/uniplan/enrollment-api/pkg/response"
)

// PreferenceHandler exposes scheduling preference endpoints.
type PreferenceHandler struct {
	preferences *service.PreferenceService
}

// NewPreferenceHandler constructs the handler.
func NewPreferenceHandler(preferences *service.PreferenceService) *PreferenceHandler {
	return &PreferenceHandler{preferences: preferences}
}

// Get godoc
// @Summary Current user's scheduling preferences
// @Tags Preferences
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /preferences [get]
func (h *PreferenceHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	resp, err := h.preferences.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// Upsert godoc
// @Summary Store the current user's scheduling preferences
// @Tags Preferences
// @Accept json
// @Produce json
// @Param request body dto.PreferenceRequest true "Preferences"
// @Success 200 {object} response.Envelope
// @Router /preferences [put]
func (h *PreferenceHandler) Upsert(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.PreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}

	resp, err := h.preferences.Upsert(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}
