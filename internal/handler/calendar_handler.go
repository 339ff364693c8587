package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-scheduler/internal/service"
	appErrors "github.com/noah-isme/exam-scheduler/pkg/errors"
	"github.com/noah-isme/exam-scheduler/pkg/response"
)

// CalendarHandler exposes blackout window and holiday endpoints.
type CalendarHandler struct {
	service *service.CalendarService
}

// NewCalendarHandler constructs a calendar handler.
func NewCalendarHandler(svc *service.CalendarService) *CalendarHandler {
	return &CalendarHandler{service: svc}
}

// ListBlackouts godoc
// @Summary List blackout windows
// @Tags Calendar
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /blackouts [get]
func (h *CalendarHandler) ListBlackouts(c *gin.Context) {
	blackouts, err := h.service.ListBlackouts(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, blackouts, nil)
}

// CreateBlackout godoc
// @Summary Create blackout window
// @Tags Calendar
// @Accept json
// @Produce json
// @Param payload body service.BlackoutRequest true "Blackout payload"
// @Success 201 {object} response.Envelope
// @Router /blackouts [post]
func (h *CalendarHandler) CreateBlackout(c *gin.Context) {
	var req service.BlackoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	blackout, err := h.service.CreateBlackout(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, blackout)
}

// UpdateBlackout godoc
// @Summary Update blackout window
// @Tags Calendar
// @Accept json
// @Produce json
// @Param id path string true "Blackout ID"
// @Param payload body service.BlackoutRequest true "Blackout payload"
// @Success 200 {object} response.Envelope
// @Router /blackouts/{id} [put]
func (h *CalendarHandler) UpdateBlackout(c *gin.Context) {
	var req service.BlackoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	blackout, err := h.service.UpdateBlackout(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, blackout, nil)
}

// DeleteBlackout godoc
// @Summary Delete blackout window
// @Tags Calendar
// @Param id path string true "Blackout ID"
// @Success 204
// @Router /blackouts/{id} [delete]
func (h *CalendarHandler) DeleteBlackout(c *gin.Context) {
	if err := h.service.DeleteBlackout(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListHolidays godoc
// @Summary List holidays
// @Tags Calendar
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /holidays [get]
func (h *CalendarHandler) ListHolidays(c *gin.Context) {
	holidays, err := h.service.ListHolidays(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, holidays, nil)
}

// CreateHoliday godoc
// @Summary Create holiday
// @Tags Calendar
// @Accept json
// @Produce json
// @Param payload body service.HolidayRequest true "Holiday payload"
// @Success 201 {object} response.Envelope
// @Router /holidays [post]
func (h *CalendarHandler) CreateHoliday(c *gin.Context) {
	var req service.HolidayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	holiday, err := h.service.CreateHoliday(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, holiday)
}

// UpdateHoliday godoc
// @Summary Update holiday
// @Tags Calendar
// @Accept json
// @Produce json
// @Param id path string true "Holiday ID"
// @Param payload body service.HolidayRequest true "Holiday payload"
// @Success 200 {object} response.Envelope
// @Router /holidays/{id} [put]
func (h *CalendarHandler) UpdateHoliday(c *gin.Context) {
	var req service.HolidayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	holiday, err := h.service.UpdateHoliday(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, holiday, nil)
}

// DeleteHoliday godoc
// @Summary Delete holiday
// @Tags Calendar
// @Param id path string true "Holiday ID"
// @Success 204
// @Router /holidays/{id} [delete]
func (h *CalendarHandler) DeleteHoliday(c *gin.Context) {
	if err := h.service.DeleteHoliday(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
