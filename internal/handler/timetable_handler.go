package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-scheduler/internal/service"
	"github.com/noah-isme/exam-scheduler/pkg/response"
)

// TimetableHandler exposes the published timetable and its exports.
type TimetableHandler struct {
	timetables *service.TimetableService
	exports    *service.ExportService
}

// NewTimetableHandler constructs a timetable handler. The export service may
// be nil when exports are disabled.
func NewTimetableHandler(timetables *service.TimetableService, exports *service.ExportService) *TimetableHandler {
	return &TimetableHandler{timetables: timetables, exports: exports}
}

// Get godoc
// @Summary Get term timetable
// @Description Per-room allocation view for a term, served from cache when warm
// @Tags Timetable
// @Produce json
// @Param id path string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /terms/{id}/timetable [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	timetable, err := h.timetables.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetable, nil)
}

// Export godoc
// @Summary Export term timetable
// @Tags Timetable
// @Produce octet-stream
// @Param id path string true "Term ID"
// @Param format query string false "Export format (csv or pdf)" default(csv)
// @Success 200 {file} binary
// @Router /terms/{id}/timetable/export [get]
func (h *TimetableHandler) Export(c *gin.Context) {
	if h.exports == nil {
		c.Status(http.StatusNotFound)
		return
	}
	result, err := h.exports.ExportTimetable(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	c.Data(http.StatusOK, result.ContentType, result.Content)
}
