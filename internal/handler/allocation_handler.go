package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-scheduler/internal/models"
	"github.com/noah-isme/exam-scheduler/internal/service"
	appErrors "github.com/noah-isme/exam-scheduler/pkg/errors"
	"github.com/noah-isme/exam-scheduler/pkg/response"
)

// AllocationHandler exposes allocation admission endpoints.
type AllocationHandler struct {
	service *service.AdmissionService
}

// NewAllocationHandler constructs an allocation handler.
func NewAllocationHandler(svc *service.AdmissionService) *AllocationHandler {
	return &AllocationHandler{service: svc}
}

// List godoc
// @Summary List allocations
// @Tags Allocations
// @Produce json
// @Param roomId query string false "Filter by room"
// @Param examId query string false "Filter by exam"
// @Param termId query string false "Filter by term"
// @Param from query string false "Window start (RFC3339)"
// @Param to query string false "Window end (RFC3339)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /allocations [get]
func (h *AllocationHandler) List(c *gin.Context) {
	var filter models.AllocationFilter
	filter.RoomID = c.Query("roomId")
	filter.ExamID = c.Query("examId")
	filter.TermID = c.Query("termId")
	if from := c.Query("from"); from != "" {
		if at, err := time.Parse(time.RFC3339, from); err == nil {
			filter.From = &at
		}
	}
	if to := c.Query("to"); to != "" {
		if at, err := time.Parse(time.RFC3339, to); err == nil {
			filter.To = &at
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	allocations, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, allocations, pagination)
}

// Get godoc
// @Summary Get allocation
// @Tags Allocations
// @Produce json
// @Param id path string true "Allocation ID"
// @Success 200 {object} response.Envelope
// @Router /allocations/{id} [get]
func (h *AllocationHandler) Get(c *gin.Context) {
	allocation, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, allocation, nil)
}

// Create godoc
// @Summary Admit allocation
// @Description Run the full admission check and commit the allocation on success. Rejections return 409 with a typed error code and diagnostic details.
// @Tags Allocations
// @Accept json
// @Produce json
// @Param payload body service.AdmitAllocationRequest true "Allocation payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /allocations [post]
func (h *AllocationHandler) Create(c *gin.Context) {
	var req service.AdmitAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	allocation, err := h.service.Admit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, allocation)
}

// Update godoc
// @Summary Replace allocation
// @Description Re-run the full admission check with the edited values, excluding the allocation's own seats, and replace it wholesale on success.
// @Tags Allocations
// @Accept json
// @Produce json
// @Param id path string true "Allocation ID"
// @Param payload body service.AdmitAllocationRequest true "Allocation payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /allocations/{id} [put]
func (h *AllocationHandler) Update(c *gin.Context) {
	var req service.AdmitAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	allocation, err := h.service.Replace(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, allocation, nil)
}

// Delete godoc
// @Summary Delete allocation
// @Tags Allocations
// @Param id path string true "Allocation ID"
// @Success 204
// @Router /allocations/{id} [delete]
func (h *AllocationHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
