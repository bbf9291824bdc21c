package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cadenza-hq/music-crm-api/internal/dto"
	"github.com/cadenza-hq/music-crm-api/internal/models"
	"github.com/cadenza-hq/music-crm-api/internal/service"
	appErrors "github.com/cadenza-hq/music-crm-api/pkg/errors"
	"github.com/cadenza-hq/music-crm-api/pkg/response"
)

// CoursePlanHandler exposes the plan catalog endpoints.
type CoursePlanHandler struct {
	service *service.CoursePlanService
}

// NewCoursePlanHandler constructs a course plan handler.
func NewCoursePlanHandler(svc *service.CoursePlanService) *CoursePlanHandler {
	return &CoursePlanHandler{service: svc}
}

// List godoc
// @Summary List course plans
// @Tags CoursePlans
// @Produce json
// @Param active query bool false "Filter by active flag"
// @Param search query string false "Name search"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /course-plans [get]
func (h *CoursePlanHandler) List(c *gin.Context) {
	var filter models.CoursePlanFilter
	if active := c.Query("active"); active != "" {
		if val, err := strconv.ParseBool(active); err == nil {
			filter.Active = &val
		}
	}
	filter.Search = c.Query("search")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	plans, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plans, pagination)
}

// Get godoc
// @Summary Get course plan
// @Tags CoursePlans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /course-plans/{id} [get]
func (h *CoursePlanHandler) Get(c *gin.Context) {
	plan, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// Create godoc
// @Summary Create course plan
// @Tags CoursePlans
// @Accept json
// @Produce json
// @Param payload body dto.CreateCoursePlanRequest true "Plan payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /course-plans [post]
func (h *CoursePlanHandler) Create(c *gin.Context) {
	var req dto.CreateCoursePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	plan, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, plan)
}

// Update godoc
// @Summary Update course plan
// @Tags CoursePlans
// @Accept json
// @Produce json
// @Param id path string true "Plan ID"
// @Param payload body dto.UpdateCoursePlanRequest true "Plan payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /course-plans/{id} [put]
func (h *CoursePlanHandler) Update(c *gin.Context) {
	var req dto.UpdateCoursePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	plan, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// Delete godoc
// @Summary Delete course plan
// @Tags CoursePlans
// @Param id path string true "Plan ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /course-plans/{id} [delete]
func (h *CoursePlanHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
