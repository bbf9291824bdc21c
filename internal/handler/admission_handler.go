package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cadenza-hq/music-crm-api/internal/dto"
	"github.com/cadenza-hq/music-crm-api/internal/models"
	"github.com/cadenza-hq/music-crm-api/internal/service"
	appErrors "github.com/cadenza-hq/music-crm-api/pkg/errors"
	"github.com/cadenza-hq/music-crm-api/pkg/response"
)

// AdmissionHandler exposes admission allocation endpoints.
type AdmissionHandler struct {
	service       *service.AdmissionService
	exportEnabled bool
}

// NewAdmissionHandler constructs an admission handler.
func NewAdmissionHandler(svc *service.AdmissionService, exportEnabled bool) *AdmissionHandler {
	return &AdmissionHandler{service: svc, exportEnabled: exportEnabled}
}

// Create godoc
// @Summary Create admission
// @Description Allocate an admission: resolve weekly slots, validate capacity, generate the attendance calendar and commit atomically
// @Tags Admissions
// @Accept json
// @Produce json
// @Param payload body dto.CreateAdmissionRequest true "Admission payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admissions [post]
func (h *AdmissionHandler) Create(c *gin.Context) {
	var req dto.CreateAdmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid admission payload"))
		return
	}
	detail, err := h.service.Create(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// List godoc
// @Summary List admissions
// @Description List admissions with filters
// @Tags Admissions
// @Produce json
// @Param leadId query string false "Filter by lead"
// @Param studentId query string false "Filter by student"
// @Param courseId query string false "Filter by course"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admissions [get]
func (h *AdmissionHandler) List(c *gin.Context) {
	var filter models.AdmissionFilter
	filter.LeadID = c.Query("leadId")
	filter.StudentID = c.Query("studentId")
	filter.CourseID = c.Query("courseId")
	if status := c.Query("status"); status != "" {
		filter.Status = models.AdmissionStatus(status)
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	admissions, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, admissions, pagination)
}

// Get godoc
// @Summary Get admission
// @Tags Admissions
// @Produce json
// @Param id path string true "Admission ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admissions/{id} [get]
func (h *AdmissionHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Update godoc
// @Summary Update admission
// @Description Edit extra classes, discount, notes or status; the committed schedule is untouched
// @Tags Admissions
// @Accept json
// @Produce json
// @Param id path string true "Admission ID"
// @Param payload body dto.UpdateAdmissionRequest true "Admission payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admissions/{id} [patch]
func (h *AdmissionHandler) Update(c *gin.Context) {
	var req dto.UpdateAdmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	detail, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Delete godoc
// @Summary Delete admission
// @Description Soft-delete by default; ?hard=true removes dependent rows and is restricted to admins
// @Tags Admissions
// @Param id path string true "Admission ID"
// @Param hard query bool false "Hard delete"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admissions/{id} [delete]
func (h *AdmissionHandler) Delete(c *gin.Context) {
	hard, _ := strconv.ParseBool(c.DefaultQuery("hard", "false"))
	if hard {
		claims := claimsFromContext(c)
		if claims == nil || claims.Role != models.RoleAdmin {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "hard delete requires admin role"))
			return
		}
		if err := h.service.HardDelete(c.Request.Context(), c.Param("id")); err != nil {
			response.Error(c, err)
			return
		}
		response.NoContent(c)
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ExportSchedule godoc
// @Summary Export admission schedule
// @Description Download the generated attendance calendar as CSV or PDF
// @Tags Admissions
// @Produce octet-stream
// @Param id path string true "Admission ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /admissions/{id}/schedule/export [get]
func (h *AdmissionHandler) ExportSchedule(c *gin.Context) {
	if !h.exportEnabled {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "schedule export is disabled"))
		return
	}
	payload, filename, contentType, err := h.service.ExportSchedule(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}
