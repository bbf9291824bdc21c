package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cadenza-hq/music-crm-api/internal/service"
	"github.com/cadenza-hq/music-crm-api/pkg/response"
)

// TimeSlotHandler exposes the weekly slot catalog.
type TimeSlotHandler struct {
	service *service.TimeSlotService
}

// NewTimeSlotHandler constructs a time slot handler.
func NewTimeSlotHandler(svc *service.TimeSlotService) *TimeSlotHandler {
	return &TimeSlotHandler{service: svc}
}

// List godoc
// @Summary List time slots
// @Description List weekly slot templates with operating-day openness
// @Tags TimeSlots
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /time-slots [get]
func (h *TimeSlotHandler) List(c *gin.Context) {
	views, err := h.service.ListCatalog(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil)
}
