package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/curbwatch/parking-backend-go/internal/models"
	"github.com/curbwatch/parking-backend-go/internal/service"
	"github.com/curbwatch/parking-backend-go/pkg/response"
)

// ScheduleHandler exposes sweeping-schedule lookups
type ScheduleHandler struct {
	service *service.ScheduleService
}

// NewScheduleHandler creates a new schedule handler
func NewScheduleHandler(service *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: service}
}

// GetNear handles GET /api/v1/schedules/near
func (h *ScheduleHandler) GetNear(c *gin.Context) {
	var filter models.ScheduleNearFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	schedules, err := h.service.Near(c.Request.Context(), filter)
	if err != nil {
		response.InternalError(c, "Failed to query schedules")
		return
	}

	response.Success(c, gin.H{
		"data":  schedules,
		"total": len(schedules),
	})
}
