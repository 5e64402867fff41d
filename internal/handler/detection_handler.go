package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/curbwatch/parking-backend-go/internal/service"
	"github.com/curbwatch/parking-backend-go/pkg/response"
)

// DetectionHandler exposes the detection engine's state and lifecycle
type DetectionHandler struct {
	service *service.DetectionService
}

// NewDetectionHandler creates a new detection handler
func NewDetectionHandler(service *service.DetectionService) *DetectionHandler {
	return &DetectionHandler{service: service}
}

// Start handles POST /api/v1/detection/start
func (h *DetectionHandler) Start(c *gin.Context) {
	h.service.StartMonitoring()
	response.Success(c, gin.H{"monitoring": true})
}

// Stop handles POST /api/v1/detection/stop
func (h *DetectionHandler) Stop(c *gin.Context) {
	h.service.StopMonitoring()
	response.Success(c, gin.H{"monitoring": false})
}

// GetState handles GET /api/v1/detection/state
func (h *DetectionHandler) GetState(c *gin.Context) {
	response.Success(c, gin.H{
		"monitoring": h.service.Monitoring(),
		"state":      h.service.State(),
	})
}

// GetLatestParking handles GET /api/v1/parking/latest
func (h *DetectionHandler) GetLatestParking(c *gin.Context) {
	latest := h.service.Latest()
	if latest == nil {
		response.NotFound(c, "No parking detected yet")
		return
	}
	response.Success(c, latest)
}
