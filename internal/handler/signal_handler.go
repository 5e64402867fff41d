package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/curbwatch/parking-backend-go/internal/feed"
	"github.com/curbwatch/parking-backend-go/internal/models"
	"github.com/curbwatch/parking-backend-go/internal/service"
	"github.com/curbwatch/parking-backend-go/pkg/response"
)

// SignalHandler accepts the raw platform signals streamed by the mobile
// client and routes them to the feeds and the detection engine.
type SignalHandler struct {
	detection *service.DetectionService
	location  *feed.LocationFeed
	motion    *feed.MotionFeed
}

// NewSignalHandler creates a new signal handler
func NewSignalHandler(detection *service.DetectionService, location *feed.LocationFeed, motion *feed.MotionFeed) *SignalHandler {
	return &SignalHandler{detection: detection, location: location, motion: motion}
}

type connectionRequest struct {
	Kind   models.ConnectionKind   `json:"kind" binding:"required"`
	Method models.ConnectionMethod `json:"method" binding:"required"`
	At     time.Time               `json:"at" binding:"required"`
}

// PostConnection handles POST /api/v1/signals/connection
func (h *SignalHandler) PostConnection(c *gin.Context) {
	var req connectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid connection event")
		return
	}

	err := h.detection.HandleConnection(models.ConnectionEvent{
		Kind:   req.Kind,
		Method: req.Method,
		At:     req.At,
	})
	if errors.Is(err, service.ErrNotMonitoring) {
		response.Error(c, http.StatusConflict, "Monitoring is not active")
		return
	}

	response.Accepted(c)
}

type locationRequest struct {
	Lat      float64   `json:"lat" binding:"required"`
	Lon      float64   `json:"lon" binding:"required"`
	SpeedMPS float64   `json:"speed_mps"`
	At       time.Time `json:"at" binding:"required"`
}

// PostLocation handles POST /api/v1/signals/location
func (h *SignalHandler) PostLocation(c *gin.Context) {
	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid location fix")
		return
	}

	h.location.Report(feed.LocationFix{
		Coordinate: models.Coordinate{Lat: req.Lat, Lon: req.Lon},
		SpeedMPS:   req.SpeedMPS,
		At:         req.At,
	})
	response.Accepted(c)
}

type motionRequest struct {
	Walking     bool                    `json:"walking"`
	Confidence  models.MotionConfidence `json:"confidence"`
	At          time.Time               `json:"at"`
	Unavailable bool                    `json:"unavailable"`
}

// PostMotion handles POST /api/v1/signals/motion. A request with
// unavailable set marks the motion capability as revoked instead of
// reporting a classification.
func (h *SignalHandler) PostMotion(c *gin.Context) {
	var req motionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid motion classification")
		return
	}

	if req.Unavailable {
		h.motion.SetAvailable(false)
		response.Accepted(c)
		return
	}

	if req.At.IsZero() || req.Confidence == "" {
		response.BadRequest(c, "Invalid motion classification")
		return
	}

	h.motion.Report(models.MotionClassification{
		Walking:    req.Walking,
		Confidence: req.Confidence,
		At:         req.At,
	})
	response.Accepted(c)
}

type visitRequest struct {
	Lat       float64    `json:"lat" binding:"required"`
	Lon       float64    `json:"lon" binding:"required"`
	Arrival   time.Time  `json:"arrival" binding:"required"`
	Departure *time.Time `json:"departure"`
}

// PostVisit handles POST /api/v1/signals/visit
func (h *SignalHandler) PostVisit(c *gin.Context) {
	var req visitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid visit event")
		return
	}

	err := h.detection.HandleVisit(models.VisitEvent{
		Coordinate: models.Coordinate{Lat: req.Lat, Lon: req.Lon},
		Arrival:    req.Arrival,
		Departure:  req.Departure,
	})
	if errors.Is(err, service.ErrNotMonitoring) {
		response.Error(c, http.StatusConflict, "Monitoring is not active")
		return
	}

	response.Accepted(c)
}
