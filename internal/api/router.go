package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/curbwatch/parking-backend-go/internal/config"
	"github.com/curbwatch/parking-backend-go/internal/handler"
	"github.com/curbwatch/parking-backend-go/internal/middleware"
)

// Handlers groups the route handlers the router wires up
type Handlers struct {
	Signals   *handler.SignalHandler
	Detection *handler.DetectionHandler
	Schedules *handler.ScheduleHandler
}

// SetupRouter builds the gin engine with middleware and routes
func SetupRouter(cfg *config.Config, log zerolog.Logger, h Handlers) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(log))

	// CORS
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Parking detection backend is running",
		})
	})

	api := r.Group("/api/v1")
	api.Use(middleware.DeviceAuth(cfg.JWTSecret))
	{
		// Raw platform signals streamed by the device. Location fixes
		// arrive every few seconds while driving, hence the high budget.
		signals := api.Group("/signals")
		signals.Use(middleware.RateLimit(600, time.Minute))
		{
			signals.POST("/connection", h.Signals.PostConnection)
			signals.POST("/location", h.Signals.PostLocation)
			signals.POST("/motion", h.Signals.PostMotion)
			signals.POST("/visit", h.Signals.PostVisit)
		}

		detection := api.Group("/detection")
		{
			detection.POST("/start", h.Detection.Start)
			detection.POST("/stop", h.Detection.Stop)
			detection.GET("/state", h.Detection.GetState)
		}

		api.GET("/parking/latest", h.Detection.GetLatestParking)
		api.GET("/schedules/near", h.Schedules.GetNear)
	}

	return r
}
