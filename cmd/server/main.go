package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/curbwatch/parking-backend-go/internal/api"
	"github.com/curbwatch/parking-backend-go/internal/config"
	"github.com/curbwatch/parking-backend-go/internal/database"
	"github.com/curbwatch/parking-backend-go/internal/detection"
	"github.com/curbwatch/parking-backend-go/internal/feed"
	"github.com/curbwatch/parking-backend-go/internal/geocode"
	"github.com/curbwatch/parking-backend-go/internal/handler"
	"github.com/curbwatch/parking-backend-go/internal/logger"
	"github.com/curbwatch/parking-backend-go/internal/notify"
	"github.com/curbwatch/parking-backend-go/internal/repository"
	"github.com/curbwatch/parking-backend-go/internal/resolver"
	"github.com/curbwatch/parking-backend-go/internal/service"
	"github.com/curbwatch/parking-backend-go/internal/snapshot"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	db, err := database.Open(database.Config{Path: cfg.DBPath})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	// Collaborators
	locationFeed := feed.NewLocationFeed()
	motionFeed := feed.NewMotionFeed()
	scheduleRepo := repository.NewScheduleRepository(db)
	snapshotStore := snapshot.NewStore(db)
	sideResolver := resolver.NewSideResolver(log)

	var geocoder detection.Geocoder
	if cfg.GeocoderURL != "" {
		geocoder = geocode.NewClient(cfg.GeocoderURL)
	}

	var sink detection.NotificationSink
	if cfg.NotifyWebhook != "" {
		sink = notify.NewWebhookSink(cfg.NotifyWebhook)
	} else {
		sink = notify.NewLogSink(log)
	}

	// Detection engine configuration from the environment
	engineCfg := detection.DefaultConfig()
	engineCfg.SpeedWindowDuration = cfg.SpeedWindow
	engineCfg.SampleInterval = cfg.SampleInterval
	engineCfg.DrivingThresholdMPS = cfg.DrivingThreshold
	engineCfg.ReconnectGrace = cfg.ReconnectGrace
	engineCfg.ValidationTimeout = cfg.ValidationTimeout
	engineCfg.SnapshotTTL = cfg.SnapshotTTL

	newEngine := func() *detection.Engine {
		return detection.NewEngine(engineCfg, detection.Dependencies{
			Location:  locationFeed,
			Motion:    motionFeed,
			Geocoder:  geocoder,
			Schedules: scheduleRepo,
			Sink:      sink,
			Snapshots: snapshotStore,
			Resolver:  sideResolver,
			Logger:    log,
		})
	}

	detectionService := service.NewDetectionService(newEngine, log)
	detectionService.StartMonitoring()

	scheduleService := service.NewScheduleService(scheduleRepo)

	router := api.SetupRouter(cfg, log, api.Handlers{
		Signals:   handler.NewSignalHandler(detectionService, locationFeed, motionFeed),
		Detection: handler.NewDetectionHandler(detectionService),
		Schedules: handler.NewScheduleHandler(scheduleService),
	})

	server := &http.Server{Addr: cfg.Port, Handler: router}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Shutdown flushes in-flight detection state before the process exits
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	detectionService.StopMonitoring()
}
