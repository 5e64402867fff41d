package service

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/curbwatch/parking-backend-go/internal/detection"
	"github.com/curbwatch/parking-backend-go/internal/models"
)

// ErrNotMonitoring is returned when a signal arrives while detection is
// stopped
var ErrNotMonitoring = errors.New("detection monitoring is not active")

// DetectionService owns the detection engine's lifecycle and mirrors its
// observable state for the API. One engine instance exists per
// monitoring session; the latest confirmed event outlives the session.
type DetectionService struct {
	newEngine func() *detection.Engine
	log       zerolog.Logger

	mu     sync.Mutex
	engine *detection.Engine
	unsub  func()
	latest *models.ParkingConfirmed
}

// NewDetectionService creates a detection service. newEngine builds a
// fresh engine per monitoring session, so stopped sessions leave no
// goroutines behind.
func NewDetectionService(newEngine func() *detection.Engine, logger zerolog.Logger) *DetectionService {
	return &DetectionService{
		newEngine: newEngine,
		log:       logger.With().Str("component", "detection_service").Logger(),
	}
}

// StartMonitoring starts a detection session. Idempotent.
func (s *DetectionService) StartMonitoring() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine != nil {
		return
	}

	engine := s.newEngine()
	events, unsub := engine.Subscribe()
	engine.Start()

	s.engine = engine
	s.unsub = unsub

	go func() {
		for event := range events {
			s.mu.Lock()
			e := event
			s.latest = &e
			s.mu.Unlock()
		}
	}()

	s.log.Info().Msg("monitoring started")
}

// StopMonitoring stops the current session, flushing engine state.
// Idempotent.
func (s *DetectionService) StopMonitoring() {
	s.mu.Lock()
	engine := s.engine
	unsub := s.unsub
	s.engine = nil
	s.unsub = nil
	s.mu.Unlock()

	if engine == nil {
		return
	}
	unsub()
	engine.Stop()
	s.log.Info().Msg("monitoring stopped")
}

// Monitoring reports whether a session is active
func (s *DetectionService) Monitoring() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine != nil
}

// State returns the engine's current state, or Idle when stopped
func (s *DetectionService) State() models.DetectionState {
	s.mu.Lock()
	engine := s.engine
	s.mu.Unlock()

	if engine == nil {
		return models.StateIdle
	}
	return engine.CurrentState()
}

// Latest returns the most recent confirmed parking event, surviving
// session restarts. Nil when nothing has been detected yet.
func (s *DetectionService) Latest() *models.ParkingConfirmed {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// HandleConnection feeds an audio-route transition into the running
// session
func (s *DetectionService) HandleConnection(event models.ConnectionEvent) error {
	s.mu.Lock()
	engine := s.engine
	s.mu.Unlock()

	if engine == nil {
		return ErrNotMonitoring
	}
	engine.OnConnectionEvent(event)
	return nil
}

// HandleVisit feeds a visit event into the running session
func (s *DetectionService) HandleVisit(event models.VisitEvent) error {
	s.mu.Lock()
	engine := s.engine
	s.mu.Unlock()

	if engine == nil {
		return ErrNotMonitoring
	}
	engine.OnVisit(event)
	return nil
}
