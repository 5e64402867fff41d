package detection

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/curbwatch/parking-backend-go/internal/models"
)

// ErrMotionUnavailable means the motion capability cannot be queried at all
var ErrMotionUnavailable = errors.New("motion activity data unavailable")

// Config holds the detection tunables. Defaults match the shipped app.
type Config struct {
	SpeedWindowDuration    time.Duration // trailing window for max speed
	SampleInterval         time.Duration // speed polling period while connected
	DrivingThresholdMPS    float64       // min windowed speed counting as driving
	ReconnectGrace         time.Duration // disconnect->connect window treated as noise
	ValidationTimeout      time.Duration // max wait for a walking classification
	BackgroundBudget       time.Duration // hard bound on one validation pipeline
	SnapshotTTL            time.Duration // snapshot staleness horizon
	RecoveryMaxAge         time.Duration // max episode age for visit recovery
	RecoveryMotionLookback time.Duration // historical motion window before departure
}

// DefaultConfig returns the production detection tunables
func DefaultConfig() Config {
	return Config{
		SpeedWindowDuration:    600 * time.Second,
		SampleInterval:         5 * time.Second,
		DrivingThresholdMPS:    6.7056, // 15 mph
		ReconnectGrace:         30 * time.Second,
		ValidationTimeout:      20 * time.Second,
		BackgroundBudget:       60 * time.Second,
		SnapshotTTL:            2 * time.Hour,
		RecoveryMaxAge:         time.Hour,
		RecoveryMotionLookback: 60 * time.Second,
	}
}

// Dependencies are the collaborator interfaces the engine is composed
// with. All are required except Geocoder, ScheduleSource, Resolver and
// Sink, whose absence only disables enrichment.
type Dependencies struct {
	Location  LocationProvider
	Motion    MotionActivityProvider
	Geocoder  Geocoder
	Schedules ScheduleSource
	Sink      NotificationSink
	Snapshots SnapshotStore
	Resolver  SideResolver
	Clock     Clock
	Logger    zerolog.Logger
}

// Engine is the parking detection state machine. It is the single owner
// of detection state: every external signal is posted onto one mailbox
// and handled by one goroutine, so transitions are atomic with respect
// to each other regardless of how producers interleave.
type Engine struct {
	cfg       Config
	clock     Clock
	location  LocationProvider
	validator *MotionValidator
	geocoder  Geocoder
	schedules ScheduleSource
	sink      NotificationSink
	snapshots SnapshotStore
	resolver  SideResolver
	log       zerolog.Logger
	bus       *eventBus

	mailbox chan message
	stopped chan struct{}

	// observable mirrors, written only by the run loop
	obsMu  sync.RWMutex
	state  models.DetectionState
	latest *models.DetectedParkingLocation

	// loop-owned episode state
	method       models.ConnectionMethod
	connectedAt  time.Time
	disconnectAt time.Time
	window       *SpeedWindow
	lastSavedMax float64
	tickStop     chan struct{}
	run          *validationRun
	recovery     *models.PersistedDetectionSnapshot

	// episodeSeq advances on every connection so commits from pipelines
	// launched before the episode started can be told apart and dropped.
	episodeSeq uint64
}

type message interface{ isMessage() }

type connectionMsg struct{ event models.ConnectionEvent }
type visitMsg struct{ event models.VisitEvent }
type tickMsg struct{ at time.Time }
type abortMsg struct{ run *validationRun }
type detectedMsg struct {
	run      *validationRun
	recovery bool
	seq      uint64 // episode sequence a recovery commit belongs to
	event    models.ParkingConfirmed
}
type stopMsg struct{ flush chan struct{} }

func (connectionMsg) isMessage() {}
func (visitMsg) isMessage()      {}
func (tickMsg) isMessage()       {}
func (abortMsg) isMessage()      {}
func (detectedMsg) isMessage()   {}
func (stopMsg) isMessage()       {}

// validationRun is one disconnect-triggered validation pipeline. The
// context is the background-execution scope: it bounds the whole
// pipeline and is released on every exit path.
type validationRun struct {
	id           string
	method       models.ConnectionMethod
	disconnectAt time.Time
	session      *ValidationSession
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewEngine constructs a detection engine. Call Start to begin
// consuming signals.
func NewEngine(cfg Config, deps Dependencies) *Engine {
	clock := deps.Clock
	if clock == nil {
		clock = SystemClock()
	}

	e := &Engine{
		cfg:       cfg,
		clock:     clock,
		location:  deps.Location,
		validator: NewMotionValidator(deps.Motion, clock),
		geocoder:  deps.Geocoder,
		schedules: deps.Schedules,
		sink:      deps.Sink,
		snapshots: deps.Snapshots,
		resolver:  deps.Resolver,
		log:       deps.Logger.With().Str("component", "detection_engine").Logger(),
		bus:       newEventBus(),
		mailbox:   make(chan message, 64),
		stopped:   make(chan struct{}),
		state:     models.StateIdle,
		window:    NewSpeedWindow(cfg.SpeedWindowDuration),
	}
	return e
}

// Start loads any persisted snapshot, arms visit recovery when the
// snapshot shows an interrupted driving episode, and begins handling
// signals.
func (e *Engine) Start() {
	e.restoreSnapshot()
	go e.runLoop()
}

// Stop flushes current state to the snapshot store, cancels any
// in-flight validation and shuts the engine down. Blocks until the loop
// has exited.
func (e *Engine) Stop() {
	flush := make(chan struct{})
	select {
	case e.mailbox <- stopMsg{flush: flush}:
		<-flush
	case <-e.stopped:
	}
}

// CurrentState returns the machine's current state
func (e *Engine) CurrentState() models.DetectionState {
	e.obsMu.RLock()
	defer e.obsMu.RUnlock()
	return e.state
}

// LatestParking returns the most recent confirmed parking location, or
// nil if none has been detected since startup.
func (e *Engine) LatestParking() *models.DetectedParkingLocation {
	e.obsMu.RLock()
	defer e.obsMu.RUnlock()
	return e.latest
}

// Subscribe returns a stream of confirmed parking events and an
// unsubscribe function.
func (e *Engine) Subscribe() (<-chan models.ParkingConfirmed, func()) {
	return e.bus.subscribe()
}

// OnConnectionEvent feeds an audio-route transition into the machine
func (e *Engine) OnConnectionEvent(event models.ConnectionEvent) {
	e.post(connectionMsg{event: event})
}

// OnVisit feeds a coarse visit event into the machine
func (e *Engine) OnVisit(event models.VisitEvent) {
	e.post(visitMsg{event: event})
}

func (e *Engine) post(m message) {
	select {
	case e.mailbox <- m:
	case <-e.stopped:
	}
}

func (e *Engine) runLoop() {
	defer close(e.stopped)

	for m := range e.mailbox {
		switch msg := m.(type) {
		case connectionMsg:
			switch msg.event.Kind {
			case models.ConnectionConnect:
				e.handleConnect(msg.event)
			case models.ConnectionDisconnect:
				e.handleDisconnect(msg.event)
			}
		case tickMsg:
			e.handleTick(msg.at)
		case visitMsg:
			e.handleVisit(msg.event)
		case abortMsg:
			e.handleAbort(msg.run)
		case detectedMsg:
			e.handleDetected(msg)
		case stopMsg:
			e.shutdown()
			close(msg.flush)
			return
		}
	}
}

func (e *Engine) setState(s models.DetectionState) {
	e.obsMu.Lock()
	prev := e.state
	e.state = s
	e.obsMu.Unlock()
	if prev != s {
		e.log.Info().Str("from", string(prev)).Str("to", string(s)).Msg("state transition")
	}
}

// --- connection handling ---

func (e *Engine) handleConnect(event models.ConnectionEvent) {
	now := e.clock.Now()
	state := e.CurrentState()

	// A reconnect inside the grace period voids the pending disconnect:
	// the stale validation is canceled and the episode continues as if
	// the route never changed.
	if e.run != nil && now.Sub(e.disconnectAt) <= e.cfg.ReconnectGrace {
		e.log.Info().
			Dur("since_disconnect", now.Sub(e.disconnectAt)).
			Msg("reconnect within grace period, treating disconnect as noise")
		e.cancelRun()
		e.episodeSeq++
		if event.Method.IsCarIdentified() {
			e.method = event.Method
		}
		e.setState(models.StateConnected)
		e.startTicking()
		if err := e.snapshots.Clear(); err != nil {
			e.log.Warn().Err(err).Msg("failed to clear snapshot")
		}
		e.saveSnapshot()
		return
	}

	if state == models.StateConnected || state == models.StateDriving {
		// Already in an episode; a more trustworthy route upgrades the
		// recorded method, anything else is a duplicate.
		if event.Method.IsCarIdentified() && !e.method.IsCarIdentified() {
			e.method = event.Method
			e.saveSnapshot()
		}
		return
	}

	// A fresh connection supersedes any armed recovery and any pipeline
	// still in flight from a previous episode, including a visit-recovery
	// commit that has not landed yet.
	e.cancelRun()
	e.recovery = nil
	e.episodeSeq++

	e.method = event.Method
	e.connectedAt = event.At
	e.window.Reset()
	e.lastSavedMax = 0
	e.setState(models.StateConnected)
	e.startTicking()
	e.saveSnapshot()

	e.log.Info().Str("method", string(event.Method)).Msg("connection episode started")
}

func (e *Engine) handleDisconnect(event models.ConnectionEvent) {
	state := e.CurrentState()
	if state != models.StateConnected && state != models.StateDriving {
		return
	}

	// The state only leaves Connected/Driving once the pending pipeline
	// commits, so a duplicate disconnect would otherwise start a second
	// validation for the same episode.
	if e.run != nil {
		return
	}

	e.stopTicking()
	e.disconnectAt = event.At

	maxSpeed := e.window.MaxInWindow(e.clock.Now())
	grade := GradeEpisode(e.method, maxSpeed, e.cfg.DrivingThresholdMPS)

	if grade == EpisodeLow {
		// Generic Bluetooth that never reached driving speed: likely
		// headphones. No validation, no event.
		e.log.Info().Float64("max_speed_mps", maxSpeed).Msg("low-confidence episode abandoned")
		e.setState(models.StateIdle)
		e.window.Reset()
		if err := e.snapshots.Clear(); err != nil {
			e.log.Warn().Err(err).Msg("failed to clear snapshot")
		}
		return
	}

	e.beginValidation(event)
}

// beginValidation launches the disconnect validation pipeline: wait for
// a walking classification (or time out, which is accepted), hold the
// candidate until the reconnect grace period has fully elapsed, then
// enrich and commit.
func (e *Engine) beginValidation(event models.ConnectionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.BackgroundBudget)
	run := &validationRun{
		id:           uuid.NewString(),
		method:       e.method,
		disconnectAt: event.At,
		session:      e.validator.Begin(e.cfg.ValidationTimeout),
		ctx:          ctx,
		cancel:       cancel,
	}
	e.run = run

	go func() {
		defer run.cancel()

		outcome := <-run.session.Result()
		if outcome == OutcomeCanceled {
			return
		}
		// A timeout is an accepted outcome: parking proceeds without
		// walking confirmation rather than being rejected.

		// Hold until the grace deadline so a reconnect can never trail
		// an already-published event.
		graceDeadline := run.disconnectAt.Add(e.cfg.ReconnectGrace)
		if wait := graceDeadline.Sub(e.clock.Now()); wait > 0 {
			select {
			case <-e.clock.After(wait):
			case <-run.ctx.Done():
				return
			}
		}

		coord, ok := e.location.CurrentCoordinate()
		if !ok {
			e.post(abortMsg{run: run})
			return
		}

		location := models.DetectedParkingLocation{
			ID:         uuid.NewString(),
			Coordinate: coord,
			At:         e.clock.Now(),
			Confidence: LiveDetectionConfidence,
			Method:     run.method,
		}
		event := e.enrich(run.ctx, location)
		e.post(detectedMsg{run: run, event: event})
	}()
}

// enrich attaches the reverse-geocoded address and the side-of-street
// resolution. Both are best effort: failures degrade to empty fields,
// never to a dropped event.
func (e *Engine) enrich(ctx context.Context, location models.DetectedParkingLocation) models.ParkingConfirmed {
	if e.geocoder != nil {
		if address, err := e.geocoder.Reverse(ctx, location.Coordinate); err == nil {
			location.Address = address
		} else {
			e.log.Warn().Err(err).Msg("reverse geocoding failed")
		}
	}

	var resolution *models.SideResolution
	if e.schedules != nil && e.resolver != nil {
		candidates, err := e.schedules.CandidatesNear(ctx, location.Coordinate)
		if err != nil {
			e.log.Warn().Err(err).Msg("schedule lookup failed")
		} else {
			resolution = e.resolver.Resolve(location.Coordinate, candidates)
		}
	}

	return models.ParkingConfirmed{Location: location, Resolution: resolution}
}

func (e *Engine) handleAbort(run *validationRun) {
	if e.run != run {
		return
	}
	e.run = nil

	// No location fix: the live episode cannot be confirmed. The
	// snapshot is kept so a later visit event can still recover it.
	e.log.Warn().Msg("no location fix after validation, abandoning live detection")
	e.setState(models.StateIdle)
	e.window.Reset()
	if snap, err := e.snapshots.Load(); err == nil && snap != nil {
		e.recovery = snap
	}
}

func (e *Engine) handleDetected(msg detectedMsg) {
	if msg.recovery {
		// A connection that arrived while the recovery pipeline was in
		// flight owns the state machine now; the stale commit is dropped.
		if msg.seq != e.episodeSeq {
			e.log.Info().Msg("discarding recovery commit from a superseded episode")
			return
		}
	} else {
		if e.run != msg.run {
			return
		}
		e.run = nil
	}

	e.obsMu.Lock()
	e.state = models.StateParked
	loc := msg.event.Location
	e.latest = &loc
	e.obsMu.Unlock()

	e.window.Reset()
	if err := e.snapshots.Clear(); err != nil {
		e.log.Warn().Err(err).Msg("failed to clear snapshot")
	}

	e.log.Info().
		Str("id", msg.event.Location.ID).
		Float64("lat", msg.event.Location.Coordinate.Lat).
		Float64("lon", msg.event.Location.Coordinate.Lon).
		Float32("confidence", msg.event.Location.Confidence).
		Bool("side_resolved", msg.event.Resolution != nil).
		Msg("parking confirmed")

	e.bus.publish(msg.event)
	if e.sink != nil {
		go func(event models.ParkingConfirmed) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := e.sink.Notify(ctx, event); err != nil {
				e.log.Warn().Err(err).Msg("notification delivery failed")
			}
		}(msg.event)
	}
}

func (e *Engine) cancelRun() {
	if e.run == nil {
		return
	}
	e.run.session.Cancel()
	e.run.cancel()
	e.run = nil
}

// --- speed sampling ---

func (e *Engine) startTicking() {
	if e.tickStop != nil {
		return
	}
	stop := make(chan struct{})
	e.tickStop = stop
	ticker := e.clock.NewTicker(e.cfg.SampleInterval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case at := <-ticker.C():
				e.post(tickMsg{at: at})
			case <-stop:
				return
			}
		}
	}()
}

func (e *Engine) stopTicking() {
	if e.tickStop == nil {
		return
	}
	close(e.tickStop)
	e.tickStop = nil
}

func (e *Engine) handleTick(at time.Time) {
	state := e.CurrentState()
	if state != models.StateConnected && state != models.StateDriving {
		return
	}

	if speed, ok := e.location.CurrentSpeedMPS(); ok {
		e.window.AddSample(speed, at)
	}

	maxSpeed := e.window.MaxInWindow(at)
	if state == models.StateConnected && maxSpeed >= e.cfg.DrivingThresholdMPS {
		e.setState(models.StateDriving)
		e.saveSnapshot()
		return
	}

	// Persist growing speed evidence so a terminated process can still
	// judge was_driving, without rewriting the snapshot every tick.
	if maxSpeed-e.lastSavedMax >= 0.5 {
		e.saveSnapshot()
	}
}

// --- visit recovery ---

// handleVisit is the terminated-app recovery path: the live disconnect
// was missed, so a coarse visit with a concrete departure stands in for
// it, validated against historical motion activity.
func (e *Engine) handleVisit(event models.VisitEvent) {
	snap := e.recovery
	if snap == nil {
		return
	}

	now := e.clock.Now()
	if snap.IsStale(now, e.cfg.SnapshotTTL) {
		e.log.Info().Msg("recovery snapshot went stale, discarding")
		e.discardRecovery()
		return
	}
	if !snap.WasDriving(e.cfg.DrivingThresholdMPS) {
		e.discardRecovery()
		return
	}
	if snap.ConnectionStartedAt == nil || now.Sub(*snap.ConnectionStartedAt) >= e.cfg.RecoveryMaxAge {
		e.log.Info().Msg("recovery episode too old, discarding")
		e.discardRecovery()
		return
	}
	if !event.HasDeparted() {
		// Visit still open; keep the snapshot armed for the closing event.
		return
	}

	// The episode resolves now either way, so the snapshot is consumed
	// before the outcome is known.
	method := snap.Method
	if method == "" {
		method = models.MethodBluetooth
	}
	e.discardRecovery()

	departure := *event.Departure
	lookbackStart := departure.Add(-e.cfg.RecoveryMotionLookback)
	seq := e.episodeSeq

	go func() {
		walked, err := e.validator.WalkedBetween(lookbackStart, departure)
		if err == nil && !walked {
			e.log.Info().Msg("no walking in recovery window, discarding visit candidate")
			return
		}
		if err != nil {
			e.log.Warn().Err(err).Msg("motion history unavailable, saving recovery candidate anyway")
		}

		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.BackgroundBudget)
		defer cancel()

		location := models.DetectedParkingLocation{
			ID:         uuid.NewString(),
			Coordinate: event.Coordinate,
			At:         departure,
			Confidence: RecoveryDetectionConfidence,
			Method:     method,
		}
		e.post(detectedMsg{recovery: true, seq: seq, event: e.enrich(ctx, location)})
	}()
}

func (e *Engine) discardRecovery() {
	e.recovery = nil
	if err := e.snapshots.Clear(); err != nil {
		e.log.Warn().Err(err).Msg("failed to clear snapshot")
	}
}

// --- persistence ---

// restoreSnapshot reads the persisted episode once at startup. A stale
// or unreadable snapshot is discarded outright, never repaired.
func (e *Engine) restoreSnapshot() {
	snap, err := e.snapshots.Load()
	if err != nil {
		e.log.Warn().Err(err).Msg("discarding unreadable snapshot")
		if clearErr := e.snapshots.Clear(); clearErr != nil {
			e.log.Warn().Err(clearErr).Msg("failed to clear snapshot")
		}
		return
	}
	if snap == nil {
		return
	}
	if snap.IsStale(e.clock.Now(), e.cfg.SnapshotTTL) {
		e.log.Info().Time("saved_at", snap.SavedAt).Msg("discarding stale snapshot")
		if err := e.snapshots.Clear(); err != nil {
			e.log.Warn().Err(err).Msg("failed to clear snapshot")
		}
		return
	}
	if !snap.WasDriving(e.cfg.DrivingThresholdMPS) {
		// The live audio-route signal is gone and the episode never
		// reached driving speed; nothing to recover.
		if err := e.snapshots.Clear(); err != nil {
			e.log.Warn().Err(err).Msg("failed to clear snapshot")
		}
		return
	}

	e.recovery = snap
	e.log.Info().
		Float64("max_speed_mps", snap.MaxSpeedMPS).
		Time("saved_at", snap.SavedAt).
		Msg("armed visit-based recovery from persisted episode")
}

// saveSnapshot persists the current episode. Always called after the
// transition it describes, so a crash mid-write cannot resurrect a state
// the machine never reached.
func (e *Engine) saveSnapshot() {
	now := e.clock.Now()
	connectedAt := e.connectedAt
	snap := models.PersistedDetectionSnapshot{
		WasConnected:        true,
		Method:              e.method,
		MaxSpeedMPS:         e.window.MaxInWindow(now),
		ConnectionStartedAt: &connectedAt,
		SavedAt:             now,
		SchemaVersion:       models.SnapshotSchemaVersion,
	}
	if coord, ok := e.location.CurrentCoordinate(); ok {
		snap.LastKnownLocation = &coord
	}
	e.lastSavedMax = snap.MaxSpeedMPS

	if err := e.snapshots.Save(snap); err != nil {
		e.log.Warn().Err(err).Msg("failed to persist detection snapshot")
	}
}

// --- shutdown ---

func (e *Engine) shutdown() {
	e.stopTicking()
	e.cancelRun()

	state := e.CurrentState()
	if state == models.StateConnected || state == models.StateDriving {
		e.saveSnapshot()
	}

	e.bus.close()
	e.log.Info().Msg("detection engine stopped")
}
