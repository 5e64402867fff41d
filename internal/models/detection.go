package models

import "time"

// DetectionState represents the current phase of the parking detection cycle
type DetectionState string

const (
	StateIdle      DetectionState = "IDLE"
	StateConnected DetectionState = "CONNECTED"
	StateDriving   DetectionState = "DRIVING"
	StateParked    DetectionState = "PARKED"
)

// ConnectionKind distinguishes connect from disconnect transitions
type ConnectionKind string

const (
	ConnectionConnect    ConnectionKind = "CONNECT"
	ConnectionDisconnect ConnectionKind = "DISCONNECT"
)

// ConnectionMethod is how the phone was attached to the vehicle.
// CarAudio and CarPlay mean the OS explicitly identified a car; generic
// Bluetooth could just as well be headphones.
type ConnectionMethod string

const (
	MethodCarAudio  ConnectionMethod = "CAR_AUDIO"
	MethodCarPlay   ConnectionMethod = "CARPLAY"
	MethodBluetooth ConnectionMethod = "BLUETOOTH"
)

// IsCarIdentified reports whether the OS positively identified a car,
// as opposed to an arbitrary Bluetooth audio device.
func (m ConnectionMethod) IsCarIdentified() bool {
	return m == MethodCarAudio || m == MethodCarPlay
}

// ConnectionEvent is an audio-route transition reported by the device.
// It is the source of truth for why a state transition fired.
type ConnectionEvent struct {
	Kind   ConnectionKind   `json:"kind"`
	Method ConnectionMethod `json:"method"`
	At     time.Time        `json:"at"`
}

// Coordinate is a WGS84 position
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// SpeedSample is one instantaneous GPS speed reading
type SpeedSample struct {
	SpeedMPS float64   `json:"speed_mps"`
	At       time.Time `json:"at"`
}

// MotionConfidence mirrors the platform's activity-classification confidence
type MotionConfidence string

const (
	MotionConfidenceLow    MotionConfidence = "LOW"
	MotionConfidenceMedium MotionConfidence = "MEDIUM"
	MotionConfidenceHigh   MotionConfidence = "HIGH"
)

// MotionClassification is one activity sample from the motion provider
type MotionClassification struct {
	Walking    bool             `json:"walking"`
	Confidence MotionConfidence `json:"confidence"`
	At         time.Time        `json:"at"`
}

// VisitEvent is the coarse OS-level "you stayed here a while" signal.
// Departure is nil while the visit is still open.
type VisitEvent struct {
	Coordinate Coordinate `json:"coordinate"`
	Arrival    time.Time  `json:"arrival"`
	Departure  *time.Time `json:"departure,omitempty"`
}

// HasDeparted reports whether the visit carries a concrete departure time
func (v VisitEvent) HasDeparted() bool {
	return v.Departure != nil && !v.Departure.IsZero()
}

// SnapshotSchemaVersion is bumped whenever PersistedDetectionSnapshot's
// wire layout changes; older blobs are discarded on read.
const SnapshotSchemaVersion uint32 = 1

// PersistedDetectionSnapshot is the durable record of an in-flight
// detection episode, written so a terminated process can recover it.
type PersistedDetectionSnapshot struct {
	WasConnected        bool             `json:"was_connected"`
	Method              ConnectionMethod `json:"method,omitempty"`
	MaxSpeedMPS         float64          `json:"max_speed_mps"`
	ConnectionStartedAt *time.Time       `json:"connection_started_at,omitempty"`
	LastKnownLocation   *Coordinate      `json:"last_known_location,omitempty"`
	SavedAt             time.Time        `json:"saved_at"`
	SchemaVersion       uint32           `json:"schema_version"`
}

// IsStale reports whether the snapshot is too old to validate a parking
// event. Stale snapshots must be discarded on read, never repaired.
func (s PersistedDetectionSnapshot) IsStale(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.SavedAt) > ttl
}

// WasDriving reports whether the recorded episode ever reached driving
// speed, judged against the configured threshold.
func (s PersistedDetectionSnapshot) WasDriving(thresholdMPS float64) bool {
	return s.MaxSpeedMPS >= thresholdMPS
}

// DetectedParkingLocation is a confirmed parking event. Immutable once
// created; the next detection cycle supersedes it rather than mutating it.
type DetectedParkingLocation struct {
	ID         string           `json:"id"`
	Coordinate Coordinate       `json:"coordinate"`
	Address    string           `json:"address,omitempty"`
	At         time.Time        `json:"at"`
	Confidence float32          `json:"confidence"`
	Method     ConnectionMethod `json:"method"`
}

// ParkingConfirmed is the event handed to consumers once detection and
// side resolution have run. Resolution is nil when no schedule matched;
// the event is still deliverable without it.
type ParkingConfirmed struct {
	Location   DetectedParkingLocation `json:"location"`
	Resolution *SideResolution         `json:"resolution,omitempty"`
}
