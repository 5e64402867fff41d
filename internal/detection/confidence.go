package detection

import (
	"github.com/curbwatch/parking-backend-go/internal/models"
)

// EpisodeConfidence grades how strongly a connection episode suggests the
// device was in a car.
type EpisodeConfidence int

const (
	// EpisodeLow: generic Bluetooth that never reached driving speed.
	// Could be headphones; not worth validating.
	EpisodeLow EpisodeConfidence = iota
	// EpisodeMedium: generic Bluetooth, but driving speed was observed
	EpisodeMedium
	// EpisodeHigh: the OS explicitly identified a car (CarAudio/CarPlay)
	EpisodeHigh
)

// Detection confidence scores attached to emitted parking events.
// These grade signal-source reliability, not statistical probability.
const (
	// LiveDetectionConfidence applies when the disconnect was observed live
	LiveDetectionConfidence float32 = 0.9
	// RecoveryDetectionConfidence applies to the coarser visit-based
	// recovery path
	RecoveryDetectionConfidence float32 = 0.7
)

// GradeEpisode scores a finished connection episode from its method and
// the max windowed speed. Speed is only consulted for generic Bluetooth:
// car-identified connections are trusted even at 0 recorded speed, since
// GPS speed is unreliable indoors and in garages.
func GradeEpisode(method models.ConnectionMethod, maxSpeedMPS, drivingThresholdMPS float64) EpisodeConfidence {
	if method.IsCarIdentified() {
		return EpisodeHigh
	}
	if maxSpeedMPS >= drivingThresholdMPS {
		return EpisodeMedium
	}
	return EpisodeLow
}

// SideMatchConfidence scores a side resolution from the distance to the
// matched segment and whether the side name actually matched a candidate
// (as opposed to the nearest-candidate fallback). Distance decays the
// score linearly out to the half-street scale where a side call stops
// being trustworthy.
func SideMatchConfidence(distanceM float64, matched bool) float64 {
	const maxTrustedDistanceM = 30.0

	score := 1.0 - distanceM/maxTrustedDistanceM
	if score < 0 {
		score = 0
	}
	if !matched {
		score *= 0.5
	}
	return score
}
