package detection

import (
	"context"
	"time"

	"github.com/curbwatch/parking-backend-go/internal/models"
)

// LocationProvider supplies the device's current fix. Both getters return
// false when no sufficiently fresh fix exists; the engine treats that as a
// transient signal gap, never as an error.
type LocationProvider interface {
	CurrentSpeedMPS() (float64, bool)
	CurrentCoordinate() (models.Coordinate, bool)
}

// MotionActivityProvider is the push stream of activity classifications
// plus the historical query used by the visit-recovery path.
type MotionActivityProvider interface {
	// Available reports whether motion data can be obtained at all.
	Available() bool
	// Subscribe returns a stream of classifications and an unsubscribe
	// function. The stream is closed after unsubscribe.
	Subscribe() (<-chan models.MotionClassification, func())
	// ActivitiesBetween returns recorded classifications in [start, end].
	ActivitiesBetween(start, end time.Time) ([]models.MotionClassification, error)
}

// Geocoder resolves a coordinate to a human-readable address
type Geocoder interface {
	Reverse(ctx context.Context, c models.Coordinate) (string, error)
}

// ScheduleSource supplies aggregated sweeping-schedule candidates around
// a coordinate
type ScheduleSource interface {
	CandidatesNear(ctx context.Context, c models.Coordinate) ([]models.ScheduleCandidate, error)
}

// NotificationSink receives finalized parking events for user-facing
// delivery. Delivery failures must not block detection.
type NotificationSink interface {
	Notify(ctx context.Context, event models.ParkingConfirmed) error
}

// SnapshotStore is the durable blob store for in-flight detection state
type SnapshotStore interface {
	Load() (*models.PersistedDetectionSnapshot, error)
	Save(snapshot models.PersistedDetectionSnapshot) error
	Clear() error
}

// SideResolver matches a parked coordinate against nearby schedule
// candidates
type SideResolver interface {
	Resolve(c models.Coordinate, candidates []models.ScheduleCandidate) *models.SideResolution
}
