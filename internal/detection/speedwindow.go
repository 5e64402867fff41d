package detection

import (
	"sync"
	"time"

	"github.com/curbwatch/parking-backend-go/internal/models"
)

// SpeedWindow tracks the maximum GPS speed over a trailing duration.
// Samples older than the window are pruned on insert and on read, so the
// reported max never reflects stale readings.
type SpeedWindow struct {
	mu       sync.Mutex
	duration time.Duration
	samples  []models.SpeedSample
}

// NewSpeedWindow creates a speed window with the given trailing duration
func NewSpeedWindow(duration time.Duration) *SpeedWindow {
	return &SpeedWindow{duration: duration}
}

// AddSample records one speed reading. Negative speeds (the platform's
// "unknown" sentinel) are ignored.
func (w *SpeedWindow) AddSample(speedMPS float64, at time.Time) {
	if speedMPS < 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(at)
	w.samples = append(w.samples, models.SpeedSample{SpeedMPS: speedMPS, At: at})
}

// MaxInWindow returns the maximum speed among samples newer than
// now minus the window duration, or 0 if none remain.
func (w *SpeedWindow) MaxInWindow(now time.Time) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(now)

	var max float64
	for _, s := range w.samples {
		if s.SpeedMPS > max {
			max = s.SpeedMPS
		}
	}
	return max
}

// Reset discards all samples
func (w *SpeedWindow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples = w.samples[:0]
}

// prune drops samples older than the window. Caller holds the lock.
func (w *SpeedWindow) prune(now time.Time) {
	cutoff := now.Add(-w.duration)
	keep := w.samples[:0]
	for _, s := range w.samples {
		if !s.At.Before(cutoff) {
			keep = append(keep, s)
		}
	}
	w.samples = keep
}
