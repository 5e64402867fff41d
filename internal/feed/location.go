// Package feed holds the signal-fed collaborator implementations: the
// mobile client streams raw fixes and motion classifications over the
// API, and these feeds present them to the detection engine behind the
// provider interfaces.
package feed

import (
	"sync"
	"time"

	"github.com/curbwatch/parking-backend-go/internal/models"
)

// DefaultMaxFixAge is how old a fix may be and still count as current
const DefaultMaxFixAge = 30 * time.Second

// LocationFix is one reported device fix
type LocationFix struct {
	Coordinate models.Coordinate `json:"coordinate"`
	SpeedMPS   float64           `json:"speed_mps"`
	At         time.Time         `json:"at"`
}

// LocationFeed keeps the latest reported fix and serves it to the engine
// while it is fresh. A missing or expired fix reads as "no fix", which
// the engine treats as a transient signal gap.
type LocationFeed struct {
	mu        sync.RWMutex
	fix       *LocationFix
	maxFixAge time.Duration
	now       func() time.Time
}

// NewLocationFeed creates a location feed with the default freshness window
func NewLocationFeed() *LocationFeed {
	return &LocationFeed{maxFixAge: DefaultMaxFixAge, now: time.Now}
}

// Report records a new fix
func (f *LocationFeed) Report(fix LocationFix) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fix = &fix
}

// CurrentSpeedMPS returns the latest reported speed while the fix is fresh
func (f *LocationFeed) CurrentSpeedMPS() (float64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.fresh() {
		return 0, false
	}
	return f.fix.SpeedMPS, true
}

// CurrentCoordinate returns the latest reported coordinate while the fix
// is fresh
func (f *LocationFeed) CurrentCoordinate() (models.Coordinate, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.fresh() {
		return models.Coordinate{}, false
	}
	return f.fix.Coordinate, true
}

// fresh reports fix validity. Caller holds at least the read lock.
func (f *LocationFeed) fresh() bool {
	return f.fix != nil && f.now().Sub(f.fix.At) <= f.maxFixAge
}
