package feed

import (
	"sync"
	"time"

	"github.com/curbwatch/parking-backend-go/internal/models"
)

// historyCapacity bounds the classification ring buffer. At the
// platform's reporting cadence this covers well over the 60 second
// recovery lookback.
const historyCapacity = 512

// MotionFeed fans reported activity classifications out to live
// subscribers and keeps a bounded history for the visit-recovery path's
// trailing-window query. The feed reads as unavailable until the client
// reports its first classification (or explicitly marks the capability
// unavailable), mirroring a device that denied motion permissions.
type MotionFeed struct {
	mu          sync.Mutex
	available   bool
	history     []models.MotionClassification
	subscribers map[int]chan models.MotionClassification
	nextID      int
}

// NewMotionFeed creates an empty motion feed
func NewMotionFeed() *MotionFeed {
	return &MotionFeed{subscribers: make(map[int]chan models.MotionClassification)}
}

// Report records a classification, marks the capability available and
// pushes the sample to live subscribers. Slow subscribers are skipped.
func (f *MotionFeed) Report(c models.MotionClassification) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.available = true
	f.history = append(f.history, c)
	if len(f.history) > historyCapacity {
		f.history = f.history[len(f.history)-historyCapacity:]
	}

	for _, ch := range f.subscribers {
		select {
		case ch <- c:
		default:
		}
	}
}

// SetAvailable forces the capability flag, used when the client reports
// that motion permissions were revoked.
func (f *MotionFeed) SetAvailable(available bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.available = available
}

// Available reports whether motion data can be obtained
func (f *MotionFeed) Available() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.available
}

// Subscribe returns a live classification stream and its unsubscribe
// function
func (f *MotionFeed) Subscribe() (<-chan models.MotionClassification, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	ch := make(chan models.MotionClassification, 16)
	f.subscribers[id] = ch

	return ch, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if c, ok := f.subscribers[id]; ok {
			delete(f.subscribers, id)
			close(c)
		}
	}
}

// ActivitiesBetween returns recorded classifications in [start, end]
func (f *MotionFeed) ActivitiesBetween(start, end time.Time) ([]models.MotionClassification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.MotionClassification
	for _, c := range f.history {
		if !c.At.Before(start) && !c.At.After(end) {
			out = append(out, c)
		}
	}
	return out, nil
}
