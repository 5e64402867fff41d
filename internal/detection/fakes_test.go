package detection

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/curbwatch/parking-backend-go/internal/models"
)

// fakeClock drives engine timers deterministically. After channels and
// tickers fire when Advance moves the clock past their deadlines.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []clockWaiter
	tickers []*fakeTicker
}

type clockWaiter struct {
	at time.Time
	ch chan time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.now
		return ch
	}
	c.waiters = append(c.waiters, clockWaiter{at: c.now.Add(d), ch: ch})
	return ch
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTicker{ch: make(chan time.Time, 16), interval: d, next: c.now.Add(d)}
	c.tickers = append(c.tickers, t)
	return t
}

// Advance moves the clock forward and fires every timer whose deadline
// has passed.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)

	kept := c.waiters[:0]
	for _, w := range c.waiters {
		if w.at.After(c.now) {
			kept = append(kept, w)
			continue
		}
		w.ch <- c.now
	}
	c.waiters = kept

	for _, t := range c.tickers {
		for !t.next.After(c.now) {
			if !t.stopped.Load() {
				select {
				case t.ch <- t.next:
				default:
				}
			}
			t.next = t.next.Add(t.interval)
		}
	}
}

// step advances the clock in one-second increments, yielding between
// steps so timers registered mid-advance still fire.
func (c *fakeClock) step(total time.Duration) {
	for elapsed := time.Duration(0); elapsed < total; elapsed += time.Second {
		c.Advance(time.Second)
		time.Sleep(2 * time.Millisecond)
	}
}

type fakeTicker struct {
	ch       chan time.Time
	interval time.Duration
	next     time.Time
	stopped  atomic.Bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               { t.stopped.Store(true) }

// fakeLocation is a settable LocationProvider
type fakeLocation struct {
	mu      sync.Mutex
	speed   float64
	speedOK bool
	coord   models.Coordinate
	coordOK bool
}

func (l *fakeLocation) setSpeed(mps float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.speed = mps
	l.speedOK = true
}

func (l *fakeLocation) setCoordinate(c models.Coordinate) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.coord = c
	l.coordOK = true
}

func (l *fakeLocation) clearCoordinate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.coordOK = false
}

func (l *fakeLocation) CurrentSpeedMPS() (float64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.speed, l.speedOK
}

func (l *fakeLocation) CurrentCoordinate() (models.Coordinate, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.coord, l.coordOK
}

// fakeMotion is a scriptable MotionActivityProvider
type fakeMotion struct {
	mu        sync.Mutex
	available bool
	nextID    int
	subs      map[int]chan models.MotionClassification
	history   []models.MotionClassification
	histErr   error
}

func newFakeMotion(available bool) *fakeMotion {
	return &fakeMotion{available: available, subs: make(map[int]chan models.MotionClassification)}
}

func (m *fakeMotion) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

func (m *fakeMotion) Subscribe() (<-chan models.MotionClassification, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan models.MotionClassification, 8)
	m.subs[id] = ch

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if sub, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(sub)
		}
	}
}

func (m *fakeMotion) ActivitiesBetween(start, end time.Time) ([]models.MotionClassification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.histErr != nil {
		return nil, m.histErr
	}
	var out []models.MotionClassification
	for _, a := range m.history {
		if !a.At.Before(start) && !a.At.After(end) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *fakeMotion) emit(c models.MotionClassification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

func (m *fakeMotion) subscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// memSnapshots is an in-memory SnapshotStore
type memSnapshots struct {
	mu      sync.Mutex
	snap    *models.PersistedDetectionSnapshot
	loadErr error
}

func (s *memSnapshots) Load() (*models.PersistedDetectionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.snap == nil {
		return nil, nil
	}
	cp := *s.snap
	return &cp, nil
}

func (s *memSnapshots) Save(snap models.PersistedDetectionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := snap
	s.snap = &cp
	return nil
}

func (s *memSnapshots) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = nil
	return nil
}

func (s *memSnapshots) current() *models.PersistedDetectionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap == nil {
		return nil
	}
	cp := *s.snap
	return &cp
}

// captureSink records delivered parking events
type captureSink struct {
	mu     sync.Mutex
	events []models.ParkingConfirmed
}

func (s *captureSink) Notify(_ context.Context, event models.ParkingConfirmed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// slowGeocoder answers after a fixed real-time delay, standing in for a
// network lookup that outlives surrounding signal activity.
type slowGeocoder struct {
	delay   time.Duration
	address string
}

func (g *slowGeocoder) Reverse(ctx context.Context, _ models.Coordinate) (string, error) {
	select {
	case <-time.After(g.delay):
		return g.address, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// stubSchedules returns a fixed candidate list
type stubSchedules struct {
	candidates []models.ScheduleCandidate
}

func (s *stubSchedules) CandidatesNear(context.Context, models.Coordinate) ([]models.ScheduleCandidate, error) {
	return s.candidates, nil
}

// stubResolver returns a fixed resolution
type stubResolver struct {
	resolution *models.SideResolution
}

func (r *stubResolver) Resolve(models.Coordinate, []models.ScheduleCandidate) *models.SideResolution {
	return r.resolution
}
