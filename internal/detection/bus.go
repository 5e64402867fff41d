package detection

import (
	"sync"

	"github.com/curbwatch/parking-backend-go/internal/models"
)

// eventBus fans confirmed parking events out to subscribers over typed
// channels. Slow subscribers are skipped rather than blocking the engine;
// each subscriber channel is buffered to absorb normal lag.
type eventBus struct {
	mu   sync.Mutex
	subs map[int]chan models.ParkingConfirmed
	next int
}

func newEventBus() *eventBus {
	return &eventBus{subs: make(map[int]chan models.ParkingConfirmed)}
}

// subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function.
func (b *eventBus) subscribe() (<-chan models.ParkingConfirmed, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan models.ParkingConfirmed, 8)
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
}

func (b *eventBus) publish(event models.ParkingConfirmed) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (b *eventBus) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
