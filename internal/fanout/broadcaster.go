package fanout

import (
	"sync"
	"sync/atomic"

	"github.com/geowatch/disaster-watch/internal/models"
)

// Broadcaster is the on-create trigger: the orchestrator publishes
// every newly persisted event, subscribers (the fan-out engine, the
// debug endpoint) receive it.
type Broadcaster struct {
	subscribers map[uint64]chan *models.DisasterEvent
	nextID      atomic.Uint64
	mu          sync.RWMutex
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[uint64]chan *models.DisasterEvent),
	}
}

func (b *Broadcaster) Subscribe() (uint64, chan *models.DisasterEvent) {
	id := b.nextID.Add(1)
	ch := make(chan *models.DisasterEvent, 256) // headroom for one full ingestion cycle

	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()

	return id, ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Broadcaster) Broadcast(e *models.DisasterEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- e:
		default:
			// Skip slow subscribers
		}
	}
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes all subscriber channels, letting consumers drain and exit.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
