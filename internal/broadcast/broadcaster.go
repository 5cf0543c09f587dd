// Package broadcast pushes newly triaged CRITICAL and HIGH requests to
// live dispatch streams.
package broadcast

import (
	"sync"
	"sync/atomic"

	"github.com/mr1hm/go-relief-triage/internal/models"
)

// subscriberBuffer bounds how far a subscriber may lag before requests
// are dropped for it.
const subscriberBuffer = 100

// Broadcaster fans triaged requests out to live subscribers such as the
// dispatch stream.
type Broadcaster struct {
	subscribers map[uint64]chan *models.Request
	nextID      atomic.Uint64
	dropped     atomic.Uint64
	closed      bool
	mu          sync.RWMutex
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[uint64]chan *models.Request),
	}
}

// Subscribe registers a new subscriber. After Close the returned channel
// is already closed.
func (b *Broadcaster) Subscribe() (uint64, <-chan *models.Request) {
	id := b.nextID.Add(1)
	ch := make(chan *models.Request, subscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return id, ch
	}
	b.subscribers[id] = ch

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

func (b *Broadcaster) Broadcast(r *models.Request) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- r:
		default:
			// Skip slow subscribers
			b.dropped.Add(1)
		}
	}
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Dropped counts deliveries skipped because a subscriber's buffer was full.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes all subscriber channels, causing streams to exit gracefully
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
