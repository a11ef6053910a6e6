package events

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

const DefaultBufferSize = 100

type subscriber struct {
	ch       chan Event
	reliable bool
}

// Broadcaster fans events out to subscribers. Best-effort subscribers miss
// events while their buffer is full; reliable ones make Publish wait.
type Broadcaster struct {
	subscribers map[uint64]subscriber
	nextID      atomic.Uint64
	bufferSize  int
	dropped     prometheus.Counter
	mu          sync.RWMutex
}

// NewBroadcaster creates a broadcaster. dropped may be nil.
func NewBroadcaster(bufferSize int, dropped prometheus.Counter) *Broadcaster {
	if bufferSize < 1 {
		bufferSize = DefaultBufferSize
	}
	return &Broadcaster{
		subscribers: make(map[uint64]subscriber),
		bufferSize:  bufferSize,
		dropped:     dropped,
	}
}

func (b *Broadcaster) Subscribe() (uint64, <-chan Event) {
	return b.subscribe(false)
}

// SubscribeReliable registers a subscriber that never misses an event while
// the publisher's context is alive.
func (b *Broadcaster) SubscribeReliable() (uint64, <-chan Event) {
	return b.subscribe(true)
}

func (b *Broadcaster) subscribe(reliable bool) (uint64, <-chan Event) {
	id := b.nextID.Add(1)
	ch := make(chan Event, b.bufferSize)

	b.mu.Lock()
	b.subscribers[id] = subscriber{ch: ch, reliable: reliable}
	b.mu.Unlock()

	return id, ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	if sub, ok := b.subscribers[id]; ok {
		close(sub.ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Broadcaster) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if sub.reliable {
			select {
			case sub.ch <- e:
			case <-ctx.Done():
				b.drop()
			}
			continue
		}
		select {
		case sub.ch <- e:
		default:
			// Skip slow subscribers
			b.drop()
		}
	}
}

func (b *Broadcaster) drop() {
	if b.dropped != nil {
		b.dropped.Inc()
	}
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes all subscriber channels so consumers drain and exit.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, id)
	}
}
