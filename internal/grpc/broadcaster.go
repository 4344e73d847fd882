package grpc

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mr1hm/ocean-sentinel/internal/models"
)

// subscriberBuffer bounds the alerts queued per subscriber, enough for one
// monitor sweep over a large catalog.
const subscriberBuffer = 100

// AlertFilter selects the detections a subscriber receives. The zero value
// matches everything.
type AlertFilter struct {
	LocationID string
	MinRisk    models.RiskLevel
}

func (f AlertFilter) Matches(d *models.Detection) bool {
	if f.LocationID != "" && d.LocationID != f.LocationID {
		return false
	}
	return d.RiskLevel.Rank() >= f.MinRisk.Rank()
}

type subscriber struct {
	ch      chan *models.Detection
	filter  AlertFilter
	dropped atomic.Uint64
}

// Broadcaster fans detections out to alert streams. Delivery never blocks the
// publisher: a subscriber whose queue is full misses the alert.
type Broadcaster struct {
	subscribers map[uint64]*subscriber
	nextID      atomic.Uint64
	mu          sync.RWMutex
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[uint64]*subscriber),
	}
}

func (b *Broadcaster) Subscribe(filter AlertFilter) (uint64, <-chan *models.Detection) {
	id := b.nextID.Add(1)
	sub := &subscriber{
		ch:     make(chan *models.Detection, subscriberBuffer),
		filter: filter,
	}

	b.mu.Lock()
	b.subscribers[id] = sub
	b.mu.Unlock()

	return id, sub.ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	sub, ok := b.subscribers[id]
	if ok {
		close(sub.ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()

	if ok {
		if n := sub.dropped.Load(); n > 0 {
			slog.Warn("alert subscriber missed alerts", "subscriber_id", id, "dropped", n)
		}
	}
}

func (b *Broadcaster) Broadcast(d *models.Detection) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if !sub.filter.Matches(d) {
			continue
		}
		select {
		case sub.ch <- d:
		default:
			sub.dropped.Add(1)
		}
	}
}

// Dropped is the number of alerts subscriber id missed because its queue was
// full.
func (b *Broadcaster) Dropped(id uint64) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if sub, ok := b.subscribers[id]; ok {
		return sub.dropped.Load()
	}
	return 0
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes all subscriber channels, causing streams to exit gracefully
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, id)
	}
}
