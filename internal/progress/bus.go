// Package progress is the in-process broadcast bus for pipeline status
// events. Publishing never blocks: each subscriber owns a bounded mailbox
// and events are dropped per-subscriber when a mailbox is full, so a slow
// observer can lose visibility but can never stall the pipeline.
package progress

import (
	"sync"
	"sync/atomic"
	"time"
)

// mailboxSize is the per-subscriber buffered channel capacity.
const mailboxSize = 256

// Event is one human-readable pipeline status notification.
type Event struct {
	Stage   string  `json:"stage"`
	Message string  `json:"message"`
	Detail  string  `json:"detail,omitempty"`
	Time    float64 `json:"time"` // unix seconds
}

type subscriber struct {
	ch      chan Event
	dropped atomic.Uint64
}

// Bus fans progress events out to all registered subscribers.
// Safe for concurrent Publish, Subscribe and Close.
type Bus struct {
	mu        sync.RWMutex
	subs      map[uint64]*subscriber
	nextID    uint64
	closed    bool
	published atomic.Uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]*subscriber)}
}

// Publish fans an event out to every registered subscriber without
// blocking. Events for subscribers with full mailboxes are dropped.
func (b *Bus) Publish(stage, message string) {
	b.publish(Event{Stage: stage, Message: message, Time: now()})
}

// PublishDetail is Publish with an extra detail payload.
func (b *Bus) PublishDetail(stage, message, detail string) {
	b.publish(Event{Stage: stage, Message: message, Detail: detail, Time: now()})
}

func (b *Bus) publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	b.published.Add(1)

	for _, sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			sub.dropped.Add(1)
		}
	}
}

// Subscription is one observer's live, order-preserving event stream.
type Subscription struct {
	id  uint64
	bus *Bus
	sub *subscriber
}

// Subscribe registers a new observer. The caller must call Close when done.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber{ch: make(chan Event, mailboxSize)}
	b.nextID++
	id := b.nextID

	if b.closed {
		// Closed bus: hand back an already-terminated stream.
		close(sub.ch)
		return &Subscription{id: id, bus: b, sub: sub}
	}

	b.subs[id] = sub
	return &Subscription{id: id, bus: b, sub: sub}
}

// Events returns the subscriber's event channel. It is closed when the
// subscription or the bus is closed.
func (s *Subscription) Events() <-chan Event {
	return s.sub.ch
}

// Dropped reports how many events were discarded for this subscriber
// because its mailbox was full.
func (s *Subscription) Dropped() uint64 {
	return s.sub.dropped.Load()
}

// Close deregisters the subscriber and closes its event channel.
// Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	if _, ok := s.bus.subs[s.id]; !ok {
		return
	}
	delete(s.bus.subs, s.id)
	close(s.sub.ch)
}

// Published reports the total number of events published on the bus.
func (b *Bus) Published() uint64 {
	return b.published.Load()
}

// Close shuts down the bus and terminates every subscription.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
}

func now() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
