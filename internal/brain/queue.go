// Package brain consumes friction events off the queue and turns each one
// into durable playbook knowledge: diagnose, curate, then enrich.
package brain

import (
	"context"
	"sync"

	"github.com/moglabs/lumina/internal/domain"
)

// Queue is an unbounded FIFO of friction events. Producers never block;
// the single consumer blocks in Dequeue until an event or cancellation
// arrives.
type Queue struct {
	mu    sync.Mutex
	items []domain.FrictionEvent
	wake  chan struct{}
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Enqueue appends an event. Never blocks.
func (q *Queue) Enqueue(event domain.FrictionEvent) {
	q.mu.Lock()
	q.items = append(q.items, event)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Dequeue removes and returns the oldest event, blocking until one is
// available or the context is cancelled.
func (q *Queue) Dequeue(ctx context.Context) (domain.FrictionEvent, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			event := q.items[0]
			q.items = q.items[1:]
			if len(q.items) > 0 {
				// Keep the wake signal armed for the next call.
				select {
				case q.wake <- struct{}{}:
				default:
				}
			}
			q.mu.Unlock()
			return event, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return domain.FrictionEvent{}, ctx.Err()
		case <-q.wake:
		}
	}
}

// Len reports how many events are waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
