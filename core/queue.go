package orchestration

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// ErrQueueClosed is returned by Dequeue once the queue is closed and drained.
var ErrQueueClosed = errors.New("event queue closed")

// Interruptible wraps a payload with cooperative interruption flags. Marking
// is one-way; an event never becomes uninterrupted again.
type Interruptible[T any] struct {
	id          string
	payload     T
	interrupted atomic.Bool
	cancelled   atomic.Bool
}

func NewInterruptible[T any](payload T) *Interruptible[T] {
	return &Interruptible[T]{id: uuid.NewString(), payload: payload}
}

func (e *Interruptible[T]) ID() string { return e.id }
func (e *Interruptible[T]) Payload() T { return e.payload }

// MarkInterrupted requests that processing stop at the next safe boundary.
// Reports whether this call was the one that flipped the flag.
func (e *Interruptible[T]) MarkInterrupted() bool {
	return e.interrupted.CompareAndSwap(false, true)
}

func (e *Interruptible[T]) IsInterrupted() bool { return e.interrupted.Load() }

// MarkCancelled flags an event that was discarded before processing began.
func (e *Interruptible[T]) MarkCancelled() bool {
	return e.cancelled.CompareAndSwap(false, true)
}

func (e *Interruptible[T]) IsCancelled() bool { return e.cancelled.Load() }

// EventQueue is an unbounded FIFO with a blocking Dequeue. Enqueued payloads
// are wrapped in Interruptible envelopes so producers can interrupt work that
// is already in flight or not yet started.
type EventQueue[T any] struct {
	mu     sync.Mutex
	items  []*Interruptible[T]
	closed bool

	signal chan struct{}
}

func NewEventQueue[T any]() *EventQueue[T] {
	return &EventQueue[T]{signal: make(chan struct{}, 1)}
}

// Enqueue appends the payload and returns its envelope, or nil if the queue
// is already closed.
func (q *EventQueue[T]) Enqueue(payload T) *Interruptible[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}

	event := NewInterruptible(payload)
	q.items = append(q.items, event)
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return event
}

// Dequeue blocks until an event is available, the context is done, or the
// queue is closed and drained. Cancelled events are skipped.
func (q *EventQueue[T]) Dequeue(ctx context.Context) (*Interruptible[T], error) {
	for {
		q.mu.Lock()
		for len(q.items) > 0 {
			event := q.items[0]
			q.items = q.items[1:]
			if event.IsCancelled() {
				continue
			}
			if len(q.items) > 0 {
				select {
				case q.signal <- struct{}{}:
				default:
				}
			}
			q.mu.Unlock()
			return event, nil
		}
		if q.closed {
			select {
			case q.signal <- struct{}{}:
			default:
			}
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.signal:
		}
	}
}

// Any reports whether any pending event satisfies the predicate. Cancelled
// events are not considered.
func (q *EventQueue[T]) Any(predicate func(T) bool) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, event := range q.items {
		if !event.IsCancelled() && predicate(event.payload) {
			return true
		}
	}
	return false
}

func (q *EventQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, event := range q.items {
		if !event.IsCancelled() {
			n++
		}
	}
	return n
}

// Close stops accepting new events. Pending events remain dequeueable;
// subsequent Dequeue calls on an empty queue return ErrQueueClosed.
func (q *EventQueue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
