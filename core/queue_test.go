package orchestration

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestEventQueueDequeuesInFIFOOrder(t *testing.T) {
	q := NewEventQueue[int]()
	for i := range 5 {
		if q.Enqueue(i) == nil {
			t.Fatalf("expected enqueue %d to be accepted", i)
		}
	}

	for i := range 5 {
		event, err := q.Dequeue(context.Background())
		if err != nil {
			t.Fatalf("expected dequeue to succeed, got %v", err)
		}
		if event.Payload() != i {
			t.Fatalf("expected payload %d, got %d", i, event.Payload())
		}
	}
}

func TestEventQueueDequeueBlocksUntilEnqueue(t *testing.T) {
	q := NewEventQueue[string]()

	result := make(chan string, 1)
	go func() {
		event, err := q.Dequeue(context.Background())
		if err != nil {
			result <- "error: " + err.Error()
			return
		}
		result <- event.Payload()
	}()

	select {
	case got := <-result:
		t.Fatalf("expected dequeue to block on empty queue, got %q", got)
	case <-time.After(50 * time.Millisecond):
	}

	q.Enqueue("hello")
	select {
	case got := <-result:
		if got != "hello" {
			t.Fatalf("expected payload hello, got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("expected dequeue to return after enqueue")
	}
}

func TestEventQueueDequeueHonorsContextCancellation(t *testing.T) {
	q := NewEventQueue[int]()
	ctx, cancel := context.WithCancel(context.Background())

	errs := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(ctx)
		errs <- err
	}()

	cancel()
	select {
	case err := <-errs:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("expected dequeue to return after context cancellation")
	}
}

func TestEventQueueCloseDrainsBeforeReportingClosed(t *testing.T) {
	q := NewEventQueue[int]()
	q.Enqueue(1)
	q.Enqueue(2)
	q.Close()

	if q.Enqueue(3) != nil {
		t.Fatal("expected enqueue after close to be rejected")
	}

	for _, want := range []int{1, 2} {
		event, err := q.Dequeue(context.Background())
		if err != nil {
			t.Fatalf("expected pending event after close, got %v", err)
		}
		if event.Payload() != want {
			t.Fatalf("expected payload %d, got %d", want, event.Payload())
		}
	}

	if _, err := q.Dequeue(context.Background()); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
	if _, err := q.Dequeue(context.Background()); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed on repeated dequeue, got %v", err)
	}
}

func TestEventQueueCloseUnblocksWaitingDequeue(t *testing.T) {
	q := NewEventQueue[int]()

	errs := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(context.Background())
		errs <- err
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()
	q.Close() // idempotent

	select {
	case err := <-errs:
		if !errors.Is(err, ErrQueueClosed) {
			t.Fatalf("expected ErrQueueClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("expected dequeue to return after close")
	}
}

func TestEventQueueSkipsCancelledEvents(t *testing.T) {
	q := NewEventQueue[int]()
	q.Enqueue(1).MarkCancelled()
	q.Enqueue(2)

	if got := q.Len(); got != 1 {
		t.Fatalf("expected length 1 after cancellation, got %d", got)
	}

	event, err := q.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("expected dequeue to succeed, got %v", err)
	}
	if event.Payload() != 2 {
		t.Fatalf("expected cancelled event to be skipped, got payload %d", event.Payload())
	}
}

func TestEventQueueAnyMatchesPendingEvents(t *testing.T) {
	q := NewEventQueue[int]()
	if q.Any(func(int) bool { return true }) {
		t.Fatal("expected no match on an empty queue")
	}

	q.Enqueue(1).MarkCancelled()
	q.Enqueue(2)
	if q.Any(func(v int) bool { return v == 1 }) {
		t.Fatal("expected cancelled events to be ignored")
	}
	if !q.Any(func(v int) bool { return v == 2 }) {
		t.Fatal("expected pending event to match")
	}
}

func TestInterruptibleMarkInterruptedIsOneWay(t *testing.T) {
	event := NewInterruptible("payload")
	if event.IsInterrupted() {
		t.Fatal("expected fresh event to not be interrupted")
	}
	if !event.MarkInterrupted() {
		t.Fatal("expected first mark to flip the flag")
	}
	if event.MarkInterrupted() {
		t.Fatal("expected second mark to report already flipped")
	}
	if !event.IsInterrupted() {
		t.Fatal("expected event to stay interrupted")
	}
}
