package engine

import (
	"sync"

	"github.com/roach88/flowgrid/internal/game"
	"github.com/roach88/flowgrid/internal/view"
)

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventTypeEdit applies an edit to the game.
	EventTypeEdit EventType = iota + 1
	// EventTypeView runs a read-only callback against the game.
	EventTypeView
	// EventTypeSave rewrites the save document.
	EventTypeSave
)

func (t EventType) String() string {
	switch t {
	case EventTypeEdit:
		return "edit"
	case EventTypeView:
		return "view"
	case EventTypeSave:
		return "save"
	default:
		return "unknown"
	}
}

// Event is one request for the Run loop. Reply receives exactly one value
// once the event has been processed.
type Event struct {
	Type  EventType
	Edit  game.Edit
	View  func(*view.View) error
	Reply chan error
}

// eventQueue is a thread-safe unbounded FIFO queue.
//
// Submitters enqueue from any goroutine while the Run loop dequeues. The
// signal channel lets the loop wait on the queue and a context together.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // buffered, size 1
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front event without blocking.
// Returns (Event{}, false) if the queue is empty.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]
	// release the callback and reply channel for GC
	q.events[0] = Event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available. It is
// closed by Close.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close rejects further events and wakes any waiter. Events already queued
// can still be dequeued.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

// Closed reports whether Close has been called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Drain removes every queued event. Used on shutdown to answer waiters.
func (q *eventQueue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.events
	q.events = nil
	return out
}
