// Package queue implements the in-memory event queue that sits between
// producers and the batch sender.
//
// The queue is an ordered, append-only-until-drained buffer. It has no
// capacity bound: if the sender is perpetually busy or failing the queue
// grows without limit. That is an accepted risk for a lightweight
// collector; Monitor reports the depth so operators can see it happen.
package queue

import (
	"sync"

	"github.com/jdziat/pagetrack-go/pkg/event"
)

// Queue is a FIFO buffer of pending events. It is safe for concurrent use;
// Enqueue and Drain are mutually exclusive.
type Queue struct {
	mu      sync.Mutex
	events  []event.Event
	monitor *Monitor

	enqueued uint64
	drained  uint64
}

// New creates an empty queue. monitor may be nil.
func New(monitor *Monitor) *Queue {
	return &Queue{monitor: monitor}
}

// Enqueue appends e to the tail of the queue.
func (q *Queue) Enqueue(e event.Event) {
	q.mu.Lock()
	q.events = append(q.events, e)
	q.enqueued++
	depth := len(q.events)
	q.mu.Unlock()

	if q.monitor != nil {
		q.monitor.Update(depth)
	}
}

// Drain removes and returns up to max events from the head of the queue,
// leaving the remainder in order. It returns nil when the queue is empty
// or max is not positive.
func (q *Queue) Drain(max int) []event.Event {
	if max <= 0 {
		return nil
	}

	q.mu.Lock()
	n := len(q.events)
	if n == 0 {
		q.mu.Unlock()
		return nil
	}
	if n > max {
		n = max
	}

	out := make([]event.Event, n)
	copy(out, q.events[:n])

	// Shift the remainder down so the backing array does not pin drained
	// events and their payloads.
	rest := copy(q.events, q.events[n:])
	clear(q.events[rest:])
	q.events = q.events[:rest]
	q.drained += uint64(n)
	depth := rest
	q.mu.Unlock()

	if q.monitor != nil {
		q.monitor.Update(depth)
	}
	return out
}

// IsEmpty reports whether no events are pending.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

// Len returns the number of pending events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Stats contains queue counters.
type Stats struct {
	Depth    int
	Enqueued uint64
	Drained  uint64
}

// Stats returns a point-in-time snapshot of the queue counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Depth:    len(q.events),
		Enqueued: q.enqueued,
		Drained:  q.drained,
	}
}

// Monitor returns the queue's depth monitor, or nil.
func (q *Queue) Monitor() *Monitor {
	return q.monitor
}
