package xdispatch

import (
	"context"
	"math"
	"sync"

	"github.com/eapache/queue"
)

// Unbounded is the capacity of a queue that never blocks producers.
const Unbounded = 0

// eventQueue is a FIFO with blocking Put (when bounded and full) and blocking
// Take (when empty). It supports a single consumer and any number of producers.
type eventQueue struct {
	mu       sync.Mutex
	items    *queue.Queue
	capacity int

	notEmpty chan struct{}
	notFull  chan struct{}
}

func newEventQueue(capacity int) *eventQueue {
	if capacity < 0 {
		capacity = Unbounded
	}
	return &eventQueue{
		items:    queue.New(),
		capacity: capacity,
		notEmpty: make(chan struct{}, 1),
		notFull:  make(chan struct{}, 1),
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Put appends e, blocking while the queue is full. It fails with ctx.Err() if
// ctx is done before space frees up; a full-queue wait is the only point where
// ctx is observed.
func (q *eventQueue) Put(ctx context.Context, e Event) error {
	for {
		q.mu.Lock()
		if q.capacity == Unbounded || q.items.Length() < q.capacity {
			q.items.Add(e)
			spare := q.capacity == Unbounded || q.items.Length() < q.capacity
			q.mu.Unlock()
			signal(q.notEmpty)
			if spare {
				// pass the wakeup on to the next blocked producer
				signal(q.notFull)
			}
			return nil
		}
		q.mu.Unlock()

		select {
		case <-q.notFull:
		case <-ctx.Done():
			signal(q.notFull)
			return ctx.Err()
		}
	}
}

// Take removes the head, blocking while the queue is empty.
func (q *eventQueue) Take(ctx context.Context) (Event, error) {
	for {
		q.mu.Lock()
		if q.items.Length() > 0 {
			e := q.items.Remove().(Event)
			q.mu.Unlock()
			signal(q.notFull)
			return e, nil
		}
		q.mu.Unlock()

		select {
		case <-q.notEmpty:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (q *eventQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}

func (q *eventQueue) IsEmpty() bool { return q.Size() == 0 }

// RemainingCapacity reports free slots; an unbounded queue reports math.MaxInt32.
func (q *eventQueue) RemainingCapacity() int {
	if q.capacity == Unbounded {
		return math.MaxInt32
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.capacity - q.items.Length()
}

// CountByType tallies queued events per qualified type name.
func (q *eventQueue) CountByType() map[string]int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	counts := make(map[string]int64)
	for i := 0; i < q.items.Length(); i++ {
		counts[qualifiedTypeName(q.items.Get(i).(Event))]++
	}
	return counts
}
