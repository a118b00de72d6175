package xdispatch

import (
	"context"
	"errors"
	"fmt"
)

// ErrNilEvent is returned when a nil event is handed to the producer side.
var ErrNilEvent = errors.New("xdispatch: event must not be nil")

// enqueueHandler is the producer-side handle returned by EventHandler.
type enqueueHandler struct {
	d *AsyncDispatcher
}

// Handle enqueues e. Once a draining stop has begun it discards e silently.
// ctx only matters when a bounded queue is full; cancelling it while waiting
// fails with ErrEnqueueInterrupted and e is not delivered.
func (h enqueueHandler) Handle(ctx context.Context, e Event) error {
	return h.d.enqueue(ctx, e)
}

func (d *AsyncDispatcher) enqueue(ctx context.Context, e Event) error {
	if e == nil {
		return ErrNilEvent
	}
	if d.blockNewEvents.Load() {
		d.stats.discarded.Add(1)
		return nil
	}
	d.drained.Store(false)

	qSize := d.queue.Size()
	if qSize != 0 && qSize%queueSizeLogInterval == 0 &&
		d.lastQueueSizeLogged.Swap(int64(qSize)) != int64(qSize) {
		d.notify(Notice{Type: NoticeQueueSize, QueueSize: qSize})
	}

	interval := d.detailsInterval.Load()
	if qSize != 0 && interval > 0 && int64(qSize)%interval == 0 &&
		d.lastDetailsQueueSizeLogged.Swap(int64(qSize)) != int64(qSize) {
		if p := d.pool.Load(); p != nil {
			_ = p.Submit(d.printEventQueueDetails)
		}
		d.printTrigger.Store(true)
	}

	if rem := d.queue.RemainingCapacity(); rem < lowCapacityThreshold {
		d.notify(Notice{Type: NoticeLowCapacity, QueueSize: qSize, Remaining: rem})
	}

	if err := d.queue.Put(ctx, e); err != nil {
		if !d.stopped.Load() {
			d.notify(Notice{Type: NoticeInterrupted, Err: err})
		}
		// Without this a draining stop would wait for an event that never arrived.
		d.drained.Store(d.queue.IsEmpty())
		return fmt.Errorf("%w: %w", ErrEnqueueInterrupted, err)
	}
	d.stats.enqueued.Add(1)
	return nil
}

// printEventQueueDetails counts what is queued right now, per event type.
func (d *AsyncDispatcher) printEventQueueDetails() {
	counts := d.queue.CountByType()
	d.notify(Notice{Type: NoticeQueueDetails, QueueSize: d.queue.Size(), Counts: counts})
}
