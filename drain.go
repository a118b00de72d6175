package xdispatch

import (
	"context"
	"time"
)

// drainPollInterval caps each wait between drain checks.
const drainPollInterval = 100 * time.Millisecond

func (d *AsyncDispatcher) serviceStop(ctx context.Context) error {
	if d.drainEventsOnStop.Load() {
		d.blockNewEvents.Store(true)
		d.service.PutBlocker("drain", "draining events before stop")
		d.notify(Notice{Type: NoticeDrainStarted, QueueSize: d.queue.Size()})
		d.awaitDrained(ctx)
		d.service.RemoveBlocker("drain")
	}

	d.stopped.Store(true)
	if d.loopCancel != nil {
		d.loopCancel()
		<-d.loopDone
	}
	if p := d.pool.Load(); p != nil {
		p.ShutdownNow()
	}
	return nil
}

// awaitDrained waits until the consumer reports an empty queue, the consumer
// exits, the drain timeout passes or ctx is done, whichever comes first.
// Timing out is not an error: Stop proceeds and queued events are dropped.
// Waits run on the dispatcher clock's timers.
func (d *AsyncDispatcher) awaitDrained(ctx context.Context) {
	start := d.clock.Now()

	// After fail-fast the consumer exits once its current event is done.
	if d.stopped.Load() && d.loopAlive() {
		select {
		case <-d.loopDone:
		case <-ctx.Done():
		}
	}

	deadline := d.clock.NewTimer(d.drainTimeout)
	defer deadline.Stop()
	poll := d.clock.NewTicker(drainPollInterval)
	defer poll.Stop()

	for !d.drained.Load() && d.loopAlive() {
		select {
		case <-d.drainedCh:
		case <-d.loopDone:
		case <-poll.C():
			d.notify(Notice{Type: NoticeDrainWaiting, QueueSize: d.queue.Size()})
		case <-deadline.C():
			if !d.drained.Load() && d.loopAlive() {
				d.notify(Notice{Type: NoticeDrainTimeout, QueueSize: d.queue.Size(), Duration: d.drainTimeout})
				return
			}
		case <-ctx.Done():
			d.notify(Notice{Type: NoticeDrainTimeout, QueueSize: d.queue.Size(), Duration: d.clock.Since(start), Err: ctx.Err()})
			return
		}
	}

	if d.drained.Load() {
		d.notify(Notice{Type: NoticeDrained, Duration: d.clock.Since(start)})
	}
}

// loopAlive reports whether the consumer goroutine is running.
func (d *AsyncDispatcher) loopAlive() bool {
	if d.loopDone == nil {
		return false
	}
	select {
	case <-d.loopDone:
		return false
	default:
		return true
	}
}
