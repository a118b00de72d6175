package xdispatch

import (
	"context"
	"sync/atomic"
	"time"
)

const (
	defaultDetailWorkers   = 5
	defaultDetailBuffer    = 64
	defaultDetailKeepAlive = 10 * time.Second
)

// PoolStats returns telemetry about the detail pool.
type PoolStats struct {
	Dropped   uint64 // tasks refused because the buffer was full
	Processed uint64 // tasks run to completion
	Discarded uint64 // tasks thrown away by ShutdownNow
	Pending   int    // tasks waiting for a worker
	Workers   int    // live worker goroutines
}

// detailPool runs queue-detail dumps off the producer path. It keeps one core
// worker and grows to maxWorkers while tasks are waiting; extra workers retire
// after keepAlive of idleness. Submit never blocks.
type detailPool struct {
	tasks      chan func()
	maxWorkers int32
	keepAlive  time.Duration
	ctx        context.Context
	cancel     context.CancelFunc
	closed     atomic.Bool
	active     atomic.Int32
	dropped    atomic.Uint64
	processed  atomic.Uint64
	discarded  atomic.Uint64
}

func newDetailPool(maxWorkers, bufferSize int, keepAlive time.Duration) *detailPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if maxWorkers > defaultDetailWorkers {
		maxWorkers = defaultDetailWorkers
	}
	if bufferSize < 1 {
		bufferSize = defaultDetailBuffer
	}
	if keepAlive <= 0 {
		keepAlive = defaultDetailKeepAlive
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &detailPool{
		tasks:      make(chan func(), bufferSize),
		maxWorkers: int32(maxWorkers),
		keepAlive:  keepAlive,
		ctx:        ctx,
		cancel:     cancel,
	}
	p.active.Store(1)
	go p.worker(true)
	return p
}

// Submit queues task for asynchronous execution.
func (p *detailPool) Submit(task func()) error {
	if task == nil {
		return nil
	}
	if p.closed.Load() {
		return ErrPoolShutdown
	}
	select {
	case p.tasks <- task:
	default:
		p.dropped.Add(1)
		return nil
	}
	if len(p.tasks) > 0 {
		p.grow()
	}
	return nil
}

func (p *detailPool) grow() {
	for {
		n := p.active.Load()
		if n >= p.maxWorkers {
			return
		}
		if p.active.CompareAndSwap(n, n+1) {
			go p.worker(false)
			return
		}
	}
}

func (p *detailPool) worker(core bool) {
	defer p.active.Add(-1)

	idle := time.NewTimer(p.keepAlive)
	defer idle.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case task := <-p.tasks:
			if p.ctx.Err() != nil {
				p.discarded.Add(1)
				return
			}
			p.run(task)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(p.keepAlive)
		case <-idle.C:
			if !core {
				return
			}
			idle.Reset(p.keepAlive)
		}
	}
}

// run tolerates task panics so a bad dump cannot kill the worker.
func (p *detailPool) run(task func()) {
	defer func() {
		_ = recover()
	}()
	task()
	p.processed.Add(1)
}

// ShutdownNow stops the pool without running pending tasks and returns how
// many were discarded. Tasks already running are left to finish.
func (p *detailPool) ShutdownNow() int {
	if p.closed.Swap(true) {
		return 0
	}
	p.cancel()

	n := 0
	for {
		select {
		case <-p.tasks:
			n++
		default:
			p.discarded.Add(uint64(n))
			return n
		}
	}
}

func (p *detailPool) Stats() PoolStats {
	return PoolStats{
		Dropped:   p.dropped.Load(),
		Processed: p.processed.Load(),
		Discarded: p.discarded.Load(),
		Pending:   len(p.tasks),
		Workers:   int(p.active.Load()),
	}
}
