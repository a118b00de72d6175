package xdispatch

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"

	"github.com/trickstertwo/xdispatch/config"
)

const (
	// queueSizeLogInterval is the queue size step between size notices.
	queueSizeLogInterval = 1000
	// lowCapacityThreshold triggers a low-capacity notice when remaining
	// capacity drops below it.
	lowCapacityThreshold = 1000
)

// AsyncDispatcher owns a single FIFO queue drained by one consumer goroutine.
// Producers enqueue through EventHandler(); the consumer looks up the route for
// each event's Category and invokes it.
type AsyncDispatcher struct {
	id         string
	name       string
	service    *Service
	logger     *xlog.Logger
	clock      xclock.Clock
	conf       config.Source
	queue      *eventQueue
	registry   *registry
	handle     Handler
	terminator Terminator

	metricsMu sync.RWMutex
	metrics   map[Category]EventTypeMetrics

	observersMu sync.RWMutex
	observers   []Observer

	detailsInterval  atomic.Int64
	drainTimeout     time.Duration
	maxDetailWorkers int
	pool             atomic.Pointer[detailPool]

	exitOnDispatchError atomic.Bool
	drainEventsOnStop   atomic.Bool
	stopped             atomic.Bool
	blockNewEvents      atomic.Bool
	// drained may be set true by the consumer right before an in-flight
	// enqueue lands. A draining stop then waits one extra poll at most.
	drained   atomic.Bool
	drainedCh chan struct{}

	printTrigger               atomic.Bool
	lastQueueSizeLogged        atomic.Int64
	lastDetailsQueueSizeLogged atomic.Int64

	loopCancel context.CancelFunc
	loopDone   chan struct{}

	stats dispatcherStats
}

// dispatcherStats uses lock-free atomics for hot-path telemetry.
type dispatcherStats struct {
	enqueued     atomic.Uint64
	discarded    atomic.Uint64
	dispatched   atomic.Uint64
	errors       atomic.Uint64
	processingNs atomic.Int64
}

func defaultTerminator() {
	os.Exit(1)
}

// Name returns the dispatcher name.
func (d *AsyncDispatcher) Name() string { return d.name }

// ID returns the unique id of this dispatcher instance.
func (d *AsyncDispatcher) ID() string { return d.id }

// Service exposes the lifecycle state machine (blockers, listeners, failure cause).
func (d *AsyncDispatcher) Service() *Service { return d.service }

func (d *AsyncDispatcher) State() State { return d.service.State() }

func (d *AsyncDispatcher) Init(ctx context.Context) error { return d.service.Init(ctx) }

func (d *AsyncDispatcher) Start(ctx context.Context) error { return d.service.Start(ctx) }

// Stop stops intake, drains when SetDrainEventsOnStop was called, and joins
// the consumer goroutine. Concurrent callers wait for the first Stop to finish.
// A handler stopping its own dispatcher must pass its handler ctx, which is
// cancelled when the consumer is told to exit.
func (d *AsyncDispatcher) Stop(ctx context.Context) error { return d.service.Stop(ctx) }

func (d *AsyncDispatcher) Close() error { return d.service.Close() }

// WaitForServiceToStop blocks until Stop completes or timeout elapses.
func (d *AsyncDispatcher) WaitForServiceToStop(timeout time.Duration) bool {
	return d.service.WaitForServiceToStop(timeout)
}

// SetDrainEventsOnStop makes Stop wait for queued events before terminating.
func (d *AsyncDispatcher) SetDrainEventsOnStop() { d.drainEventsOnStop.Store(true) }

// DisableExitOnDispatchError keeps the process alive on dispatch errors; the
// consumer logs the error and moves on to the next event.
func (d *AsyncDispatcher) DisableExitOnDispatchError() { d.exitOnDispatchError.Store(false) }

// EventHandler returns the stable producer-side handle.
func (d *AsyncDispatcher) EventHandler() Handler { return d.handle }

// QueueSize returns the number of queued, not yet dispatched events.
func (d *AsyncDispatcher) QueueSize() int { return d.queue.Size() }

// IsDrained reports whether the consumer last observed an empty queue.
func (d *AsyncDispatcher) IsDrained() bool { return d.drained.Load() }

// IsStopped reports whether the consumer has been told to stop.
func (d *AsyncDispatcher) IsStopped() bool { return d.stopped.Load() }

// Register adds h for category c. Safe before and after Start.
func (d *AsyncDispatcher) Register(c Category, h Handler) {
	if h == nil {
		d.logger.Warn().Err(ErrNilHandler).Str("category", string(c)).Msg("xdispatch: ignoring registration")
		return
	}
	d.registry.register(c, h)
	d.notify(Notice{Type: NoticeRegistered, Category: c, Handler: fmt.Sprintf("%T", h), Listeners: d.registry.count(c)})
}

// Categories returns the categories that have at least one handler.
func (d *AsyncDispatcher) Categories() []Category { return d.registry.categories() }

// AddMetrics attaches the metrics collaborator for category c, replacing any previous one.
func (d *AsyncDispatcher) AddMetrics(c Category, m EventTypeMetrics) {
	d.metricsMu.Lock()
	if m == nil {
		delete(d.metrics, c)
	} else {
		d.metrics[c] = m
	}
	d.metricsMu.Unlock()
}

func (d *AsyncDispatcher) metricsFor(c Category) EventTypeMetrics {
	d.metricsMu.RLock()
	m := d.metrics[c]
	d.metricsMu.RUnlock()
	return m
}

// AddObserver registers an observer (thread-safe).
func (d *AsyncDispatcher) AddObserver(obs Observer) {
	if obs == nil {
		return
	}
	d.observersMu.Lock()
	d.observers = append(d.observers, obs)
	d.observersMu.Unlock()
}

func (d *AsyncDispatcher) notify(n Notice) {
	n.Dispatcher = d.name
	d.observersMu.RLock()
	obs := make([]Observer, len(d.observers))
	copy(obs, d.observers)
	d.observersMu.RUnlock()
	for _, o := range obs {
		d.deliverNotice(o, n)
	}
}

func (d *AsyncDispatcher) deliverNotice(o Observer, n Notice) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn().Str("notice", string(n.Type)).Str("panic", fmt.Sprint(r)).Msg("observer panicked")
		}
	}()
	o.OnNotice(n)
}

func (d *AsyncDispatcher) serviceInit(context.Context) error {
	interval := d.conf.GetInt(config.PrintEventsInfoThreshold, config.DefaultPrintEventsInfoThreshold)
	if interval <= 0 {
		interval = config.DefaultPrintEventsInfoThreshold
	}
	d.detailsInterval.Store(int64(interval))

	timeoutMs := d.conf.GetInt64(config.DrainEventsTimeout, config.DefaultDrainEventsTimeout)
	if timeoutMs < 0 {
		timeoutMs = config.DefaultDrainEventsTimeout
	}
	d.drainTimeout = time.Duration(timeoutMs) * time.Millisecond

	d.pool.Store(newDetailPool(d.maxDetailWorkers, defaultDetailBuffer, defaultDetailKeepAlive))
	return nil
}

// serviceStart launches the consumer. Its context outlives the Start call and
// is cancelled only by Stop.
func (d *AsyncDispatcher) serviceStart(context.Context) error {
	ctx, cancel := context.WithCancel(consumerContext(d.logger, d.clock))
	d.loopCancel = cancel
	d.loopDone = make(chan struct{})
	go d.run(ctx)
	return nil
}

func (d *AsyncDispatcher) run(ctx context.Context) {
	defer close(d.loopDone)
	defer func() { d.drained.Store(d.queue.IsEmpty()) }()

	for !d.stopped.Load() && ctx.Err() == nil {
		drained := d.queue.IsEmpty()
		d.drained.Store(drained)
		// blockNewEvents is only set while draining to stop.
		if drained && d.blockNewEvents.Load() {
			signal(d.drainedCh)
		}

		e, err := d.queue.Take(ctx)
		if err != nil {
			if !d.stopped.Load() {
				d.notify(Notice{Type: NoticeInterrupted, Err: err})
			}
			return
		}

		if m := d.metricsFor(categoryOf(e)); m != nil {
			start := d.clock.Now()
			d.dispatch(ctx, e)
			d.increment(m, e, d.clock.Since(start).Microseconds())
		} else {
			d.dispatch(ctx, e)
		}

		if d.printTrigger.CompareAndSwap(true, false) {
			d.notify(Notice{Type: NoticeLatestDispatch, Category: categoryOf(e), EventType: typeName(e)})
		}
	}
}

// dispatch delivers one event. Failures never reach the consumer loop; they go
// through the escalation policy. Panics raised by middlewares are recovered
// here, outside the route chain.
func (d *AsyncDispatcher) dispatch(ctx context.Context, e Event) {
	d.logger.Debug().Str("event", qualifiedTypeName(e)).Msg("dispatching event")

	c := categoryOf(e)
	start := d.clock.Now()

	var err error
	if rt, ok := d.registry.lookup(c); ok {
		err = handleRecovered(injectCategory(ctx, c), rt.chain, e)
	} else {
		err = fmt.Errorf("%w %q", ErrNoHandler, c)
	}

	d.stats.dispatched.Add(1)
	d.recordProcessingTime(d.clock.Since(start).Nanoseconds())

	if err != nil {
		d.onDispatchError(c, e, err)
	}
}

// increment records one dispatch on m. A panicking collaborator is logged and
// otherwise ignored.
func (d *AsyncDispatcher) increment(m EventTypeMetrics, e Event, us int64) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn().
				Str("category", string(categoryOf(e))).
				Str("type", typeName(e)).
				Str("panic", fmt.Sprint(r)).
				Msg("metrics increment failed")
		}
	}()
	m.Increment(e.Type(), us)
}

// onDispatchError applies fail-fast: the first fatal error while running sets
// stopped and starts exactly one termination task.
func (d *AsyncDispatcher) onDispatchError(c Category, e Event, err error) {
	d.stats.errors.Add(1)
	d.notify(Notice{Type: NoticeDispatchError, Category: c, EventType: typeName(e), Err: err})

	if !d.exitOnDispatchError.Load() {
		return
	}
	if !d.stopped.CompareAndSwap(false, true) {
		return
	}
	d.service.PutBlocker("dispatch", err.Error())
	go func() {
		d.notify(Notice{Type: NoticeExiting, Err: err})
		d.terminator()
	}()
}

// recordProcessingTime keeps an exponential moving average of dispatch time.
func (d *AsyncDispatcher) recordProcessingTime(ns int64) {
	const alpha = 0.2
	current := d.stats.processingNs.Load()
	if current == 0 {
		d.stats.processingNs.Store(ns)
		return
	}
	d.stats.processingNs.Store(int64(float64(ns)*alpha + float64(current)*(1-alpha)))
}
