package xdispatch

import (
	"errors"

	"github.com/google/uuid"
	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"

	"github.com/trickstertwo/xdispatch/config"
)

// ErrInvalidCapacity is returned by Build for a negative queue capacity.
var ErrInvalidCapacity = errors.New("xdispatch: queue capacity must be >= 0")

// DispatcherBuilder constructs AsyncDispatcher instances (Builder pattern).
type DispatcherBuilder struct {
	name                string
	logger              *xlog.Logger
	clock               xclock.Clock
	conf                config.Source
	capacity            int
	drainEventsOnStop   bool
	exitOnDispatchError bool
	terminator          Terminator
	middlewares         []Middleware
	observers           []Observer
	maxDetailWorkers    int
	metrics             map[Category]EventTypeMetrics
}

// NewDispatcherBuilder returns a builder with production defaults: unbounded
// queue, exit on dispatch error, no drain on stop.
func NewDispatcherBuilder() *DispatcherBuilder {
	return &DispatcherBuilder{
		name:                "AsyncDispatcher",
		capacity:            Unbounded,
		exitOnDispatchError: true,
		maxDetailWorkers:    defaultDetailWorkers,
		metrics:             make(map[Category]EventTypeMetrics),
	}
}

func (db *DispatcherBuilder) WithName(name string) *DispatcherBuilder {
	if name != "" {
		db.name = name
	}
	return db
}

func (db *DispatcherBuilder) WithLogger(l *xlog.Logger) *DispatcherBuilder {
	db.logger = l
	return db
}

func (db *DispatcherBuilder) WithClock(c xclock.Clock) *DispatcherBuilder {
	db.clock = c
	return db
}

// WithConfig sets the source of the details threshold and drain timeout.
func (db *DispatcherBuilder) WithConfig(src config.Source) *DispatcherBuilder {
	db.conf = src
	return db
}

// WithQueueCapacity bounds the queue; producers block while it is full.
// Unbounded (0) is the default.
func (db *DispatcherBuilder) WithQueueCapacity(n int) *DispatcherBuilder {
	db.capacity = n
	return db
}

func (db *DispatcherBuilder) WithDrainEventsOnStop() *DispatcherBuilder {
	db.drainEventsOnStop = true
	return db
}

// WithExitOnDispatchError toggles fail-fast termination on dispatch errors.
func (db *DispatcherBuilder) WithExitOnDispatchError(enabled bool) *DispatcherBuilder {
	db.exitOnDispatchError = enabled
	return db
}

// WithTerminator replaces the process exit run after a fatal dispatch error.
func (db *DispatcherBuilder) WithTerminator(t Terminator) *DispatcherBuilder {
	db.terminator = t
	return db
}

func (db *DispatcherBuilder) WithMiddleware(mw ...Middleware) *DispatcherBuilder {
	if len(mw) == 0 {
		return db
	}
	db.middlewares = append(db.middlewares, mw...)
	return db
}

func (db *DispatcherBuilder) WithObserver(obs ...Observer) *DispatcherBuilder {
	for _, o := range obs {
		if o != nil {
			db.observers = append(db.observers, o)
		}
	}
	return db
}

// WithMaxDetailWorkers caps the queue-detail pool, clamped to [1, 5].
func (db *DispatcherBuilder) WithMaxDetailWorkers(n int) *DispatcherBuilder {
	db.maxDetailWorkers = n
	return db
}

// WithMetrics attaches a metrics collaborator for category c.
func (db *DispatcherBuilder) WithMetrics(c Category, m EventTypeMetrics) *DispatcherBuilder {
	if m != nil {
		db.metrics[c] = m
	}
	return db
}

func (db *DispatcherBuilder) Build() (*AsyncDispatcher, error) {
	if db.capacity < 0 {
		return nil, ErrInvalidCapacity
	}

	clk := db.clock
	if clk == nil {
		clk = xclock.Default()
	}
	conf := db.conf
	if conf == nil {
		conf = config.New()
	}
	term := db.terminator
	if term == nil {
		term = defaultTerminator
	}

	id := uuid.NewString()
	lg := db.logger
	if lg == nil {
		lg = xlog.Default()
	}
	lg = lg.With(xlog.Str("dispatcher", db.name), xlog.Str("dispatcher_id", id))

	d := &AsyncDispatcher{
		id:               id,
		name:             db.name,
		logger:           lg,
		clock:            clk,
		conf:             conf,
		queue:            newEventQueue(db.capacity),
		registry:         newRegistry(db.middlewares...),
		terminator:       term,
		metrics:          make(map[Category]EventTypeMetrics, len(db.metrics)),
		maxDetailWorkers: db.maxDetailWorkers,
		drainedCh:        make(chan struct{}, 1),
	}
	d.handle = enqueueHandler{d: d}
	d.drained.Store(true)
	d.detailsInterval.Store(config.DefaultPrintEventsInfoThreshold)
	d.exitOnDispatchError.Store(db.exitOnDispatchError)
	d.drainEventsOnStop.Store(db.drainEventsOnStop)
	for c, m := range db.metrics {
		d.metrics[c] = m
	}

	d.service = NewService(db.name, Hooks{
		OnInit:  d.serviceInit,
		OnStart: d.serviceStart,
		OnStop:  d.serviceStop,
	}, lg, clk)

	// Attach logging observer first unless one was supplied.
	hasLoggingObserver := false
	for _, o := range db.observers {
		if _, ok := o.(LoggingObserver); ok {
			hasLoggingObserver = true
			break
		}
	}
	if !hasLoggingObserver {
		d.AddObserver(LoggingObserver{Logger: lg})
	}
	for _, o := range db.observers {
		d.AddObserver(o)
	}

	return d, nil
}

// New constructs a dispatcher via Builder and returns a close func for convenience.
func New(init func(b *DispatcherBuilder)) (*AsyncDispatcher, func() error, error) {
	b := NewDispatcherBuilder()
	if init != nil {
		init(b)
	}
	d, err := b.Build()
	if err != nil {
		return nil, nil, err
	}
	return d, d.Close, nil
}
