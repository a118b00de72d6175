// Package prommetrics exports per-event-type dispatch counters to Prometheus.
package prommetrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/trickstertwo/xdispatch"
	"github.com/trickstertwo/xdispatch/metrics"
)

const (
	namespace = "xdispatch"
	subsystem = "events"
)

// Metrics is an EventTypeMetrics backed by two CounterVecs labelled by
// category and type. Get is answered from in-process counters.
type Metrics struct {
	mu sync.Mutex

	local *metrics.Simple

	dispatchedTotal *prometheus.CounterVec
	processingUs    *prometheus.CounterVec

	registerer prometheus.Registerer
	registered bool
}

var _ xdispatch.EventTypeMetrics = (*Metrics)(nil)

func newCounterVec(name, help string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		},
		[]string{"category", "type"},
	)
}

// New tracks the given types of category. A nil registerer uses
// prometheus.DefaultRegisterer.
func New(registerer prometheus.Registerer, category xdispatch.Category, types ...xdispatch.Type) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &Metrics{
		local:           metrics.NewSimple(category, types...),
		registerer:      registerer,
		dispatchedTotal: newCounterVec("dispatched_total", "Total number of events dispatched"),
		processingUs:    newCounterVec("processing_time_microseconds_total", "Summed dispatch time in microseconds"),
	}
}

// Register registers the collectors and pre-initializes a series for every
// declared type. Safe to call multiple times; collectors already registered
// by another instance are reused.
func (m *Metrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	var err error
	if m.dispatchedTotal, err = register(m.registerer, m.dispatchedTotal); err != nil {
		return err
	}
	if m.processingUs, err = register(m.registerer, m.processingUs); err != nil {
		return err
	}

	cat := string(m.local.Category())
	for _, t := range m.local.Types() {
		if t == nil || t.Category() != m.local.Category() {
			continue
		}
		m.dispatchedTotal.WithLabelValues(cat, t.String())
		m.processingUs.WithLabelValues(cat, t.String())
	}

	m.registered = true
	return nil
}

func register(r prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := r.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, err
		}
		return existing, nil
	}
	return c, nil
}

// MustRegister is Register that panics on error.
func (m *Metrics) MustRegister() *Metrics {
	if err := m.Register(); err != nil {
		panic(err)
	}
	return m
}

func (m *Metrics) Increment(t xdispatch.Type, processingTimeUs int64) {
	if t == nil || t.Category() != m.local.Category() {
		return
	}
	m.local.Increment(t, processingTimeUs)
	cat := string(t.Category())
	m.dispatchedTotal.WithLabelValues(cat, t.String()).Inc()
	m.processingUs.WithLabelValues(cat, t.String()).Add(float64(processingTimeUs))
}

func (m *Metrics) Get(t xdispatch.Type) int64 { return m.local.Get(t) }

// TotalProcessingTime returns the summed dispatch time of t in microseconds.
func (m *Metrics) TotalProcessingTime(t xdispatch.Type) int64 { return m.local.TotalProcessingTime(t) }
