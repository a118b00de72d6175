// Package otelmetrics records per-event-type dispatch counters through an
// OpenTelemetry Meter.
//
// The recorder uses the global OTel meter provider unless WithMeterProvider
// is given:
//
//	otel.SetMeterProvider(yourProvider)
//	m, err := otelmetrics.New("job", JobCreated, JobDone)
package otelmetrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/trickstertwo/xdispatch"
	"github.com/trickstertwo/xdispatch/metrics"
)

const (
	scopeName = "github.com/trickstertwo/xdispatch"

	// MetricDispatched counts dispatched events.
	MetricDispatched = "xdispatch.events.dispatched"
	// MetricProcessingTime sums dispatch time in microseconds.
	MetricProcessingTime = "xdispatch.events.processing_time"
)

// Metrics implements EventTypeMetrics with two Int64Counters.
type Metrics struct {
	local      *metrics.Simple
	dispatched metric.Int64Counter
	processing metric.Int64Counter
}

var _ xdispatch.EventTypeMetrics = (*Metrics)(nil)

type options struct {
	provider metric.MeterProvider
}

// Option configures New.
type Option func(*options)

// WithMeterProvider uses mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.provider = mp }
}

// New tracks the given types of category.
func New(category xdispatch.Category, types []xdispatch.Type, opts ...Option) (*Metrics, error) {
	var o options
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}
	if o.provider == nil {
		o.provider = otel.GetMeterProvider()
	}
	meter := o.provider.Meter(scopeName)

	dispatched, err := meter.Int64Counter(MetricDispatched,
		metric.WithDescription("Number of dispatched events"),
	)
	if err != nil {
		return nil, err
	}

	processing, err := meter.Int64Counter(MetricProcessingTime,
		metric.WithDescription("Summed event dispatch time"),
		metric.WithUnit("us"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		local:      metrics.NewSimple(category, types...),
		dispatched: dispatched,
		processing: processing,
	}, nil
}

func (m *Metrics) Increment(t xdispatch.Type, processingTimeUs int64) {
	if t == nil || t.Category() != m.local.Category() {
		return
	}
	m.local.Increment(t, processingTimeUs)

	attrs := metric.WithAttributes(
		attribute.String("category", string(t.Category())),
		attribute.String("type", t.String()),
	)
	ctx := context.Background()
	m.dispatched.Add(ctx, 1, attrs)
	m.processing.Add(ctx, processingTimeUs, attrs)
}

func (m *Metrics) Get(t xdispatch.Type) int64 { return m.local.Get(t) }

// TotalProcessingTime returns the summed dispatch time of t in microseconds.
func (m *Metrics) TotalProcessingTime(t xdispatch.Type) int64 { return m.local.TotalProcessingTime(t) }
