// Package otelmetrics adapts the collector Metrics interface to
// OpenTelemetry instruments.
//
// Counter names become Int64Counters, durations become Float64Histograms
// in milliseconds and gauges become Float64Gauges. Instruments are created
// lazily on first use and cached by name.
package otelmetrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ScopeName is the instrumentation scope of the meter.
const ScopeName = "github.com/jdziat/pagetrack-go"

// Recorder implements the collector Metrics interface with OpenTelemetry.
type Recorder struct {
	meter metric.Meter
	attrs metric.MeasurementOption

	counters   sync.Map // name -> metric.Int64Counter
	histograms sync.Map // name -> metric.Float64Histogram
	gauges     sync.Map // name -> metric.Float64Gauge

	errMu   sync.Mutex
	lastErr error
}

// Option configures a Recorder.
type Option func(*options)

type options struct {
	provider metric.MeterProvider
	attrs    []attribute.KeyValue
}

// WithMeterProvider sets the meter provider. Default: the global provider.
func WithMeterProvider(p metric.MeterProvider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// WithAttributes adds attributes to every measurement, for example the
// site the collector reports for.
func WithAttributes(attrs ...attribute.KeyValue) Option {
	return func(o *options) {
		o.attrs = append(o.attrs, attrs...)
	}
}

// New creates a Recorder.
func New(opts ...Option) *Recorder {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	provider := o.provider
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	return &Recorder{
		meter: provider.Meter(ScopeName),
		attrs: metric.WithAttributes(o.attrs...),
	}
}

// IncrementCounter adds value to the named counter.
func (r *Recorder) IncrementCounter(name string, value int64) {
	c, err := r.counter(name)
	if err != nil {
		r.setErr(err)
		return
	}
	c.Add(context.Background(), value, r.attrs)
}

// RecordDuration records d, in milliseconds, in the named histogram.
func (r *Recorder) RecordDuration(name string, d time.Duration) {
	h, err := r.histogram(name)
	if err != nil {
		r.setErr(err)
		return
	}
	h.Record(context.Background(), float64(d)/float64(time.Millisecond), r.attrs)
}

// SetGauge sets the named gauge.
func (r *Recorder) SetGauge(name string, value float64) {
	g, err := r.gauge(name)
	if err != nil {
		r.setErr(err)
		return
	}
	g.Record(context.Background(), value, r.attrs)
}

// Err returns the last instrument creation error, if any.
func (r *Recorder) Err() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.lastErr
}

func (r *Recorder) setErr(err error) {
	r.errMu.Lock()
	r.lastErr = err
	r.errMu.Unlock()
}

func (r *Recorder) counter(name string) (metric.Int64Counter, error) {
	if v, ok := r.counters.Load(name); ok {
		return v.(metric.Int64Counter), nil
	}
	c, err := r.meter.Int64Counter(name)
	if err != nil {
		return nil, err
	}
	v, _ := r.counters.LoadOrStore(name, c)
	return v.(metric.Int64Counter), nil
}

func (r *Recorder) histogram(name string) (metric.Float64Histogram, error) {
	if v, ok := r.histograms.Load(name); ok {
		return v.(metric.Float64Histogram), nil
	}
	h, err := r.meter.Float64Histogram(name, metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	v, _ := r.histograms.LoadOrStore(name, h)
	return v.(metric.Float64Histogram), nil
}

func (r *Recorder) gauge(name string) (metric.Float64Gauge, error) {
	if v, ok := r.gauges.Load(name); ok {
		return v.(metric.Float64Gauge), nil
	}
	g, err := r.meter.Float64Gauge(name)
	if err != nil {
		return nil, err
	}
	v, _ := r.gauges.LoadOrStore(name, g)
	return v.(metric.Float64Gauge), nil
}
