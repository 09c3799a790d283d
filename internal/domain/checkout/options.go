package checkout

import (
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/xenking/tripcart/internal/domain/checkout"

type options struct {
	lg               *zap.Logger
	tracerProvider   trace.TracerProvider
	meterProvider    metric.MeterProvider
	maxParallel      int
	resubmitCapacity uint
}

func (o *options) setDefaults() {
	if o.lg == nil {
		o.lg = zap.NewNop()
	}
	if o.tracerProvider == nil {
		o.tracerProvider = tracenoop.NewTracerProvider()
	}
	if o.meterProvider == nil {
		o.meterProvider = metricnoop.NewMeterProvider()
	}
}

// Option configures an Orchestrator.
type Option func(o *options)

// WithLogger sets the logger.
func WithLogger(lg *zap.Logger) Option {
	return func(o *options) {
		o.lg = lg
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithMeterProvider sets the meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}

// WithMaxParallel caps the number of order requests in flight for a single
// checkout. Zero or less sends every line at once.
func WithMaxParallel(n int) Option {
	return func(o *options) {
		o.maxParallel = n
	}
}

// WithResubmitCapacity sizes the filter that remembers submitted line ids.
// Zero disables resubmit detection.
func WithResubmitCapacity(n uint) Option {
	return func(o *options) {
		o.resubmitCapacity = n
	}
}
