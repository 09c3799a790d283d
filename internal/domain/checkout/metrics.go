package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	outcomeSuccess          = "success"
	outcomeUnauthenticated  = "unauthenticated"
	outcomeEmptyCart        = "empty_cart"
	outcomePartialFailure   = "partial_failure"
	outcomeNetworkError     = "network_error"
	outcomeApplicationError = "application_error"
)

type metrics struct {
	attempts  metric.Int64Counter
	lines     metric.Int64Counter
	resubmits metric.Int64Counter
	latency   metric.Float64Histogram
}

func newMetrics(mp metric.MeterProvider) (*metrics, error) {
	meter := mp.Meter(instrumentationName)

	var (
		m   metrics
		err error
	)
	if m.attempts, err = meter.Int64Counter("tripcart.checkout.attempts",
		metric.WithDescription("Checkout attempts by outcome"),
	); err != nil {
		return nil, errors.Wrap(err, "attempts counter")
	}
	if m.lines, err = meter.Int64Counter("tripcart.checkout.lines",
		metric.WithDescription("Submitted order lines by outcome"),
	); err != nil {
		return nil, errors.Wrap(err, "lines counter")
	}
	if m.resubmits, err = meter.Int64Counter("tripcart.checkout.resubmits",
		metric.WithDescription("Lines submitted more than once"),
	); err != nil {
		return nil, errors.Wrap(err, "resubmits counter")
	}
	if m.latency, err = meter.Float64Histogram("tripcart.checkout.duration",
		metric.WithDescription("Time to settle all order lines of a checkout"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, errors.Wrap(err, "duration histogram")
	}
	return &m, nil
}

func (m *metrics) attempt(ctx context.Context, outcome string) {
	m.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *metrics) line(ctx context.Context, outcome string) {
	m.lines.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *metrics) resubmit(ctx context.Context) {
	m.resubmits.Add(ctx, 1)
}

func (m *metrics) duration(ctx context.Context, d time.Duration) {
	m.latency.Record(ctx, d.Seconds())
}
