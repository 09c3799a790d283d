// Package checkout turns a cart snapshot into orders in the external Order
// API.
//
// Every line of the snapshot is submitted concurrently as its own order. The
// orchestrator waits for all of them regardless of individual outcome and
// clears the cart only when every order succeeded. Already-created orders are
// never rolled back: the Order API is the system of record.
package checkout

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/tripcart/internal/domain/auth"
	"github.com/xenking/tripcart/internal/domain/cart"
	"github.com/xenking/tripcart/internal/domain/order"
)

// Cart is the view of a cart store the orchestrator needs.
type Cart interface {
	Snapshot() cart.Snapshot
	Clear(ctx context.Context)
}

// LineResult is the outcome of submitting one line item.
type LineResult struct {
	Item cart.LineItem
	// Payload is the raw order payload returned on success.
	Payload []byte
	// Err is a *NetworkError or *ApplicationError when the line failed.
	Err error
}

// OK reports whether the line produced an order.
func (r LineResult) OK() bool {
	return r.Err == nil
}

// Result aggregates the outcome of a checkout, in snapshot order.
type Result struct {
	Lines     []LineResult
	Succeeded int
	Total     int
}

// Failures returns the lines that did not produce an order.
func (r *Result) Failures() []LineResult {
	var out []LineResult
	for _, l := range r.Lines {
		if !l.OK() {
			out = append(out, l)
		}
	}
	return out
}

// Orchestrator converts cart snapshots into orders.
type Orchestrator struct {
	orders      order.Creator
	lg          *zap.Logger
	tracer      trace.Tracer
	metrics     *metrics
	watch       *resubmitWatch
	maxParallel int
}

// New creates an Orchestrator submitting orders through the given Creator.
func New(orders order.Creator, opts ...Option) (*Orchestrator, error) {
	o := options{resubmitCapacity: defaultResubmitCapacity}
	for _, opt := range opts {
		opt(&o)
	}
	o.setDefaults()

	m, err := newMetrics(o.meterProvider)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		orders:      orders,
		lg:          o.lg,
		tracer:      o.tracerProvider.Tracer(instrumentationName),
		metrics:     m,
		watch:       newResubmitWatch(o.resubmitCapacity),
		maxParallel: o.maxParallel,
	}, nil
}

// Checkout submits one order per line of the cart's current snapshot.
//
// Preconditions are checked first: a missing credential yields
// ErrUnauthenticated and an empty cart ErrEmptyCart, both without any call to
// the Order API. Otherwise the Result is always returned; the error is nil on
// full success (and the cart has been cleared) or a *PartialFailureError.
//
// The snapshot is captured once, so mutations made while orders are in
// flight do not change what was submitted. In-flight orders are not
// cancelled when ctx is.
func (o *Orchestrator) Checkout(ctx context.Context, c Cart, creds auth.Source) (*Result, error) {
	token, ok := creds.Token()
	if !ok {
		o.metrics.attempt(ctx, outcomeUnauthenticated)
		return nil, ErrUnauthenticated
	}

	snap := c.Snapshot()
	if len(snap) == 0 {
		o.metrics.attempt(ctx, outcomeEmptyCart)
		return nil, ErrEmptyCart
	}

	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "checkout.Checkout",
		trace.WithAttributes(attribute.Int("cart.lines", len(snap))),
	)
	defer span.End()

	detached := context.WithoutCancel(ctx)
	lines := o.submitAll(detached, token, snap)

	res := &Result{Lines: lines, Total: len(lines)}
	for _, l := range lines {
		if l.OK() {
			res.Succeeded++
		}
	}
	o.metrics.duration(ctx, time.Since(start))
	span.SetAttributes(attribute.Int("checkout.succeeded", res.Succeeded))

	if res.Succeeded == res.Total {
		c.Clear(detached)
		o.metrics.attempt(ctx, outcomeSuccess)
		o.lg.Info("Checkout completed", zap.Int("orders", res.Total))
		return res, nil
	}

	err := &PartialFailureError{Succeeded: res.Succeeded, Total: res.Total}
	span.SetStatus(codes.Error, err.Error())
	o.metrics.attempt(ctx, outcomePartialFailure)
	o.lg.Warn("Checkout partially failed",
		zap.Int("succeeded", res.Succeeded),
		zap.Int("total", res.Total),
	)
	return res, err
}

// submitAll fans out one request per line and waits for all of them. The
// tasks never return an error, so no sibling is abandoned.
func (o *Orchestrator) submitAll(ctx context.Context, token string, snap cart.Snapshot) []LineResult {
	results := make([]LineResult, len(snap))

	var g errgroup.Group
	if o.maxParallel > 0 {
		g.SetLimit(o.maxParallel)
	}
	for i, item := range snap {
		g.Go(func() error {
			results[i] = o.submit(ctx, token, item)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (o *Orchestrator) submit(ctx context.Context, token string, item cart.LineItem) LineResult {
	ctx, span := o.tracer.Start(ctx, "checkout.submitLine",
		trace.WithAttributes(
			attribute.String("cart.line_id", item.ID),
			attribute.String("trip.id", item.TripID),
		),
	)
	defer span.End()

	if o.watch.seen(item.ID) {
		o.metrics.resubmit(ctx)
		o.lg.Warn("Line submitted again, backend may create a duplicate order",
			zap.String("line_id", item.ID),
			zap.String("trip_id", item.TripID),
		)
	}

	res := LineResult{Item: item}
	resp, err := o.orders.CreateOrder(ctx, token, order.NewRequest(item))
	switch {
	case err != nil:
		res.Err = &NetworkError{Err: err}
		o.metrics.line(ctx, outcomeNetworkError)
	case resp == nil:
		res.Err = &NetworkError{Err: errNoResponse}
		o.metrics.line(ctx, outcomeNetworkError)
	case !resp.OK():
		res.Err = &ApplicationError{StatusCode: resp.StatusCode, Message: resp.ErrorMessage}
		o.metrics.line(ctx, outcomeApplicationError)
	default:
		res.Payload = resp.Payload
		o.metrics.line(ctx, outcomeSuccess)
	}

	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
		o.lg.Debug("Order line failed",
			zap.String("line_id", item.ID),
			zap.Error(res.Err),
		)
	}
	return res
}
