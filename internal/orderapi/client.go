// Package orderapi is an HTTP client for the external Order API.
package orderapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/tripcart/internal/domain/order"
)

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 1 << 20

var _ order.Creator = (*Client)(nil)

// Config holds the Order API client settings.
type Config struct {
	// BaseURL is the API root; orders are posted to BaseURL + "/orders".
	BaseURL string
	// Timeout bounds a single order request. Zero means no timeout.
	Timeout time.Duration

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	// Transport overrides the underlying round tripper, mainly for tests.
	Transport http.RoundTripper
}

// Client creates orders over HTTP.
type Client struct {
	client    *http.Client
	ordersURL string
}

// New returns a Client for cfg.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("order api base url is required")
	}

	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	var opts []otelhttp.Option
	if cfg.TracerProvider != nil {
		opts = append(opts, otelhttp.WithTracerProvider(cfg.TracerProvider))
	}
	if cfg.MeterProvider != nil {
		opts = append(opts, otelhttp.WithMeterProvider(cfg.MeterProvider))
	}

	return &Client{
		client: &http.Client{
			Transport: otelhttp.NewTransport(base, opts...),
			Timeout:   cfg.Timeout,
		},
		ordersURL: strings.TrimRight(cfg.BaseURL, "/") + "/orders",
	}, nil
}

// CreateOrder posts a single order. Transport failures are returned as
// errors. Any response that arrived is reported through order.Response: a
// body that is not a valid envelope becomes a failure carrying the HTTP
// status code.
func (c *Client) CreateOrder(ctx context.Context, token string, req order.Request) (*order.Response, error) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encodeRequest(e, req)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ordersURL, bytes.NewReader(e.Bytes()))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "post order")
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}

	resp, err := decodeResponse(body)
	if err != nil {
		return &order.Response{
			StatusCode:   httpResp.StatusCode,
			ErrorMessage: fmt.Sprintf("unexpected response: HTTP %d", httpResp.StatusCode),
		}, nil
	}
	if httpResp.StatusCode >= http.StatusBadRequest && resp.OK() {
		// An error status never counts as an accepted order.
		resp.StatusCode = httpResp.StatusCode
		if resp.ErrorMessage == "" {
			resp.ErrorMessage = http.StatusText(httpResp.StatusCode)
		}
		resp.Payload = nil
	}
	return resp, nil
}
