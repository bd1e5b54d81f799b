// Package api is the client for the external routing service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/urbanroute/routeview/internal/route"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	instrumentationName = "github.com/urbanroute/routeview/internal/api"

	// DefaultTimeout bounds a single route fetch.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodySize caps a routing response body.
	DefaultMaxBodySize = 32 << 20
)

// ErrResponseTooLarge marks a response body over the client's size cap.
var ErrResponseTooLarge = errors.New("response too large")

// Fetch outcomes reported to observers and metrics.
const (
	OutcomeOK        = "ok"
	OutcomeFailed    = "failed"
	OutcomeMalformed = "malformed"
	OutcomeCancelled = "cancelled"
)

// Observer is notified after every fetch.
type Observer interface {
	ObserveFetch(kind string, duration time.Duration, paths int, err error)
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger used for fetch diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMaxBodySize caps the response body size. Larger responses fail the
// fetch.
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

// WithObserver registers an observer for fetch results.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// Client handles communication with the routing service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	observer   Observer

	maxBodySize int64

	fetches  metric.Int64Counter
	duration metric.Float64Histogram
}

// New creates a new routing service client.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.Default(),

		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(c)
	}

	m := otel.Meter(instrumentationName)

	var err error
	c.fetches, err = m.Int64Counter(
		"routing.fetch.count",
		metric.WithDescription("Route fetches by route kind and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fetch counter: %w", err)
	}

	c.duration, err = m.Float64Histogram(
		"routing.fetch.duration",
		metric.WithDescription("Route fetch latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fetch histogram: %w", err)
	}

	return c, nil
}

// BaseURL returns the service address without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Ping checks that the routing service answers. Any status below 500
// counts as reachable since the service exposes no health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ping request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("ping returned status %d", resp.StatusCode)
	}
	return nil
}

// Fetch performs a single GET for q and decodes the returned path(s).
// Transport errors, non-2xx statuses and non-JSON bodies wrap
// route.ErrRouteFetchFailed; JSON of the wrong shape wraps
// route.ErrMalformedResult.
func (c *Client) Fetch(ctx context.Context, q route.Query) (route.Result, error) {
	start := time.Now()
	res, err := c.fetch(ctx, q)
	elapsed := time.Since(start)

	outcome := Outcome(err)
	attrs := metric.WithAttributes(
		attribute.String("kind", q.Kind),
		attribute.String("outcome", outcome),
	)
	c.fetches.Add(ctx, 1, attrs)
	c.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)

	if c.observer != nil {
		c.observer.ObserveFetch(q.Kind, elapsed, len(res.Paths), err)
	}

	if err != nil {
		c.logger.Debug("route fetch failed", "kind", q.Kind, "outcome", outcome, "duration", elapsed, "error", err)
		return route.Result{}, err
	}
	c.logger.Debug("route fetched", "kind", q.Kind, "paths", len(res.Paths), "duration", elapsed)
	return res, nil
}

func (c *Client) fetch(ctx context.Context, q route.Query) (route.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.URL(c.baseURL), nil)
	if err != nil {
		return route.Result{}, fmt.Errorf("%w: failed to create request: %w", route.ErrRouteFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return route.Result{}, fmt.Errorf("%w: %w", route.ErrRouteFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return route.Result{}, fmt.Errorf("%w: %s returned status %d", route.ErrRouteFetchFailed, q.Path(), resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return route.Result{}, fmt.Errorf("%w: failed to read response body: %w", route.ErrRouteFetchFailed, err)
	}
	if int64(len(body)) > c.maxBodySize {
		return route.Result{}, fmt.Errorf("%w: %w: exceeds %d bytes", route.ErrRouteFetchFailed, ErrResponseTooLarge, c.maxBodySize)
	}
	if !json.Valid(body) {
		return route.Result{}, fmt.Errorf("%w: response body is not JSON", route.ErrRouteFetchFailed)
	}

	return route.DecodeResult(body)
}

// Outcome classifies a Fetch error.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled):
		return OutcomeCancelled
	case errors.Is(err, route.ErrMalformedResult):
		return OutcomeMalformed
	default:
		return OutcomeFailed
	}
}
