package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"debridstream/resolverservice/internal/metrics"
)

// ErrRetriesExhausted wraps the final failure after every attempt against an
// upstream has been spent.
var ErrRetriesExhausted = errors.New("upstream retries exhausted")

// ClientConfig controls pacing and retry behavior for one upstream session.
// RetryableStatuses is the closed set of HTTP statuses worth another attempt;
// anything else fails immediately.
type ClientConfig struct {
	Service           string
	Timeout           time.Duration
	MaxAttempts       int
	RetryBackoff      time.Duration
	RequestsPerSecond float64
	RetryableStatuses []int
	Headers           map[string]string
}

// Client is a rate-limited, retrying HTTP session shared by all calls to one
// upstream service. Each request waits its turn on the limiter, runs under a
// fixed timeout, and is retried with fixed backoff while the response status
// stays in the retryable set.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	cfg       ClientConfig
	retryable map[int]struct{}
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	retryable := make(map[int]struct{}, len(cfg.RetryableStatuses))
	for _, status := range cfg.RetryableStatuses {
		retryable[status] = struct{}{}
	}
	return &Client{
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter:   rate.NewLimiter(limit, 1),
		cfg:       cfg,
		retryable: retryable,
	}
}

// GetJSON fetches rawURL and decodes the response body into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, out interface{}) error {
	body, err := c.do(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.cfg.Service, err)
	}
	return nil
}

// PostFormJSON posts form values to rawURL and decodes the response into out.
// A nil out discards the body.
func (c *Client) PostFormJSON(ctx context.Context, rawURL string, form url.Values, out interface{}) error {
	body, err := c.do(ctx, http.MethodPost, rawURL, form)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.cfg.Service, err)
	}
	return nil
}

// Delete issues a DELETE and discards the body.
func (c *Client) Delete(ctx context.Context, rawURL string) error {
	_, err := c.do(ctx, http.MethodDelete, rawURL, nil)
	return err
}

func (c *Client) do(ctx context.Context, method, rawURL string, form url.Values) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(c.cfg.RetryBackoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, status, err := c.attempt(ctx, method, rawURL, form)
		if err != nil {
			lastErr = err
			metrics.UpstreamRequestsTotal.WithLabelValues(c.cfg.Service, "error").Inc()
			continue
		}
		if status >= 200 && status < 300 {
			metrics.UpstreamRequestsTotal.WithLabelValues(c.cfg.Service, "ok").Inc()
			return body, nil
		}
		lastErr = fmt.Errorf("%s: unexpected status %d", c.cfg.Service, status)
		if _, retryable := c.retryable[status]; !retryable {
			metrics.UpstreamRequestsTotal.WithLabelValues(c.cfg.Service, "error").Inc()
			return nil, lastErr
		}
		metrics.UpstreamRequestsTotal.WithLabelValues(c.cfg.Service, "retry").Inc()
	}
	return nil, fmt.Errorf("%w: %s: %v", ErrRetriesExhausted, c.cfg.Service, lastErr)
}

func (c *Client) attempt(ctx context.Context, method, rawURL string, form url.Values) ([]byte, int, error) {
	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return nil, 0, err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for key, value := range c.cfg.Headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.UpstreamRequestDuration.WithLabelValues(c.cfg.Service).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}
