// Package transport provides the outbound HTTP client shared by the forecast,
// explanation and Telegram collaborators: proxy support, a circuit breaker per
// upstream and retries with exponential backoff on 429/5xx.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"
)

// RetryPolicy configures how many times and how long to wait between attempts.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy is used by all collaborators unless overridden.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, MinWait: 500 * time.Millisecond, MaxWait: 5 * time.Second}
}

// StatusError is returned when the upstream keeps answering 429 or 5xx.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Body)
}

// Client wraps an *http.Client with a circuit breaker and retry loop.
type Client struct {
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	retry   RetryPolicy
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option customizes a Client.
type Option func(*Client)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// WithSleep replaces the wait between retries; tests use it to avoid delays.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

// NewHTTPClient builds a plain *http.Client with optional proxy support.
func NewHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	tr := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			tr.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// New creates a Client named after its upstream; the name labels the breaker.
func New(name string, httpClient *http.Client, opts ...Option) *Client {
	c := &Client{
		http: httpClient,
		breaker: gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		retry: DefaultRetryPolicy(),
		sleep: sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do sends req, retrying on network errors, 429 and 5xx. Other statuses are
// returned as-is and the caller closes the body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if body != nil {
			req.Body = io.NopCloser(bytes.NewReader(body))
			req.ContentLength = int64(len(body))
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			r, err := c.http.Do(req)
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
				b, _ := io.ReadAll(io.LimitReader(r.Body, 512))
				r.Body.Close()
				return nil, &StatusError{StatusCode: r.StatusCode, Body: string(b)}
			}
			return r, nil
		})
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}
		if req.Context().Err() != nil {
			return nil, req.Context().Err()
		}
		if attempt < c.retry.MaxRetries {
			if err := c.sleep(req.Context(), c.backoff(attempt)); err != nil {
				return nil, err
			}
		}
	}
	return nil, lastErr
}

// State exposes the breaker state for health reporting.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

func (c *Client) backoff(attempt int) time.Duration {
	wait := c.retry.MinWait * time.Duration(1<<uint(attempt))
	if wait > c.retry.MaxWait {
		wait = c.retry.MaxWait
	}
	return wait
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
