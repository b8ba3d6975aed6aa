// Package httpclient is the outbound HTTP client shared by provider adapters.
// Every request waits on a token-bucket limiter and transient failures are
// retried with exponential backoff.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout    = 15 * time.Second
	DefaultMaxRetries = 2
	DefaultRateLimit  = 2.0
	DefaultRateBurst  = 2
	DefaultUserAgent  = "inmates/1.0"

	// maxBodyBytes caps how much of a response is read into memory.
	maxBodyBytes = 8 << 20
)

// Config configures a Client. Zero values fall back to the defaults above,
// except MaxRetries: zero means a single attempt with no retries.
type Config struct {
	// Timeout bounds a single attempt, not the whole retry sequence.
	Timeout    time.Duration
	MaxRetries int
	RateLimit  float64
	RateBurst  int
	UserAgent  string

	// InitialBackoff is the first retry delay; later delays grow exponentially.
	InitialBackoff time.Duration

	// Transport allows injecting a custom round tripper in tests.
	Transport http.RoundTripper
}

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// HTTPStatus exposes the status code to error classifiers.
func (e *StatusError) HTTPStatus() int {
	return e.StatusCode
}

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client is a rate-limited, retrying HTTP client.
type Client struct {
	http       *http.Client
	limiter    *rate.Limiter
	maxRetries int
	userAgent  string
	initial    time.Duration
}

// New creates a client from cfg.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = DefaultRateBurst
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 250 * time.Millisecond
	}
	return &Client{
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		maxRetries: cfg.MaxRetries,
		userAgent:  cfg.UserAgent,
		initial:    cfg.InitialBackoff,
	}
}

// PostForm submits form as application/x-www-form-urlencoded.
func (c *Client) PostForm(ctx context.Context, target string, form url.Values) (*Response, error) {
	body := form.Encode()
	return c.do(ctx, http.MethodPost, target, func() io.Reader { return strings.NewReader(body) }, map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
	})
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, target string) (*Response, error) {
	return c.do(ctx, http.MethodGet, target, nil, nil)
}

func (c *Client) do(ctx context.Context, method, target string, body func() io.Reader, headers map[string]string) (*Response, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initial

	op := func() (*Response, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, backoff.Permanent(ctxErr)
			}
			return nil, backoff.Permanent(fmt.Errorf("rate limiter: %w", err))
		}
		resp, err := c.once(ctx, method, target, body, headers)
		if err == nil {
			return resp, nil
		}
		if !retryable(ctx, err) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.maxRetries+1)),
	)
}

// once performs a single attempt. On a non-2xx status it returns the response
// alongside the *StatusError.
func (c *Client) once(ctx context.Context, method, target string, body func() io.Reader, headers map[string]string) (*Response, error) {
	var r io.Reader
	if body != nil {
		r = body()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, r)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	resp := &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: data}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		snippet := string(data)
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return resp, &StatusError{StatusCode: httpResp.StatusCode, URL: target, Body: snippet}
	}
	return resp, nil
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	// transport errors (connection refused, resets, per-attempt timeouts)
	return true
}
