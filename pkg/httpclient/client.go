// Package httpclient provides an HTTP client with exponential-backoff
// retry for transient failures, adapted from the teacher's
// pkg/httpclient/client.go (the fuller version — rate-limit header
// parsing, TLS options, SSE-aware Do — read in full during this
// session's pre-transform survey; this module keeps only the
// retry/backoff core, since the LLM Driver's provider clients
// (pkg/llm) need nothing beyond that).
package httpclient

import (
	"bytes"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"time"
)

// RetryStrategy mirrors the teacher's classification of which status
// codes are worth retrying.
type RetryStrategy int

const (
	NoRetry RetryStrategy = iota
	Retry
)

// Client wraps http.Client with retry and exponential backoff.
type Client struct {
	http       *http.Client
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option   { return func(cl *Client) { cl.http = c } }
func WithMaxRetries(n int) Option            { return func(cl *Client) { cl.maxRetries = n } }
func WithBaseDelay(d time.Duration) Option   { return func(cl *Client) { cl.baseDelay = d } }
func WithMaxDelay(d time.Duration) Option    { return func(cl *Client) { cl.maxDelay = d } }

// New builds a Client, matching the teacher's defaults (5 retries, 2s
// base delay, 60s max delay, 120s request timeout).
func New(opts ...Option) *Client {
	c := &Client{
		http:       &http.Client{Timeout: 120 * time.Second},
		maxRetries: 5,
		baseDelay:  2 * time.Second,
		maxDelay:   60 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func strategyFor(statusCode int) RetryStrategy {
	switch statusCode {
	case http.StatusTooManyRequests, http.StatusRequestTimeout, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return Retry
	default:
		return NoRetry
	}
}

// Do executes req, retrying transient failures with exponential
// backoff plus jitter, the same way the teacher's client.go does.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	var lastErr error
	var bodyBytes []byte
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		if err == nil {
			bodyBytes = b
		}
		req.Body.Close()
	}

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if attempt == c.maxRetries {
				break
			}
			c.sleep(attempt)
			continue
		}

		if strategyFor(resp.StatusCode) == Retry && attempt < c.maxRetries {
			resp.Body.Close()
			slog.Debug("httpclient: retrying transient status", "status", resp.StatusCode, "attempt", attempt)
			c.sleep(attempt)
			continue
		}
		return resp, nil
	}
	return nil, lastErr
}

func (c *Client) sleep(attempt int) {
	delay := time.Duration(float64(c.baseDelay) * math.Pow(2, float64(attempt)))
	if delay > c.maxDelay {
		delay = c.maxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay) / 4 + 1))
	time.Sleep(delay + jitter)
}
