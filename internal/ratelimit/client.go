package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"komf/internal/logging"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = 500 * time.Millisecond
	defaultMaxDelay   = 30 * time.Second
	maxErrorBody      = 512
)

// Doer issues HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RetryPolicy describes when and how a request is retried.
type RetryPolicy struct {
	// MaxRetries bounds the number of retries after the first attempt.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// TooManyRequests lists provider-specific status codes treated like 429.
	TooManyRequests []int
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: defaultMaxRetries, BaseDelay: defaultBaseDelay, MaxDelay: defaultMaxDelay}
}

// StatusError reports a non-success HTTP response.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, body)
}

// Client wraps a Doer with a shared limiter and retry policy.
type Client struct {
	doer    Doer
	limiter *Limiter
	policy  RetryPolicy
	logger  *slog.Logger
	sleeper func(context.Context, time.Duration) error
}

// Option customizes the client.
type Option func(*Client)

// WithLogger attaches a logger used for retry warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if sleeper != nil {
			c.sleeper = sleeper
		}
	}
}

// NewClient constructs a rate limited, retrying HTTP client. A nil doer uses
// http.DefaultClient; a nil limiter never blocks.
func NewClient(doer Doer, limiter *Limiter, policy RetryPolicy, opts ...Option) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = defaultMaxDelay
	}
	c := &Client{
		doer:    doer,
		limiter: limiter,
		policy:  policy,
		logger:  logging.NewNop(),
		sleeper: sleepWithContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Limiter returns the limiter shared by this client.
func (c *Client) Limiter() *Limiter {
	return c.limiter
}

// Do sends req, acquiring a permit before every attempt. Responses with 429,
// a configured too-many-requests code or any 5xx are retried. When retries are
// exhausted the last response or error is returned unchanged.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	for attempt := 0; ; attempt++ {
		if attempt > 0 && req.Body != nil && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewind request body: %w", err)
			}
			req.Body = body
		}
		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
		resp, err := c.doer.Do(req)

		delay, retry := c.retryDelay(ctx, resp, err, attempt)
		if !retry {
			return resp, err
		}
		if resp != nil {
			drainAndClose(resp.Body)
		}
		c.logger.Warn("provider request failed, retrying",
			logging.String("url", req.URL.Redacted()),
			logging.Int("attempt", attempt+1),
			logging.Int("max_retries", c.policy.MaxRetries),
			logging.Duration("backoff", delay),
			logging.String("status", statusText(resp, err)),
			logging.String(logging.FieldEventType, "provider_request_retry"),
			logging.String(logging.FieldErrorHint, "provider is rate limiting or unavailable"),
		)
		if err := c.sleeper(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// DoJSON sends req and decodes a successful JSON response into out. Non-2xx
// responses are returned as *StatusError.
func (c *Client) DoJSON(req *http.Request, out any) error {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := CheckResponse(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// CheckResponse converts a non-2xx response into a *StatusError. The body is
// read (and truncated) only on failure.
func CheckResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
	return &StatusError{StatusCode: resp.StatusCode, Body: string(body), RetryAfter: retryAfter}
}

func (c *Client) retryDelay(ctx context.Context, resp *http.Response, err error, attempt int) (time.Duration, bool) {
	if attempt >= c.policy.MaxRetries || ctx.Err() != nil {
		return 0, false
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, false
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return c.backoffDelay(attempt), true
		}
		return 0, false
	}
	if !c.retryableStatus(resp.StatusCode) {
		return 0, false
	}
	if after, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
		return after, true
	}
	return c.backoffDelay(attempt), true
}

func (c *Client) retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests ||
		status >= http.StatusInternalServerError ||
		slices.Contains(c.policy.TooManyRequests, status)
}

// backoffDelay doubles the base delay per attempt: 0 -> base, 1 -> 2*base, ...
func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := c.policy.BaseDelay
	if delay <= 0 {
		return 0
	}
	for i := 0; i < attempt; i++ {
		if delay > c.policy.MaxDelay/2 {
			return c.policy.MaxDelay
		}
		delay *= 2
	}
	return min(delay, c.policy.MaxDelay)
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, true
		}
		return delay, true
	}
	return 0, false
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func drainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}

func statusText(resp *http.Response, err error) string {
	if err != nil {
		return err.Error()
	}
	return resp.Status
}
