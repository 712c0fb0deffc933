package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"earshot/internal/config"
	"earshot/internal/dispatch/signature"
	"earshot/internal/services"
)

const (
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 2 * time.Second
	defaultRetryMaxDelay  = 60 * time.Second
	defaultRequestTimeout = 30 * time.Minute

	headerRequestID = "X-Request-ID"
)

// Client talks to the extraction worker. Every request body is signed with
// the shared secret before it leaves the process.
type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a worker client from the dispatch configuration.
func NewClient(cfg config.Dispatch, opts ...Option) *Client {
	timeout := defaultRequestTimeout
	if cfg.RequestTimeoutMinutes > 0 {
		timeout = time.Duration(cfg.RequestTimeoutMinutes) * time.Minute
	}
	client := &Client{
		baseURL:          strings.TrimRight(strings.TrimSpace(cfg.WorkerURL), "/"),
		secret:           cfg.SharedSecret,
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	if cfg.RetryAttempts > 0 {
		client.retryMaxAttempts = cfg.RetryAttempts
	}
	if cfg.RetryBaseSeconds > 0 {
		client.retryBaseDelay = time.Duration(cfg.RetryBaseSeconds) * time.Second
	}
	if cfg.RetryMaxSeconds > 0 {
		client.retryMaxDelay = time.Duration(cfg.RetryMaxSeconds) * time.Second
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: timeout}
	}
	return client
}

type httpStatusError struct {
	StatusCode int
	Stage      string
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("worker request: http %d (stage=%s): %s", e.StatusCode, e.Stage, strings.TrimSpace(e.Body))
	}
	return fmt.Sprintf("worker request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Extract submits the resource to the worker and returns its transcript.
// Transient failures (timeouts, 5xx, 429) are retried with exponential
// backoff up to the configured attempt ceiling. Client-class responses are
// returned immediately without retrying.
func (c *Client) Extract(ctx context.Context, req ExtractRequest) (ExtractResponse, error) {
	var empty ExtractResponse
	req.normalize()
	if req.ResourceURL == "" {
		return empty, services.Wrap(services.ErrValidation, "dispatch", "extract", "resource url required", nil)
	}
	if req.Mode != ModePrerecorded && req.Mode != ModeStreaming {
		return empty, services.Wrap(services.ErrValidation, "dispatch", "extract", fmt.Sprintf("unknown mode %q", req.Mode), nil)
	}
	if c.secret == "" {
		return empty, services.Wrap(services.ErrConfiguration, "dispatch", "extract", "shared secret not configured", nil)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return empty, services.Wrap(services.ErrValidation, "dispatch", "extract", "encode request", err)
	}

	attempts := c.retryAttempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := c.sendOnce(ctx, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		delay, retry := c.retryDelay(ctx, err, attempt)
		if !retry {
			return empty, err
		}
		if attempt == attempts {
			break
		}
		if err := c.sleep(ctx, delay); err != nil {
			return empty, err
		}
	}
	return empty, services.Wrap(services.ErrTransient, "dispatch", "extract",
		fmt.Sprintf("failed after %d attempts", attempts), lastErr)
}

// Health probes the worker's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return services.Wrap(services.ErrUnavailable, "dispatch", "health", "new request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrUnavailable, "dispatch", "health", "worker unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrUnavailable, "dispatch", "health",
			fmt.Sprintf("worker returned http %d", resp.StatusCode), nil)
	}
	return nil
}

func (c *Client) sendOnce(ctx context.Context, body []byte) (ExtractResponse, error) {
	var empty ExtractResponse
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/extract", bytes.NewReader(body))
	if err != nil {
		return empty, fmt.Errorf("worker request: new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(signature.Header, signature.Sign(c.secret, body))
	requestID, ok := services.RequestIDFromContext(ctx)
	if !ok {
		requestID = uuid.NewString()
	}
	httpReq.Header.Set(headerRequestID, requestID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return empty, fmt.Errorf("worker request: http error: %w", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, fmt.Errorf("worker request: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var failure errorResponse
		_ = json.Unmarshal(payload, &failure)
		statusErr := &httpStatusError{
			StatusCode: resp.StatusCode,
			Stage:      failure.Stage,
			Body:       firstNonEmpty(failure.Error, string(payload)),
		}
		if retryAfter, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
			statusErr.RetryAfter = retryAfter
		}
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return empty, services.Wrap(services.ErrAuthentication, "dispatch", "extract", "worker rejected signature", statusErr)
		case resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError &&
			resp.StatusCode != http.StatusRequestTimeout && resp.StatusCode != http.StatusTooManyRequests:
			return empty, services.Wrap(services.ErrValidation, "dispatch", "extract", "worker rejected request", statusErr)
		default:
			return empty, statusErr
		}
	}

	var result ExtractResponse
	if err := json.Unmarshal(payload, &result); err != nil {
		return empty, fmt.Errorf("worker request: decode response: %w", err)
	}
	if strings.TrimSpace(result.Transcript) == "" {
		return empty, errors.New("worker request: empty transcript")
	}
	return result, nil
}

func (c *Client) retryAttempts() int {
	if c.retryMaxAttempts <= 0 {
		return 1
	}
	return c.retryMaxAttempts
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt int) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	if ctx != nil && ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	if !services.Retryable(err) {
		return 0, false
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			if statusErr.RetryAfter > 0 {
				return c.capDelay(statusErr.RetryAfter), true
			}
			return c.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}
	return c.backoffDelay(attempt), true
}

// attempt 1 -> base, attempt 2 -> base*2, attempt 3 -> base*4, ...
func (c *Client) backoffDelay(attempt int) time.Duration {
	base := c.retryBaseDelay
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > c.retryMaxDelay/2 {
			delay = c.retryMaxDelay
			break
		}
		delay *= 2
	}
	return c.capDelay(delay)
}

func (c *Client) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if c.retryMaxDelay > 0 && delay > c.retryMaxDelay {
		return c.retryMaxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		if ctx != nil {
			return ctx.Err()
		}
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
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
			return 0, false
		}
		return delay, true
	}
	return 0, false
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
