// Package sustainability implements the client for the remote recommendation
// service: secondhand options, durability, shipping and the buy/repair/wait
// verdict for a product seen on a marketplace page.
package sustainability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Dhanush6858/green-gaurdian/internal/domain/recommendation"
	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
	"github.com/Dhanush6858/green-gaurdian/pkg/circuitbreaker"
	"github.com/Dhanush6858/green-gaurdian/pkg/retry"
	"github.com/Dhanush6858/green-gaurdian/pkg/timeutil"
)

const (
	sustainabilityPath = "/api/sustainability"
	healthPath         = "/api/health"

	// maxBodySize caps how much of a response is read.
	maxBodySize = 1 << 20

	defaultRetryAfter = 30 * time.Second
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the recommendation client.
type ClientConfig struct {
	// BaseURL is the service base URL, e.g. http://localhost:3000
	BaseURL string

	// Timeout is the per-request HTTP timeout
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt
	MaxRetries int

	// BreakerThreshold is the number of consecutive failures that open the circuit
	BreakerThreshold int

	// BreakerTimeout is how long the circuit stays open
	BreakerTimeout time.Duration

	// RateLimiterConfig for outgoing requests
	RateLimiterConfig RateLimiterConfig

	// RetryOptions are applied on top of the retry defaults
	RetryOptions []retry.Option

	// HTTPClient replaces the default HTTP client
	HTTPClient *http.Client

	// Clock drives the breaker cool-down. Nil means the system clock.
	Clock timeutil.Clock

	// Logger for structured logging
	Logger *slog.Logger

	// Debug enables request logging
	Debug bool
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:           baseURL,
		Timeout:           5 * time.Second,
		MaxRetries:        3,
		BreakerThreshold:  3,
		BreakerTimeout:    60 * time.Second,
		RateLimiterConfig: DefaultRateLimiterConfig(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client fetches product recommendations from the remote service.
type Client struct {
	config      ClientConfig
	httpClient  *http.Client
	logger      *slog.Logger
	rateLimiter *RateLimiter
	breaker     *circuitbreaker.CircuitBreaker
	retrier     *retry.Retrier
	mapper      *Mapper
}

var _ recommendation.Provider = (*Client)(nil)

// NewClient creates a new recommendation client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	logger := config.Logger.With("component", "recommendation_client")

	breakerOpts := []circuitbreaker.Option{circuitbreaker.WithIsFailure(isServiceFailure)}
	if config.BreakerThreshold > 0 {
		breakerOpts = append(breakerOpts, circuitbreaker.WithFailureThreshold(config.BreakerThreshold))
	}
	if config.BreakerTimeout > 0 {
		breakerOpts = append(breakerOpts, circuitbreaker.WithTimeout(config.BreakerTimeout))
	}
	if config.Clock != nil {
		breakerOpts = append(breakerOpts, circuitbreaker.WithClock(config.Clock.Now))
	}
	breaker := circuitbreaker.RecommendationBreaker(func(name string, from, to circuitbreaker.State) {
		logger.Warn("circuit breaker state changed",
			"breaker", name,
			"from", from.String(),
			"to", to.String(),
		)
	}, breakerOpts...)

	retryOpts := append([]retry.Option{
		retry.WithMaxAttempts(config.MaxRetries + 1),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			logger.Debug("retrying recommendation request",
				"attempt", attempt,
				"delay", delay,
				"error", err,
			)
		}),
	}, config.RetryOptions...)

	return &Client{
		config:      config,
		httpClient:  httpClient,
		logger:      logger,
		rateLimiter: NewRateLimiter(config.RateLimiterConfig),
		breaker:     breaker,
		retrier:     retry.RecommendationRetrier(retryOpts...),
		mapper:      NewMapper(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RECOMMENDATION OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Fetch posts the product to the service and returns its recommendations.
// Errors match shared.ErrRecommendationUnavailable when the service could
// not be reached and shared.ErrRecommendationBadResponse when it answered
// with something unusable.
func (c *Client) Fetch(ctx context.Context, product recommendation.Product) (*recommendation.Payload, error) {
	body := c.mapper.ProductToDTO(product)

	var response SustainabilityResponseDTO
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.doRequest(ctx, http.MethodPost, sustainabilityPath, body, &response)
	})
	if err != nil {
		return nil, c.classify(err)
	}

	payload, err := c.mapper.PayloadFromDTO(&response)
	if err != nil {
		return nil, shared.WrapError("recommendation", "Fetch", shared.ErrRecommendationBadResponse, "map response", err)
	}

	if response.Metadata != nil {
		c.logger.Debug("recommendations fetched",
			"options", len(payload.SecondhandOptions),
			"api_version", response.Metadata.APIVersion,
			"data_source", response.Metadata.DataSource,
		)
	}
	return payload, nil
}

// classify maps transport and protocol errors to domain errors.
func (c *Client) classify(err error) error {
	if isBadResponse(err) {
		return shared.WrapError("recommendation", "Fetch", shared.ErrRecommendationBadResponse, "unusable response", err)
	}
	return shared.WrapError("recommendation", "Fetch", shared.ErrRecommendationUnavailable, "request failed", err)
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// decodeError marks a response body that could not be parsed.
type decodeError struct{ err error }

func (e *decodeError) Error() string { return "decode response: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

// doRequest performs an HTTP request with rate limiting and retries.
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	return c.retrier.Do(ctx, func(ctx context.Context) error {
		if err := c.rateLimiter.Allow(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		err := c.doSingleRequest(ctx, method, path, body, result)
		if err == nil {
			return nil
		}

		var rateLimitErr *RateLimitError
		if errors.As(err, &rateLimitErr) {
			c.rateLimiter.RecordRateLimitHit(rateLimitErr.RetryAfter)
		}
		if isRetryable(ctx, err) {
			return retry.Retryable(err)
		}
		return err
	})
}

// doSingleRequest performs a single HTTP request.
func (c *Client) doSingleRequest(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.config.Debug {
		c.logger.Debug("recommendation api request", "method", method, "path", path)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    "rate limit exceeded",
		}
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIErrorDTO{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(respBody, apiErr)
		return apiErr
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return &decodeError{err: err}
		}
	}
	return nil
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return defaultRetryAfter
	}
	if seconds, err := strconv.Atoi(v); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return defaultRetryAfter
}

// isRetryable reports whether another attempt may succeed.
func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}
	var apiErr *APIErrorDTO
	if errors.As(err, &apiErr) {
		return apiErr.IsServerError()
	}
	var decodeErr *decodeError
	if errors.As(err, &decodeErr) {
		return false
	}
	// Transport errors: refused, reset, timeout.
	return strings.HasPrefix(err.Error(), "http request:") || strings.HasPrefix(err.Error(), "read response:")
}

// isBadResponse reports whether the service answered but the answer is
// unusable: a 4xx status or an unparseable body.
func isBadResponse(err error) bool {
	var decodeErr *decodeError
	if errors.As(err, &decodeErr) {
		return true
	}
	var apiErr *APIErrorDTO
	return errors.As(err, &apiErr) && !apiErr.IsServerError()
}

// isServiceFailure decides what counts against the circuit breaker.
// Caller cancellation and 4xx answers do not.
func isServiceFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIErrorDTO
	if errors.As(err, &apiErr) {
		return apiErr.IsServerError()
	}
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH AND STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Health fetches the service health report. It bypasses retries and the
// circuit breaker.
func (c *Client) Health(ctx context.Context) (*HealthDTO, error) {
	var health HealthDTO
	if err := c.doSingleRequest(ctx, http.MethodGet, healthPath, nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// IsHealthy checks if the service is reachable and reports itself healthy.
func (c *Client) IsHealthy(ctx context.Context) bool {
	h, err := c.Health(ctx)
	return err == nil && h.IsHealthy()
}

// ClientStatus is a snapshot of the client state.
type ClientStatus struct {
	RateLimiter    RateLimiterStatus
	CircuitBreaker circuitbreaker.State
	IsHealthy      bool
}

// Status returns the current status of the client.
func (c *Client) Status(ctx context.Context) ClientStatus {
	return ClientStatus{
		RateLimiter:    c.rateLimiter.Status(),
		CircuitBreaker: c.breaker.State(),
		IsHealthy:      c.IsHealthy(ctx),
	}
}

// Reset resets the rate limiter and circuit breaker.
func (c *Client) Reset() {
	c.rateLimiter.Reset()
	c.breaker.Reset()
}
