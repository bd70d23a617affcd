package groupie

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/kapu/spotmyartist/internal/constants"
	"github.com/kapu/spotmyartist/internal/util"
	"github.com/kapu/spotmyartist/pkg/errors"
	"go.uber.org/zap"
)

const maxResponseBody = 8 << 20

// Requester fetches raw JSON from the upstream catalog API.
type Requester interface {
	DoRequest(ctx context.Context, path string) ([]byte, error)
}

type ClientConfig struct {
	BaseURL     string
	MaxAttempts int
	BaseDelay   time.Duration
	Jitter      time.Duration
}

// Client retries transport failures and 5xx answers with exponential backoff.
// Consecutive failures open the breaker and further calls fail fast.
type Client struct {
	httpClient *http.Client
	cfg        ClientConfig
	breaker    *util.CircuitBreaker
	logger     *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewClient(httpClient *http.Client, cfg ClientConfig, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: constants.APIConfig.GroupieTimeout}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = constants.APIConfig.GroupieBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = constants.RetryConfig.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = constants.RetryConfig.BaseDelay
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}

	return &Client{
		httpClient: httpClient,
		cfg:        cfg,
		breaker: util.NewCircuitBreaker("groupie",
			constants.CircuitBreakerConfig.FailureThreshold,
			constants.CircuitBreakerConfig.ResetTimeout,
			logger,
		),
		logger: logger,
		sleep:  sleepContext,
	}
}

func (c *Client) DoRequest(ctx context.Context, path string) ([]byte, error) {
	if !c.breaker.CanExecute() {
		status := c.breaker.GetStatus()
		c.logger.Warn("Circuit breaker is open", zap.String("path", path))
		return nil, errors.NewAPIError("Circuit breaker open", http.StatusServiceUnavailable, map[string]any{
			"state":      status.State.String(),
			"failures":   status.FailureCount,
			"next_retry": status.NextRetryTime,
		})
	}

	reqURL := c.cfg.BaseURL + path
	var lastErr error

	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.computeDelay(attempt - 1)
			c.logger.Warn("Request failed, retrying",
				zap.String("url", reqURL),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if err := c.sleep(ctx, delay); err != nil {
				c.breaker.Abandon()
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				c.breaker.Abandon()
				return nil, ctx.Err()
			}
			lastErr = err
			c.breaker.RecordFailure(0)
			if !c.breaker.CanExecute() {
				break
			}
			continue
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			lastErr = errors.NewAPIError(fmt.Sprintf("Server error: %d", resp.StatusCode), resp.StatusCode, map[string]any{
				"url": reqURL,
			})
			c.breaker.RecordFailure(0)
			if !c.breaker.CanExecute() {
				break
			}
			continue
		}

		if resp.StatusCode >= 400 {
			c.breaker.RecordSuccess()
			return nil, errors.NewAPIError(fmt.Sprintf("Client error: %d", resp.StatusCode), resp.StatusCode, map[string]any{
				"url":  reqURL,
				"body": util.TruncateString(string(body), 200),
			})
		}

		c.breaker.RecordSuccess()
		return body, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("groupie request failed: %s", path)
}

// BreakerStatus is reported by /health.
func (c *Client) BreakerStatus() util.CircuitBreakerStatus {
	return c.breaker.GetStatus()
}

func (c *Client) computeDelay(attempt int) time.Duration {
	base := float64(c.cfg.BaseDelay) * math.Pow(2, float64(attempt))
	var jitter float64
	if c.cfg.Jitter > 0 {
		jitter = rand.Float64() * float64(c.cfg.Jitter)
	}
	return time.Duration(base + jitter)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
