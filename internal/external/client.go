// Package external wraps the third-party services CALI+SEED reads from. All
// outbound HTTP goes through BaseClient, which adds a circuit breaker,
// retries with backoff and mapping of upstream failures to types.AppError.
package external

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"caliseed/internal/types"
)

// RetryPolicy controls how often and how long BaseClient waits between
// attempts on 429 and 5xx responses.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy suits a poller that runs every few minutes: a short
// burst of retries, never waiting longer than the request timeout.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		MinWait:    250 * time.Millisecond,
		MaxWait:    5 * time.Second,
	}
}

// BaseClient is embedded by provider clients.
type BaseClient struct {
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker[*http.Response]
	retryPolicy RetryPolicy
	userAgent   string
	logger      *slog.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// BaseClientOption configures a BaseClient.
type BaseClientOption func(*BaseClient)

// WithSleepFunc replaces the wait between retries. Tests pass a no-op.
func WithSleepFunc(fn func(ctx context.Context, d time.Duration) error) BaseClientOption {
	return func(c *BaseClient) { c.sleep = fn }
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(cb *gobreaker.CircuitBreaker[*http.Response]) BaseClientOption {
	return func(c *BaseClient) { c.breaker = cb }
}

// WithLogger sets the logger used for breaker state changes and retries.
func WithLogger(logger *slog.Logger) BaseClientOption {
	return func(c *BaseClient) { c.logger = logger }
}

// NewBaseClient creates a BaseClient. The breaker opens after more than five
// consecutive failures and half-opens after 30 seconds.
func NewBaseClient(httpClient *http.Client, breakerName string, policy RetryPolicy, userAgent string, opts ...BaseClientOption) *BaseClient {
	bc := &BaseClient{
		client:      httpClient,
		retryPolicy: policy,
		userAgent:   userAgent,
		logger:      slog.New(slog.DiscardHandler),
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(bc)
	}

	if bc.breaker == nil {
		bc.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:        breakerName,
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				bc.logger.Warn("circuit breaker state change",
					"breaker", name,
					"from", from.String(),
					"to", to.String(),
				)
			},
		})
	}
	return bc
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do sends req through the breaker, retrying 429 and 5xx responses. Any other
// response is returned as-is and the caller closes its body. When retries are
// exhausted, the breaker is open or the transport fails, Do returns an
// upstream AppError.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if id := types.GetRequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	// Buffer the body so it can be replayed.
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to buffer request body", err)
		}
	}

	var (
		lastResp *http.Response
		lastErr  error
	)
	attempts := 1 + c.retryPolicy.MaxRetries
	for attempt := range attempts {
		if body != nil {
			req.Body = io.NopCloser(bytes.NewReader(body))
			req.ContentLength = int64(len(body))
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			r, err := c.client.Do(req)
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
				return r, fmt.Errorf("upstream returned %d", r.StatusCode)
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

		last := attempt == attempts-1
		if resp != nil {
			if last {
				lastResp = resp
			} else {
				resp.Body.Close()
			}
		}
		if last {
			break
		}

		wait := c.computeBackoff(attempt, resp)
		c.logger.DebugContext(ctx, "retrying upstream request",
			"host", req.URL.Host,
			"path", req.URL.Path,
			"attempt", attempt+1,
			"wait", wait,
			"error", err,
		)
		if err := c.sleep(ctx, wait); err != nil {
			lastErr = err
			break
		}
	}

	if lastResp != nil {
		lastResp.Body.Close()
	}
	return nil, c.mapError(lastResp, lastErr)
}

// computeBackoff honours Retry-After (seconds or HTTP date) and otherwise
// uses exponential backoff with jitter in [MinWait, MinWait*2^attempt],
// capped at MaxWait.
func (c *BaseClient) computeBackoff(attempt int, resp *http.Response) time.Duration {
	p := c.retryPolicy
	if resp != nil {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				return min(time.Duration(secs)*time.Second, p.MaxWait)
			}
			if at, err := http.ParseTime(ra); err == nil {
				wait := time.Until(at)
				if wait <= 0 {
					return p.MinWait
				}
				return min(wait, p.MaxWait)
			}
		}
	}

	ceiling := math.Min(float64(p.MinWait)*math.Pow(2, float64(attempt)), float64(p.MaxWait))
	floor := float64(p.MinWait)
	if ceiling <= floor {
		return p.MinWait
	}
	return time.Duration(floor + rand.Float64()*(ceiling-floor))
}

func (c *BaseClient) mapError(resp *http.Response, err error) *types.AppError {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "circuit breaker is open", err)
	case resp != nil && resp.StatusCode == http.StatusTooManyRequests:
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, "upstream rate limit exceeded", err)
	case resp != nil && resp.StatusCode >= 500:
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, fmt.Sprintf("upstream returned %d after retries", resp.StatusCode), err)
	}
	return types.NewAppError(types.ErrCodeUpstreamUnavailable, "upstream request failed", err)
}
