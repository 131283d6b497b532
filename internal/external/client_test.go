package external

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"caliseed/internal/types"
)

func noopSleep(context.Context, time.Duration) error { return nil }

func newTestClient(t *testing.T, policy RetryPolicy, opts ...BaseClientOption) *BaseClient {
	t.Helper()
	opts = append([]BaseClientOption{WithSleepFunc(noopSleep)}, opts...)
	return NewBaseClient(&http.Client{Timeout: 5 * time.Second}, "test-breaker", policy, "CaliSeed-Test/1.0", opts...)
}

func get(t *testing.T, ctx context.Context, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	return req
}

func TestDo_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	resp, err := newTestClient(t, DefaultRetryPolicy()).Do(get(t, context.Background(), server.URL))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"status":"ok"}` {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestDo_InjectsHeaders(t *testing.T) {
	var gotUA, gotID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotID = r.Header.Get("X-Request-ID")
	}))
	defer server.Close()

	ctx := types.WithRequestID(context.Background(), "req-123")
	resp, err := newTestClient(t, DefaultRetryPolicy()).Do(get(t, ctx, server.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if gotUA != "CaliSeed-Test/1.0" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotID != "req-123" {
		t.Errorf("X-Request-ID = %q", gotID)
	}
}

func TestDo_RetriesOn5xxThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	policy := RetryPolicy{MaxRetries: 3, MinWait: time.Millisecond, MaxWait: 10 * time.Millisecond}
	resp, err := newTestClient(t, policy).Do(get(t, context.Background(), server.URL))
	if err != nil {
		t.Fatalf("expected success after retries, got: %v", err)
	}
	resp.Body.Close()

	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestDo_ExhaustedRetries(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   types.ErrorCode
	}{
		{"server error", http.StatusBadGateway, types.ErrCodeUpstreamUnavailable},
		{"rate limited", http.StatusTooManyRequests, types.ErrCodeUpstreamRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			policy := RetryPolicy{MaxRetries: 2, MinWait: time.Millisecond, MaxWait: time.Millisecond}
			_, err := newTestClient(t, policy).Do(get(t, context.Background(), server.URL))

			var appErr *types.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("expected *types.AppError, got %T: %v", err, err)
			}
			if appErr.Code != tt.want {
				t.Errorf("code = %s, want %s", appErr.Code, tt.want)
			}
			if calls.Load() != 3 {
				t.Errorf("calls = %d, want 3", calls.Load())
			}
		})
	}
}

func TestDo_4xxNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	resp, err := newTestClient(t, DefaultRetryPolicy()).Do(get(t, context.Background(), server.URL))
	if err != nil {
		t.Fatalf("4xx should be returned to the caller, got error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestDo_BreakerOpenStopsCalls(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "trip-fast",
		Timeout:     time.Minute,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 2 },
	})
	client := newTestClient(t, RetryPolicy{MaxRetries: 5, MinWait: time.Millisecond, MaxWait: time.Millisecond}, WithBreaker(breaker))

	_, err := client.Do(get(t, context.Background(), server.URL))
	if !types.HasCode(err, types.ErrCodeUpstreamUnavailable) {
		t.Fatalf("expected upstream unavailable, got: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2 before the breaker opened", calls.Load())
	}
	if !strings.Contains(err.Error(), "circuit breaker") {
		t.Errorf("error should mention the breaker, got: %v", err)
	}
}

func TestDo_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestClient(t, RetryPolicy{MaxRetries: 1, MinWait: time.Millisecond, MaxWait: time.Millisecond}).
		Do(get(t, context.Background(), url))
	if !types.HasCode(err, types.ErrCodeUpstreamUnavailable) {
		t.Errorf("expected upstream unavailable, got: %v", err)
	}
}

func TestDo_CancelledWaitAborts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cancelled := func(context.Context, time.Duration) error { return context.Canceled }
	client := newTestClient(t, DefaultRetryPolicy(), WithSleepFunc(cancelled))

	_, err := client.Do(get(t, context.Background(), server.URL))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestComputeBackoff(t *testing.T) {
	c := newTestClient(t, RetryPolicy{MaxRetries: 3, MinWait: 100 * time.Millisecond, MaxWait: time.Second})

	for attempt := range 5 {
		wait := c.computeBackoff(attempt, nil)
		if wait < 100*time.Millisecond || wait > time.Second {
			t.Errorf("attempt %d: wait %v outside [100ms, 1s]", attempt, wait)
		}
	}

	resp := &http.Response{Header: http.Header{"Retry-After": []string{"120"}}}
	if got := c.computeBackoff(0, resp); got != time.Second {
		t.Errorf("Retry-After should be capped at MaxWait, got %v", got)
	}
	resp.Header.Set("Retry-After", "0")
	if got := c.computeBackoff(0, resp); got != 100*time.Millisecond {
		t.Errorf("non-positive Retry-After should fall back to backoff, got %v", got)
	}
}
