package types

import (
	"context"
	"testing"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")
	if got := GetRequestID(ctx); got != "req-123" {
		t.Errorf("GetRequestID() = %q, want %q", got, "req-123")
	}
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID() on empty context = %q, want empty", got)
	}
}

func TestRunIDRoundTrip(t *testing.T) {
	ctx := WithRunID(context.Background(), "run-1")
	if got := GetRunID(ctx); got != "run-1" {
		t.Errorf("GetRunID() = %q, want %q", got, "run-1")
	}
}
