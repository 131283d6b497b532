// Package app holds the startup steps shared by every binary: configuration
// loading with SSM resolution, logger construction and runtime detection.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"caliseed/internal/config"
)

// Load reads configuration and builds the logger. Outside APP_ENV=local,
// *_SSM_PARAM pointers are resolved against Parameter Store in AWS_REGION.
func Load() (*config.Config, *slog.Logger, error) {
	provider := config.NewSSMProvider(os.Getenv("AWS_REGION"), os.Getenv("AWS_ENDPOINT_URL"))
	cfg, err := config.LoadConfig(provider)
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}
	logger := NewLogger(cfg.LogLevel, os.Stdout).With("service", cfg.Service, "environment", cfg.Environment)
	return cfg, logger, nil
}

// NewLogger returns a JSON logger at the given level. Unknown levels fall
// back to info.
func NewLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// IsLambda reports whether the process runs inside the AWS Lambda runtime.
func IsLambda() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	_, hasServerPort := os.LookupEnv("_LAMBDA_SERVER_PORT")
	return hasRuntimeAPI || hasServerPort
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
