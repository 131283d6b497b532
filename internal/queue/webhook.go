package queue

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"caliseed/internal/external"
	"caliseed/internal/security"
	"caliseed/internal/types"
)

const webhookTimeout = 10 * time.Second

// WebhookNotifier POSTs each alert message to a single HTTPS endpoint. Bodies
// are signed with security.Sign so the receiver can authenticate them.
type WebhookNotifier struct {
	*external.BaseClient
	url    string
	secret types.SecretString
	now    func() time.Time
	logger *slog.Logger
}

// WebhookOption configures a WebhookNotifier.
type WebhookOption func(*WebhookNotifier)

// WithClock replaces time.Now for the signature timestamp.
func WithClock(now func() time.Time) WebhookOption {
	return func(n *WebhookNotifier) { n.now = now }
}

// NewWebhookNotifier creates a notifier posting to url. A nil httpClient gets
// an SSRF-safe client; pass an explicit client only for trusted targets.
func NewWebhookNotifier(httpClient *http.Client, url string, secret types.SecretString, logger *slog.Logger, opts []WebhookOption, clientOpts ...external.BaseClientOption) *WebhookNotifier {
	if httpClient == nil {
		httpClient = security.NewSafeHTTPClient(webhookTimeout)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clientOpts = append([]external.BaseClientOption{external.WithLogger(logger)}, clientOpts...)
	n := &WebhookNotifier{
		BaseClient: external.NewBaseClient(httpClient, "alert-webhook", external.DefaultRetryPolicy(), "CaliSeed-Detector/1.0", clientOpts...),
		url:        url,
		secret:     secret,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *WebhookNotifier) Notify(ctx context.Context, a types.Alert) error {
	_, body, err := encode(ctx, a)
	if err != nil {
		return err
	}
	sig, err := security.Sign(body, n.secret.Unmask(), n.now())
	if err != nil {
		return fmt.Errorf("queue: sign alert %s: %w", a.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("queue: build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(security.SignatureHeader, sig)

	resp, err := n.Do(req)
	if err != nil {
		return fmt.Errorf("queue: post alert %s to webhook: %w", a.ID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return types.NewAppError(types.ErrCodeUpstreamRejected,
			fmt.Sprintf("webhook rejected alert %s with status %d", a.ID, resp.StatusCode), nil)
	}

	n.logger.DebugContext(ctx, "alert delivered to webhook",
		"alert_id", a.ID,
		"status", resp.StatusCode,
	)
	return nil
}

func (n *WebhookNotifier) Close() error { return nil }
